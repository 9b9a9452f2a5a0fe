package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPlainTokenMatch(t *testing.T) {
	tok, err := NewToken("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if tok.Hashed() {
		t.Error("plain token reported as hashed")
	}
	if !tok.Match("s3cret") {
		t.Error("expected match")
	}
	for _, bad := range []string{"", "s3cre", "s3cret ", "S3CRET"} {
		if tok.Match(bad) {
			t.Errorf("unexpected match for %q", bad)
		}
	}
}

func TestHashedTokenMatch(t *testing.T) {
	h, err := Hash("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	tok, err := NewToken(h)
	if err != nil {
		t.Fatal(err)
	}
	if !tok.Hashed() {
		t.Fatal("bcrypt hash not detected")
	}
	if !tok.Match("s3cret") {
		t.Error("expected match against hash")
	}
	if tok.Match("wrong") {
		t.Error("unexpected match")
	}
	if tok.Match(h) {
		t.Error("the hash itself must not authenticate")
	}
}

func TestEmptyToken(t *testing.T) {
	if _, err := NewToken("  \n"); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := Hash(""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken from Hash, got %v", err)
	}

	var zero Token
	if zero.Match("") || zero.Match("x") {
		t.Error("zero token must never match")
	}
}

func TestLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  abc123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadToken(path)
	if err != nil {
		t.Fatal(err)
	}
	if !tok.Match("abc123") {
		t.Error("whitespace must be trimmed from the token file")
	}
}

func TestLoadTokenMissing(t *testing.T) {
	_, err := LoadToken(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadTokenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(path); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
}

func TestSecret(t *testing.T) {
	tok, _ := NewToken("plain")
	if s, err := tok.Secret(); err != nil || s != "plain" {
		t.Errorf("Secret() = %q, %v", s, err)
	}

	h, err := Hash("plain")
	if err != nil {
		t.Fatal(err)
	}
	hashed, _ := NewToken(h)
	if _, err := hashed.Secret(); !errors.Is(err, ErrHashedToken) {
		t.Errorf("expected ErrHashedToken, got %v", err)
	}
}
