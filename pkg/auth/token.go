// Package auth loads and checks the shared bearer secret.
package auth

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyToken is returned when a token source contains only whitespace.
var ErrEmptyToken = errors.New("token is empty")

// ErrHashedToken is returned by Secret for a token stored as a hash.
var ErrHashedToken = errors.New("token is a bcrypt hash; clients need the plain secret")

// Token is the configured shared secret. It is either the literal secret or
// a bcrypt hash of it.
type Token struct {
	value  []byte
	hashed bool
}

// NewToken wraps a secret, detecting bcrypt hashes by their prefix.
func NewToken(secret string) (Token, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Token{}, ErrEmptyToken
	}
	return Token{value: []byte(secret), hashed: isBcrypt(secret)}, nil
}

// LoadToken reads the secret from path. Surrounding whitespace is trimmed.
func LoadToken(path string) (Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}, fmt.Errorf("read token: %w", err)
	}
	t, err := NewToken(string(bytes.TrimSpace(data)))
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Hashed reports whether the token is stored as a bcrypt hash.
func (t Token) Hashed() bool { return t.hashed }

// Secret returns the plain secret for sending as a credential.
func (t Token) Secret() (string, error) {
	if t.hashed {
		return "", ErrHashedToken
	}
	return string(t.value), nil
}

// Match reports whether candidate equals the secret. Plain secrets are
// compared in constant time.
func (t Token) Match(candidate string) bool {
	if len(t.value) == 0 || candidate == "" {
		return false
	}
	if t.hashed {
		return bcrypt.CompareHashAndPassword(t.value, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(t.value, []byte(candidate)) == 1
}

// Hash returns a bcrypt hash of secret suitable for a token file.
func Hash(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrEmptyToken
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(h), nil
}

func isBcrypt(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
