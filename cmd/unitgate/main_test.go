package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/modoterra/unitgate/pkg/api"
	"github.com/modoterra/unitgate/pkg/auth"
	"github.com/modoterra/unitgate/pkg/core"
)

type fakeUnits struct{}

func (fakeUnits) Units(context.Context) (core.Index, error) {
	return core.Index{
		{Filename: "cron", Load: "loaded", Active: "active", Sub: "running", Description: "Regular background program processing daemon"},
		{Filename: "nginx", Load: "loaded", Active: "failed", Sub: "failed", Description: "A high performance web server"},
		{Filename: "42", Load: "loaded", Active: "active", Sub: "running", Description: "Unit with a numeric name"},
	}, nil
}

func (fakeUnits) Status(_ context.Context, u core.Unit) (core.StatusFields, error) {
	return core.StatusFields{"Active": u.Active, "Loaded": u.Load}, nil
}

func (fakeUnits) Tail(_ context.Context, _ core.Unit, n int) (core.LogLines, error) {
	lines := core.LogLines{}
	for i := 0; i < n; i++ {
		lines = append(lines, "journal line")
	}
	return lines, nil
}

type fakeDispatcher struct{ calls []string }

func (f *fakeDispatcher) Dispatch(_ context.Context, verb core.Verb, u core.Unit) ([]string, error) {
	f.calls = append(f.calls, string(verb)+" "+u.Filename)
	return []string{}, nil
}

func startServer(t *testing.T) (string, *fakeDispatcher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tok, err := auth.NewToken("secret")
	if err != nil {
		t.Fatal(err)
	}
	d := &fakeDispatcher{}
	srv := httptest.NewServer(api.NewRouter(fakeUnits{}, d, api.NewGate(tok, logger), logger))
	t.Cleanup(srv.Close)
	t.Setenv(envToken, "secret")
	return srv.URL, d
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	byOrdinal = false
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestListCommand(t *testing.T) {
	url, _ := startServer(t)

	out, err := run(t, "list", "--url", url, "--json=false")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "UNIT") || !strings.Contains(out, "nginx") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.HasPrefix(strings.Split(out, "\n")[1], "0 ") {
		t.Errorf("first unit should carry ordinal 0:\n%s", out)
	}
}

func TestListCommandJSON(t *testing.T) {
	url, _ := startServer(t)

	out, err := run(t, "list", "--url", url, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var units []core.Unit
	if err := json.Unmarshal([]byte(out), &units); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(units) != 3 || units[1].Filename != "nginx" {
		t.Errorf("got %+v", units)
	}
}

func TestStatusByName(t *testing.T) {
	url, _ := startServer(t)

	out, err := run(t, "status", "nginx.service", "--url", url, "--json=false")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "nginx.service") || !strings.Contains(out, "Active: failed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestLogsCommand(t *testing.T) {
	url, _ := startServer(t)

	out, err := run(t, "logs", "0", "-n", "3", "--url", url)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out, "journal line"); got != 3 {
		t.Errorf("expected 3 lines, got %d:\n%s", got, out)
	}
}

func TestRestartByName(t *testing.T) {
	url, d := startServer(t)

	out, err := run(t, "restart", "nginx", "--url", url)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0] != "restart nginx" {
		t.Errorf("dispatch calls: %v", d.calls)
	}
	if !strings.Contains(out, "restart → nginx") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestNumericArgumentIsOrdinal(t *testing.T) {
	url, d := startServer(t)

	if _, err := run(t, "stop", "1", "--url", url); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0] != "stop nginx" {
		t.Errorf("dispatch calls: %v", d.calls)
	}
}

func TestNumericUnitNamePreferred(t *testing.T) {
	url, d := startServer(t)

	if _, err := run(t, "restart", "42", "--url", url); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0] != "restart 42" {
		t.Errorf("dispatch calls: %v", d.calls)
	}
}

func TestOrdinalFlag(t *testing.T) {
	url, d := startServer(t)

	if _, err := run(t, "restart", "42", "--ordinal", "--url", url); err == nil {
		t.Fatal("expected out-of-range error for ordinal 42")
	}
	if _, err := run(t, "restart", "0", "--ordinal", "--url", url); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0] != "restart cron" {
		t.Errorf("dispatch calls: %v", d.calls)
	}
	if _, err := run(t, "restart", "cron", "--ordinal", "--url", url); err == nil {
		t.Error("expected error for a name with --ordinal")
	}
}

func TestUnknownUnit(t *testing.T) {
	url, d := startServer(t)

	if _, err := run(t, "stop", "missing", "--url", url); err == nil {
		t.Fatal("expected error for unknown unit")
	}
	if len(d.calls) != 0 {
		t.Errorf("no dispatch expected, got %v", d.calls)
	}
}

func TestWrongToken(t *testing.T) {
	url, _ := startServer(t)
	t.Setenv(envToken, "nope")

	if _, err := run(t, "list", "--url", url); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestHashedTokenFileRejected(t *testing.T) {
	url, _ := startServer(t)
	t.Setenv(envToken, "")

	h, err := auth.Hash("secret")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte(h+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err = run(t, "list", "--url", url, "--token-file", path)
	if err == nil || !strings.Contains(err.Error(), "plain secret") {
		t.Errorf("expected hashed token error, got %v", err)
	}
}

func TestHashTokenCommand(t *testing.T) {
	rootCmd.SetIn(strings.NewReader("hunter2\n"))
	defer rootCmd.SetIn(nil)

	out, err := run(t, "hash-token")
	if err != nil {
		t.Fatal(err)
	}
	h := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(h), []byte("hunter2")); err != nil {
		t.Errorf("hash does not match secret: %v", err)
	}
}

func TestPingCommand(t *testing.T) {
	url, _ := startServer(t)

	out, err := run(t, "ping", "--url", url)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "healthy") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "unitgate dev") {
		t.Errorf("unexpected output: %q", out)
	}
}
