package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/modoterra/unitgate/pkg/api"
	"github.com/modoterra/unitgate/pkg/auth"
	"github.com/modoterra/unitgate/pkg/core"
)

type fakeUnits struct {
	index     core.Index
	status    core.StatusFields
	statusErr error
	tailN     int
}

func (f *fakeUnits) Units(context.Context) (core.Index, error) { return f.index, nil }

func (f *fakeUnits) Status(context.Context, core.Unit) (core.StatusFields, error) {
	return f.status, f.statusErr
}

func (f *fakeUnits) Tail(_ context.Context, _ core.Unit, n int) (core.LogLines, error) {
	f.tailN = n
	lines := core.LogLines{}
	for i := 0; i < n && i < 3; i++ {
		lines = append(lines, "line")
	}
	return lines, nil
}

type fakeDispatcher struct {
	verb core.Verb
	unit string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, verb core.Verb, unit core.Unit) ([]string, error) {
	f.verb = verb
	f.unit = unit.Filename
	return []string{"ok " + unit.Filename}, nil
}

func newServer(t *testing.T, units *fakeUnits, d *fakeDispatcher) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tok, err := auth.NewToken("secret")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(api.NewRouter(units, d, api.NewGate(tok, logger), logger))
	t.Cleanup(srv.Close)
	return srv
}

func testIndex() core.Index {
	return core.Index{
		{Filename: "nginx", Load: "loaded", Active: "active", Sub: "running", Description: "Web server"},
		{Filename: "sshd", Load: "loaded", Active: "active", Sub: "running", Description: "SSH"},
	}
}

func TestList(t *testing.T) {
	srv := newServer(t, &fakeUnits{index: testIndex()}, &fakeDispatcher{})
	c := New(srv.URL+"/", "secret")

	ix, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ix) != 2 || ix[1].Filename != "sshd" || ix[0].Description != "Web server" {
		t.Errorf("got %+v", ix)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := newServer(t, &fakeUnits{index: testIndex()}, &fakeDispatcher{})
	c := New(srv.URL, "wrong")

	_, err := c.List(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Errorf("expected APIError 401, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	units := &fakeUnits{index: testIndex(), status: core.StatusFields{"Active": "active (running)"}}
	srv := newServer(t, units, &fakeDispatcher{})
	c := New(srv.URL, "secret")

	reply, err := c.Status(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if reply.Unit != "sshd" {
		t.Errorf("unit: got %q", reply.Unit)
	}
	if reply.Fields["Active"] != "active (running)" {
		t.Errorf("fields: got %v", reply.Fields)
	}
	if reply.Warning != "" {
		t.Errorf("unexpected warning %q", reply.Warning)
	}
}

func TestStatusOutOfRange(t *testing.T) {
	srv := newServer(t, &fakeUnits{index: testIndex()}, &fakeDispatcher{})
	c := New(srv.URL, "secret")

	_, err := c.Status(context.Background(), 5, "")
	if !errors.Is(err, core.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestLogs(t *testing.T) {
	units := &fakeUnits{index: testIndex()}
	srv := newServer(t, units, &fakeDispatcher{})
	c := New(srv.URL, "secret")

	if _, err := c.Logs(context.Background(), 0, -1, ""); err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if units.tailN != api.DefaultLogLines {
		t.Errorf("default count: got %d", units.tailN)
	}

	lines, err := c.Logs(context.Background(), 0, 2, "nginx")
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(lines) != 2 || units.tailN != 2 {
		t.Errorf("got %v (n=%d)", lines, units.tailN)
	}
}

func TestActionWithExpect(t *testing.T) {
	d := &fakeDispatcher{}
	srv := newServer(t, &fakeUnits{index: testIndex()}, d)
	c := New(srv.URL, "secret")

	_, err := c.Action(context.Background(), 0, core.VerbRestart, "sshd")
	if !errors.Is(err, api.ErrUnitMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if d.unit != "" {
		t.Fatalf("dispatch ran for %q", d.unit)
	}

	out, err := c.Action(context.Background(), 1, core.VerbRestart, "sshd")
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if d.verb != core.VerbRestart || d.unit != "sshd" || len(out) != 1 || out[0] != "ok sshd" {
		t.Errorf("got verb=%s unit=%s out=%v", d.verb, d.unit, out)
	}
}

func TestHealthAndPing(t *testing.T) {
	srv := newServer(t, &fakeUnits{}, &fakeDispatcher{})
	c := New(srv.URL, "")

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "healthy" {
		t.Errorf("status: got %q", h.Status)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestPingUnreachable(t *testing.T) {
	srv := newServer(t, &fakeUnits{}, &fakeDispatcher{})
	url := srv.URL
	srv.Close()

	if err := New(url, "").Ping(context.Background()); err == nil {
		t.Error("expected error from closed server")
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{
		StatusCode: 502,
		Body:       api.ErrorResponse{Error: "systemctl start x: exit status 1", Stderr: []string{"Job failed"}},
	}
	want := "502 Bad Gateway: systemctl start x: exit status 1: Job failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	plain := &APIError{StatusCode: 401, Text: "Unauthorized\n"}
	if plain.Error() != "401 Unauthorized: Unauthorized" {
		t.Errorf("got %q", plain.Error())
	}
}
