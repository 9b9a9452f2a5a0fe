package systemd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modoterra/unitgate/pkg/core"
)

type fakeConn struct {
	calls  []string
	result string // empty: never answer
	err    error
	closed bool
}

func (f *fakeConn) job(method, name string, ch chan<- string) (int, error) {
	f.calls = append(f.calls, method+" "+name)
	if f.err != nil {
		return 0, f.err
	}
	if f.result != "" {
		ch <- f.result
	}
	return 42, nil
}

func (f *fakeConn) StartUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return f.job("start", name, ch)
}

func (f *fakeConn) StopUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return f.job("stop", name, ch)
}

func (f *fakeConn) RestartUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return f.job("restart", name, ch)
}

func (f *fakeConn) Close() { f.closed = true }

func newTestDispatcher(conn *fakeConn) *Dispatcher {
	return &Dispatcher{
		connect: func(context.Context) (unitConn, error) { return conn, nil },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDispatchVerbs(t *testing.T) {
	for _, verb := range []core.Verb{core.VerbStart, core.VerbStop, core.VerbRestart} {
		t.Run(string(verb), func(t *testing.T) {
			conn := &fakeConn{result: "done"}
			d := newTestDispatcher(conn)

			out, err := d.Dispatch(context.Background(), verb, core.Unit{Filename: "nginx"})
			if err != nil {
				t.Fatal(err)
			}
			if len(conn.calls) != 1 || conn.calls[0] != string(verb)+" nginx.service" {
				t.Errorf("calls: got %v", conn.calls)
			}
			want := "job 42 " + string(verb) + " nginx.service: done"
			if len(out) != 1 || out[0] != want {
				t.Errorf("output: got %q, want %q", out, want)
			}
			if !conn.closed {
				t.Error("connection not closed")
			}
		})
	}
}

func TestDispatchRelaysFailedJob(t *testing.T) {
	conn := &fakeConn{result: "failed"}
	d := newTestDispatcher(conn)

	out, err := d.Dispatch(context.Background(), core.VerbStart, core.Unit{Filename: "broken"})
	if err != nil {
		t.Fatalf("a failed job is relayed, not an error: %v", err)
	}
	if len(out) != 1 || out[0] != "job 42 start broken.service: failed" {
		t.Errorf("output: got %q", out)
	}
}

func TestDispatchQueueError(t *testing.T) {
	conn := &fakeConn{err: errors.New("access denied")}
	d := newTestDispatcher(conn)

	if _, err := d.Dispatch(context.Background(), core.VerbStop, core.Unit{Filename: "nginx"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDispatchWaitHonoursContext(t *testing.T) {
	conn := &fakeConn{}
	d := newTestDispatcher(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Dispatch(ctx, core.VerbRestart, core.Unit{Filename: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatchTimeout(t *testing.T) {
	d := newTestDispatcher(&fakeConn{})
	d.Timeout = 50 * time.Millisecond

	_, err := d.Dispatch(context.Background(), core.VerbStop, core.Unit{Filename: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatchRejectsUnknownVerb(t *testing.T) {
	d := newTestDispatcher(&fakeConn{result: "done"})
	if _, err := d.Dispatch(context.Background(), core.Verb("kill"), core.Unit{Filename: "x"}); !errors.Is(err, core.ErrInvalidVerb) {
		t.Errorf("expected ErrInvalidVerb, got %v", err)
	}
}

func TestDispatchConnectError(t *testing.T) {
	d := &Dispatcher{
		connect: func(context.Context) (unitConn, error) { return nil, errors.New("no bus") },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if _, err := d.Dispatch(context.Background(), core.VerbStart, core.Unit{Filename: "x"}); err == nil {
		t.Fatal("expected error")
	}
}
