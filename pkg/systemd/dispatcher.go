// Package systemd dispatches unit lifecycle jobs over systemd's D-Bus API.
// It is the alternative to shelling out to a privileged systemctl; the caller
// needs polkit authorization or root for the jobs to be accepted.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/modoterra/unitgate/pkg/core"
)

// jobMode is passed to systemd for every job; it replaces any queued job for
// the same unit, as `systemctl` does by default.
const jobMode = "replace"

// unitConn is the subset of *dbus.Conn used by the dispatcher.
type unitConn interface {
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	Close()
}

// Dispatcher queues start/stop/restart jobs on the system bus.
type Dispatcher struct {
	connect func(ctx context.Context) (unitConn, error)
	// Timeout bounds connecting plus waiting for the job result. Zero means
	// only the caller's context applies.
	Timeout time.Duration
	logger  *slog.Logger
}

// New creates a D-Bus dispatcher connected to the system manager.
func New(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{connect: dialSystemBus, Timeout: timeout, logger: logger}
}

func dialSystemBus(ctx context.Context) (unitConn, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Dispatch queues a job for verb on unit and waits for its result. The job
// result ("done", "failed", "timeout", ...) is relayed as a single output line.
func (d *Dispatcher) Dispatch(ctx context.Context, verb core.Verb, unit core.Unit) ([]string, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	name := unit.ServiceName()
	ch := make(chan string, 1)
	var jobID int
	switch verb {
	case core.VerbStart:
		jobID, err = conn.StartUnitContext(ctx, name, jobMode, ch)
	case core.VerbStop:
		jobID, err = conn.StopUnitContext(ctx, name, jobMode, ch)
	case core.VerbRestart:
		jobID, err = conn.RestartUnitContext(ctx, name, jobMode, ch)
	default:
		return nil, fmt.Errorf("%w %q", core.ErrInvalidVerb, verb)
	}
	if err != nil {
		return nil, fmt.Errorf("systemd %s %s: %w", verb, name, err)
	}

	d.logger.Info("unit job queued", "verb", verb, "unit", name, "job", jobID)

	select {
	case result := <-ch:
		if result != "done" {
			d.logger.Warn("unit job finished", "verb", verb, "unit", name, "job", jobID, "result", result)
		}
		return []string{fmt.Sprintf("job %d %s %s: %s", jobID, verb, name, result)}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("systemd %s %s: waiting for job %d: %w", verb, name, jobID, ctx.Err())
	}
}
