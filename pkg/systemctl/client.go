package systemctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/modoterra/unitgate/pkg/core"
)

// ErrInvalidLineCount is returned by Tail for a negative line count.
var ErrInvalidLineCount = errors.New("line count must be non-negative")

// Options names the binaries the client shells out to.
type Options struct {
	Systemctl  string
	Journalctl string
	// Privilege is prepended to lifecycle commands, e.g. ["sudo", "-n"].
	Privilege []string
}

// Client reads and controls systemd units through systemctl and journalctl.
// It keeps no state between calls; every method runs fresh commands.
type Client struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

// New creates a client that runs commands through runner.
func New(runner Runner, opts Options, logger *slog.Logger) *Client {
	if opts.Systemctl == "" {
		opts.Systemctl = "systemctl"
	}
	if opts.Journalctl == "" {
		opts.Journalctl = "journalctl"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{runner: runner, opts: opts, logger: logger}
}

// Units lists loaded service units in systemctl's order.
func (c *Client) Units(ctx context.Context) (core.Index, error) {
	out, err := c.read(ctx, c.opts.Systemctl, "list-units", "--type", "service")
	if err != nil {
		return nil, err
	}

	l := ParseListing(out)
	if l.Err != nil {
		c.logger.Warn("listing could not be read to the end", "units", len(l.Units), "err", l.Err)
		return nil, fmt.Errorf("parse unit listing: %w", l.Err)
	}
	for _, s := range l.Skipped {
		if s.Blank() {
			continue
		}
		c.logger.Debug("listing line skipped", "line", s.Number, "text", s.Text, "reason", s.Reason)
	}
	if len(l.Units) == 0 && len(l.Skipped) > 0 {
		c.logger.Warn("listing produced no units; output format may have changed",
			"lines", len(l.Skipped))
	}
	return l.Units, nil
}

// Status returns the status fields of unit. A missing journal boundary is
// reported as ErrNoBoundary together with the fields parsed from all lines.
func (c *Client) Status(ctx context.Context, unit core.Unit) (core.StatusFields, error) {
	out, err := c.read(ctx, c.opts.Systemctl, "status", unit.Filename)
	if err != nil {
		return nil, err
	}
	fields, err := ParseStatus(out)
	if errors.Is(err, ErrNoBoundary) {
		c.logger.Warn("status output has no journal boundary", "unit", unit.Filename, "fields", len(fields))
	}
	return fields, err
}

// Tail returns the last n journal lines of unit. n == 0 yields no lines
// without running journalctl.
func (c *Client) Tail(ctx context.Context, unit core.Unit, n int) (core.LogLines, error) {
	if n < 0 {
		return nil, ErrInvalidLineCount
	}
	if n == 0 {
		return core.LogLines{}, nil
	}
	out, err := c.read(ctx, c.opts.Journalctl, "-u", unit.Filename, "-n", strconv.Itoa(n), "--no-pager")
	if err != nil {
		return nil, err
	}
	lines, err := splitLines(out)
	if err != nil {
		return nil, err
	}
	return core.LogLines(lines), nil
}

// Dispatch runs the privileged `systemctl <verb> <unit>` and relays its
// stdout lines. A non-zero exit is returned as a *CommandError carrying the
// captured output.
func (c *Client) Dispatch(ctx context.Context, verb core.Verb, unit core.Unit) ([]string, error) {
	argv := make([]string, 0, len(c.opts.Privilege)+3)
	argv = append(argv, c.opts.Privilege...)
	argv = append(argv, c.opts.Systemctl, string(verb), unit.Filename)

	c.logger.Info("dispatching unit action", "verb", verb, "unit", unit.Filename)
	res, err := c.runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		c.logger.Error("unit action failed", "verb", verb, "unit", unit.Filename, "err", err)
		return nil, err
	}
	lines, err := splitLines(res.Stdout)
	if err != nil {
		c.logger.Error("unit action output unreadable", "verb", verb, "unit", unit.Filename, "err", err)
		return nil, err
	}
	return lines, nil
}

// read runs a read-only command. systemctl and journalctl use non-zero exit
// codes for states such as an inactive unit (status exits 3), so a completed
// command that wrote to stdout is treated as a success.
func (c *Client) read(ctx context.Context, name string, args ...string) ([]byte, error) {
	res, err := c.runner.Run(ctx, name, args...)
	if err == nil {
		return res.Stdout, nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Exited() && len(res.Stdout) > 0 {
		c.logger.Debug("command exited non-zero with output", "cmd", name, "args", args, "err", err)
		return res.Stdout, nil
	}
	return nil, err
}
