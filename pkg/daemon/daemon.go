// Package daemon runs the unitgated HTTP server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	sddaemon "github.com/coreos/go-systemd/v22/daemon"
)

// ShutdownTimeout bounds how long in-flight requests may run after Run's
// context is cancelled.
const ShutdownTimeout = 15 * time.Second

// Daemon is the unitgated process: one HTTP server on either a
// socket-activated listener or the configured address.
type Daemon struct {
	listen  string
	server  *http.Server
	logger  *slog.Logger
	addr    net.Addr
	started chan struct{}

	listeners func() ([]net.Listener, error)
	notify    func(state string)
}

// New creates a daemon serving handler on listen.
func New(listen string, handler http.Handler, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		listen:    listen,
		logger:    logger,
		started:   make(chan struct{}),
		listeners: activation.Listeners,
	}
	d.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	d.notify = d.sdNotify
	return d
}

// Started is closed once the daemon accepts connections.
func (d *Daemon) Started() <-chan struct{} {
	return d.started
}

// Addr returns the bound address. Valid after Started is closed.
func (d *Daemon) Addr() net.Addr {
	return d.addr
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := d.listener()
	if err != nil {
		return err
	}
	d.addr = ln.Addr()
	d.logger.Info("server listening", "addr", d.addr.String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Serve(ln)
	}()
	close(d.started)
	d.notify(sddaemon.SdNotifyReady)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	d.notify(sddaemon.SdNotifyStopping)
	d.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// listener prefers a socket passed by systemd and falls back to d.listen.
func (d *Daemon) listener() (net.Listener, error) {
	lns, err := d.listeners()
	if err != nil {
		return nil, fmt.Errorf("socket activation: %w", err)
	}
	for i, ln := range lns {
		if ln == nil {
			continue
		}
		for _, extra := range lns[i+1:] {
			if extra != nil {
				d.logger.Warn("ignoring extra activated socket", "addr", extra.Addr().String())
				extra.Close()
			}
		}
		d.logger.Info("using socket-activated listener")
		return ln, nil
	}

	ln, err := net.Listen("tcp", d.listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", d.listen, err)
	}
	return ln, nil
}

func (d *Daemon) sdNotify(state string) {
	sent, err := sddaemon.SdNotify(false, state)
	if err != nil {
		d.logger.Warn("sd_notify failed", "state", state, "err", err)
		return
	}
	if sent {
		d.logger.Debug("sd_notify sent", "state", state)
	}
}
