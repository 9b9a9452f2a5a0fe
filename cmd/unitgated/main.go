package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/modoterra/unitgate/internal/buildinfo"
	"github.com/modoterra/unitgate/pkg/api"
	"github.com/modoterra/unitgate/pkg/auth"
	"github.com/modoterra/unitgate/pkg/config"
	"github.com/modoterra/unitgate/pkg/core"
	"github.com/modoterra/unitgate/pkg/daemon"
	"github.com/modoterra/unitgate/pkg/systemctl"
	"github.com/modoterra/unitgate/pkg/systemd"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("unitgated %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	fs := pflag.NewFlagSet("unitgated", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", envOr(config.EnvPath, config.DefaultPath), "path to unitgate.yaml (env "+config.EnvPath+")")
	_ = fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "unitgated:", err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLogger writes text to a terminal and JSON everywhere else.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// server wires the configured components into a daemon.
func server(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	token, err := auth.LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if fi, err := os.Stat(cfg.TokenFile); err == nil && !token.Hashed() && fi.Mode().Perm()&0o077 != 0 {
		logger.Warn("token file is readable by other users", "path", cfg.TokenFile, "mode", fi.Mode().Perm().String())
	}

	units := systemctl.New(systemctl.ExecRunner{Timeout: cfg.CommandTimeout}, systemctl.Options{
		Systemctl:  cfg.Systemctl,
		Journalctl: cfg.Journalctl,
		Privilege:  cfg.Privilege,
	}, logger)

	var dispatcher core.Dispatcher = units
	if cfg.ActionBackend == config.BackendDBus {
		dispatcher = systemd.New(cfg.CommandTimeout, logger)
	}

	router := api.NewRouter(units, dispatcher, api.NewGate(token, logger), logger)
	return daemon.New(cfg.Listen, router, logger), nil
}

func run(ctx context.Context, configPath string, logOut io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	logger := newLogger(logOut, cfg.Level())
	if cfg.FilePath == "" {
		logger.Info("no config file, using defaults", "path", configPath)
	}

	d, err := server(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("starting unitgated",
		"version", buildinfo.Version,
		"listen", cfg.Listen,
		"backend", cfg.ActionBackend,
	)
	return d.Run(ctx)
}
