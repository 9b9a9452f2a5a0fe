package config

import (
	"fmt"
	"log/slog"
	"net"
)

// Validate checks the configuration for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	} else if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen %q: %v", c.Listen, err))
	}

	if c.TokenFile == "" {
		errs = append(errs, fmt.Errorf("token_file is required"))
	}

	if c.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("command_timeout must be positive, got %s", c.CommandTimeout))
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error; got %q", c.LogLevel))
	}

	if c.Systemctl == "" {
		errs = append(errs, fmt.Errorf("systemctl is required"))
	}
	if c.Journalctl == "" {
		errs = append(errs, fmt.Errorf("journalctl is required"))
	}

	for i, arg := range c.Privilege {
		if arg == "" {
			errs = append(errs, fmt.Errorf("privilege[%d] is empty", i))
		}
	}

	switch c.ActionBackend {
	case BackendExec, BackendDBus:
	default:
		errs = append(errs, fmt.Errorf("action_backend must be exec or dbus; got %q", c.ActionBackend))
	}

	return errs
}
