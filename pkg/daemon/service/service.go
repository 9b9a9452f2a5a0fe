// Package service manages the unitgated systemd system service unit.
package service

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	serviceName = "unitgated.service"
	socketName  = "unitgated.socket"
)

// UnitDir is where system units are installed.
var UnitDir = "/etc/systemd/system"

// Options controls what Install writes.
type Options struct {
	// BinaryPath is the unitgated executable. Looked up in PATH when empty.
	BinaryPath string
	ConfigPath string
	// Listen, when set, also installs a socket unit bound to this address.
	Listen string
}

// UnitContents returns the service unit for the given binary and config.
func UnitContents(binaryPath, configPath string) string {
	return fmt.Sprintf(`[Unit]
Description=unitgate HTTP API for systemd services
Documentation=https://github.com/modoterra/unitgate
After=network.target

[Service]
Type=notify
ExecStart=%s --config %s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`, binaryPath, configPath)
}

// SocketContents returns a socket unit that activates unitgated on listen.
func SocketContents(listen string) string {
	return fmt.Sprintf(`[Unit]
Description=unitgate HTTP API socket

[Socket]
ListenStream=%s

[Install]
WantedBy=sockets.target
`, listen)
}

// UnitPath returns the path of the service unit file.
func UnitPath() string {
	return filepath.Join(UnitDir, serviceName)
}

// SocketPath returns the path of the socket unit file.
func SocketPath() string {
	return filepath.Join(UnitDir, socketName)
}

// Write writes the unit files for opts without touching systemd.
func Write(opts Options) error {
	if opts.BinaryPath == "" {
		p, err := exec.LookPath("unitgated")
		if err != nil {
			return fmt.Errorf("unitgated not found in PATH: %w", err)
		}
		opts.BinaryPath = p
	}
	binaryPath, err := filepath.Abs(opts.BinaryPath)
	if err != nil {
		return fmt.Errorf("cannot resolve unitgated path: %w", err)
	}

	if err := os.MkdirAll(UnitDir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	if err := os.WriteFile(UnitPath(), []byte(UnitContents(binaryPath, opts.ConfigPath)), 0o644); err != nil {
		return fmt.Errorf("cannot write unit file: %w", err)
	}

	if opts.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(opts.Listen); err != nil {
		return fmt.Errorf("invalid socket address %q: %w", opts.Listen, err)
	}
	if err := os.WriteFile(SocketPath(), []byte(SocketContents(opts.Listen)), 0o644); err != nil {
		return fmt.Errorf("cannot write socket file: %w", err)
	}
	return nil
}

// Install writes the unit files, reloads systemd, and enables+starts the
// socket when one was written, otherwise the service.
func Install(opts Options) error {
	if err := Write(opts); err != nil {
		return err
	}
	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	if opts.Listen != "" {
		return systemctl("enable", "--now", socketName)
	}
	return systemctl("enable", "--now", serviceName)
}

// Uninstall stops+disables the units, removes their files, and reloads systemd.
func Uninstall() error {
	// Best-effort stop and disable; ignore errors if not running.
	_ = systemctl("stop", socketName, serviceName)
	_ = systemctl("disable", socketName, serviceName)

	for _, p := range []string{SocketPath(), UnitPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cannot remove unit file: %w", err)
		}
	}

	return systemctl("daemon-reload")
}

// Status returns a human-readable status string. check probes the running
// API, typically its /health route.
func Status(ctx context.Context, check func(context.Context) error) string {
	var lines []string

	if err := check(ctx); err == nil {
		lines = append(lines, "api: healthy")
	} else {
		lines = append(lines, "api: unreachable ("+err.Error()+")")
	}

	if _, err := os.Stat(UnitPath()); err == nil {
		lines = append(lines, "systemd service: "+isActive(serviceName))
	} else {
		lines = append(lines, "systemd service: not installed")
	}
	if _, err := os.Stat(SocketPath()); err == nil {
		lines = append(lines, "systemd socket: "+isActive(socketName))
	}

	return strings.Join(lines, "\n")
}

func isActive(unit string) string {
	out, err := exec.Command("systemctl", "is-active", unit).Output()
	state := strings.TrimSpace(string(out))
	if err != nil && state == "" {
		state = "unknown"
	}
	return state
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
