// Package config loads the unitgated configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where unitgated looks for its configuration.
const DefaultPath = "/etc/unitgate/unitgate.yaml"

// EnvPath overrides DefaultPath when set.
const EnvPath = "UNITGATE_CONFIG"

// Action backends.
const (
	BackendExec = "exec"
	BackendDBus = "dbus"
)

// Config is the unitgated configuration.
type Config struct {
	// Listen is the TCP address to serve on. Ignored under socket activation.
	Listen string `yaml:"listen"`

	// TokenFile holds the shared bearer secret, plain or bcrypt-hashed.
	// It must not live in version control.
	TokenFile string `yaml:"token_file"`

	// CommandTimeout bounds every systemctl/journalctl invocation.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	LogLevel string `yaml:"log_level"`

	Systemctl  string `yaml:"systemctl"`
	Journalctl string `yaml:"journalctl"`

	// Privilege is prepended to start/stop/restart commands.
	// An explicit empty list runs systemctl directly (daemon running as root).
	Privilege []string `yaml:"privilege"`

	// ActionBackend selects how start/stop/restart reach systemd: exec or dbus.
	ActionBackend string `yaml:"action_backend"`

	// FilePath is the file this config was loaded from, if any.
	FilePath string `yaml:"-"`
}

// Default returns the configuration used for any field the file leaves out.
func Default() *Config {
	return &Config{
		Listen:         "127.0.0.1:5000",
		TokenFile:      "/etc/unitgate/token",
		CommandTimeout: 10 * time.Second,
		LogLevel:       "info",
		Systemctl:      "systemctl",
		Journalctl:     "journalctl",
		Privilege:      []string{"sudo", "-n"},
		ActionBackend:  BackendExec,
	}
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads and parses the file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.FilePath = path
	return c, nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
