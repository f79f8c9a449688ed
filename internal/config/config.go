// Package config loads the rarely-changed parts of qtrace's external
// interface (loader/library paths, emulator and plugin binaries, socket
// ports, connector retry budget, syscall architecture) from an optional
// YAML file, which the CLI's flags then overlay. Precedence is
// flag > config file > built-in default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every externally-tunable setting named in the external
// interfaces section: emulator invocation, the two sockets' ports, the
// connector's retry budget, and the syscall table's architecture axis.
type Config struct {
	LDPath   string `yaml:"ld_path"`
	LibsPath string `yaml:"libs_path"`
	Emulator string `yaml:"emulator"`
	Plugin   string `yaml:"plugin"`

	TracePort int `yaml:"trace_port"`
	GDBPort   int `yaml:"gdb_port"`

	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`

	Arch string `yaml:"arch"`
}

// Default returns qtrace's built-in defaults, used when neither a config
// file nor a flag supplies a value.
func Default() Config {
	return Config{
		Emulator:        "qemu-trace",
		TracePort:       4242,
		GDBPort:         1234,
		ConnectAttempts: 64,
		ConnectDelay:    time.Millisecond,
		Arch:            "amd64",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/qtrace/config.yaml, falling back to
// $HOME/.config/qtrace/config.yaml when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "qtrace", "config.yaml")
}

// Load reads and parses the YAML config file at path. A missing file is
// not an error: it returns a zero Config, letting the caller fall through
// to defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Merge layers overlay's non-zero fields on top of base, returning the
// result. Called twice by the CLI: once with (default, file) and once
// with (that result, flags) to realize flag > file > default.
func Merge(base, overlay Config) Config {
	out := base
	if overlay.LDPath != "" {
		out.LDPath = overlay.LDPath
	}
	if overlay.LibsPath != "" {
		out.LibsPath = overlay.LibsPath
	}
	if overlay.Emulator != "" {
		out.Emulator = overlay.Emulator
	}
	if overlay.Plugin != "" {
		out.Plugin = overlay.Plugin
	}
	if overlay.TracePort != 0 {
		out.TracePort = overlay.TracePort
	}
	if overlay.GDBPort != 0 {
		out.GDBPort = overlay.GDBPort
	}
	if overlay.ConnectAttempts != 0 {
		out.ConnectAttempts = overlay.ConnectAttempts
	}
	if overlay.ConnectDelay != 0 {
		out.ConnectDelay = overlay.ConnectDelay
	}
	if overlay.Arch != "" {
		out.Arch = overlay.Arch
	}
	return out
}

// TraceAddr returns the localhost:port address for the trace socket.
func (c Config) TraceAddr() string {
	return fmt.Sprintf("localhost:%d", c.TracePort)
}

// GDBAddr returns the localhost:port address for the debug-remote socket.
func (c Config) GDBAddr() string {
	return fmt.Sprintf("localhost:%d", c.GDBPort)
}
