package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != (Config{}) {
		t.Fatalf("got %+v, want zero value", cfg)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "emulator: /usr/bin/qemu-x86_64\ntrace_port: 5000\nconnect_delay: 2ms\narch: arm64\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Emulator != "/usr/bin/qemu-x86_64" {
		t.Errorf("Emulator = %q", cfg.Emulator)
	}
	if cfg.TracePort != 5000 {
		t.Errorf("TracePort = %d", cfg.TracePort)
	}
	if cfg.ConnectDelay != 2*time.Millisecond {
		t.Errorf("ConnectDelay = %v", cfg.ConnectDelay)
	}
	if cfg.Arch != "arm64" {
		t.Errorf("Arch = %q", cfg.Arch)
	}
	if cfg.GDBPort != 0 {
		t.Errorf("GDBPort = %d, want 0 (unset in file)", cfg.GDBPort)
	}
}

func TestMergePrecedence(t *testing.T) {
	def := Default()
	file := Config{TracePort: 5000, Arch: "arm64"}
	merged := Merge(def, file)
	if merged.TracePort != 5000 {
		t.Errorf("TracePort = %d, want file override 5000", merged.TracePort)
	}
	if merged.GDBPort != def.GDBPort {
		t.Errorf("GDBPort = %d, want default %d preserved", merged.GDBPort, def.GDBPort)
	}

	flags := Config{TracePort: 9999}
	final := Merge(merged, flags)
	if final.TracePort != 9999 {
		t.Errorf("TracePort = %d, want flag override 9999", final.TracePort)
	}
	if final.Arch != "arm64" {
		t.Errorf("Arch = %q, want file value to survive flag merge with no arch flag", final.Arch)
	}
}

func TestAddrHelpers(t *testing.T) {
	cfg := Config{TracePort: 4242, GDBPort: 1234}
	if cfg.TraceAddr() != "localhost:4242" {
		t.Errorf("TraceAddr = %q", cfg.TraceAddr())
	}
	if cfg.GDBAddr() != "localhost:1234" {
		t.Errorf("GDBAddr = %q", cfg.GDBAddr())
	}
}
