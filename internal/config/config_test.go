package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Engine.Backend != "local" {
		t.Errorf("backend: got %q", cfg.Engine.Backend)
	}
	if cfg.Engine.MaxConcurrency <= 0 {
		t.Errorf("max_concurrency: got %d", cfg.Engine.MaxConcurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Backend != "local" {
		t.Errorf("backend: got %q", cfg.Engine.Backend)
	}
}

func TestLoad_DecodesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[engine]
backend = "docker"
max_concurrency = 8
max_retries = 2
task_timeout = "90s"
work_dir = "/tmp/wdl-work"
log_level = "debug"

[docker]
default_image = "debian:stable"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Backend != "docker" {
		t.Errorf("backend: got %q", cfg.Engine.Backend)
	}
	if cfg.Engine.MaxConcurrency != 8 {
		t.Errorf("max_concurrency: got %d", cfg.Engine.MaxConcurrency)
	}
	if cfg.Engine.TaskTimeout.Duration != 90*time.Second {
		t.Errorf("task_timeout: got %v", cfg.Engine.TaskTimeout)
	}
	if cfg.Docker.DefaultImage != "debian:stable" {
		t.Errorf("default_image: got %q", cfg.Docker.DefaultImage)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[engine]\nbackend = \"cloud\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("unknown backend must be rejected")
	}
}
