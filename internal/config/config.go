// Package config loads and validates the wdlkit TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s"
// or "2m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the runtime configuration for evaluation.
type Config struct {
	Engine Engine `toml:"engine"`
	Docker Docker `toml:"docker"`
}

// Engine holds scheduler and retry settings.
type Engine struct {
	// Backend selects command execution: "local" or "docker".
	Backend string `toml:"backend"`
	// MaxConcurrency bounds concurrent scatter iterations and task runs.
	MaxConcurrency int64 `toml:"max_concurrency"`
	// MaxRetries re-runs a failed task this many times.
	MaxRetries int `toml:"max_retries"`
	// TaskTimeout is decoded from the config file; evaluation does not
	// apply it, so task attempts run without a time bound.
	TaskTimeout Duration `toml:"task_timeout"`
	// WorkDir is the root for task work directories.
	WorkDir string `toml:"work_dir"`
	// JournalDB is the sqlite path recording task executions; empty
	// disables the journal.
	JournalDB string `toml:"journal_db"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `toml:"log_level"`
}

// Docker holds container execution settings.
type Docker struct {
	// DefaultImage runs tasks that set no container requirement.
	DefaultImage string `toml:"default_image"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: Engine{
			Backend:        "local",
			MaxConcurrency: int64(runtime.NumCPU()),
			MaxRetries:     0,
			WorkDir:        filepath.Join(os.TempDir(), "wdlkit"),
			LogLevel:       "info",
		},
		Docker: Docker{
			DefaultImage: "ubuntu:latest",
		},
	}
}

// Load reads the configuration file at path, layered over the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine.Backend)) {
	case "", "local", "docker":
	default:
		return fmt.Errorf("unknown backend %q (expected local or docker)", c.Engine.Backend)
	}
	if c.Engine.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be non-negative")
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Engine.LogLevel)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.Engine.LogLevel)
	}
	return nil
}
