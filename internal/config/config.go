// Package config provides configuration types and defaults for amd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/amd/internal/tracing"
	"github.com/zjrosen/amd/internal/watcher"
)

// Config holds all configuration options for amd.
type Config struct {
	// Shell is the launcher; empty means $SHELL, then /bin/sh.
	Shell    string        `mapstructure:"shell"`
	Debounce time.Duration `mapstructure:"debounce"`
	// Path is the watch root; empty means the working directory.
	Path string `mapstructure:"path"`
	// Supersede kills a running execution when a file changes.
	Supersede bool `mapstructure:"supersede"`
	// DiagnosticsEnv is set to "1" in the child environment. Empty disables it.
	DiagnosticsEnv string         `mapstructure:"diagnostics_env"`
	Watch          WatchConfig    `mapstructure:"watch"`
	History        HistoryConfig  `mapstructure:"history"`
	Tracing        tracing.Config `mapstructure:"tracing"`
	UI             UIConfig       `mapstructure:"ui"`
}

// WatchConfig holds watcher filtering options.
type WatchConfig struct {
	Ignore []string `mapstructure:"ignore"` // directory names never watched
}

// HistoryConfig holds run history options.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Limit   int    `mapstructure:"limit"` // runs kept; 0 keeps all
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	Follow   bool `mapstructure:"follow"`    // keep the output scrolled to the bottom
	ShowHelp bool `mapstructure:"show_help"` // show the full key help on start
}

// Dir returns ~/.config/amd, or "" if the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "amd")
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() string {
	if d := Dir(); d != "" {
		return filepath.Join(d, "config.yaml")
	}
	return ""
}

// ProjectConfigPath is the per-project config file, relative to the
// working directory.
const ProjectConfigPath = ".amd/config.yaml"

// DefaultHistoryPath returns the default run history database path.
func DefaultHistoryPath() string {
	if d := Dir(); d != "" {
		return filepath.Join(d, "history.db")
	}
	return ""
}

// DefaultLogPath returns the default debug log path, falling back to the
// system temp directory.
func DefaultLogPath() string {
	if d := Dir(); d != "" {
		return filepath.Join(d, "debug.log")
	}
	return filepath.Join(os.TempDir(), "amd-debug.log")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	if d := Dir(); d != "" {
		return filepath.Join(d, "traces", "traces.jsonl")
	}
	return ""
}

// Defaults returns a Config with default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()

	return Config{
		Debounce:       500 * time.Millisecond,
		Supersede:      true,
		DiagnosticsEnv: "RUST_BACKTRACE",
		Watch: WatchConfig{
			Ignore: append([]string(nil), watcher.DefaultIgnore...),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath(),
			Limit:   500,
		},
		Tracing: tc,
		UI: UIConfig{
			Follow:   true,
			ShowHelp: false,
		},
	}
}

// Validate checks every section and returns the first problem found.
func (c Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if strings.ContainsAny(c.DiagnosticsEnv, "= \t") {
		return fmt.Errorf("diagnostics_env must be a variable name, got %q", c.DiagnosticsEnv)
	}
	if err := ValidateHistory(c.History); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateHistory checks history configuration for errors.
func ValidateHistory(h HistoryConfig) error {
	if h.Limit < 0 {
		return fmt.Errorf("history.limit must not be negative, got %d", h.Limit)
	}
	if h.Enabled && h.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Empty values use defaults.
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	switch tc.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}

	if tc.Enabled {
		if tc.Exporter == "file" && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}
