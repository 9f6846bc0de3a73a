package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/amd/internal/log"
)

// keyComments annotates the written default config.
var keyComments = map[string]string{
	"shell":           "Launcher for the command line (default: $SHELL, then /bin/sh)",
	"debounce":        "Minimum time between two file-triggered runs",
	"path":            "Directory to watch (default: current directory)",
	"supersede":       "Kill a running command when a file changes",
	"diagnostics_env": "Variable set to \"1\" in the child; empty disables",
	"watch":           "Directory names below are never watched",
	"history":         "Run summaries; output is never stored",
	"tracing":         "One span per run; exporter: none, file, stdout, otlp",
	"ui":              "Display settings",
}

// DefaultConfigYAML renders Defaults as a commented YAML document.
func DefaultConfigYAML() ([]byte, error) {
	d := Defaults()

	doc := map[string]any{
		"shell":           d.Shell,
		"debounce":        d.Debounce.String(),
		"path":            d.Path,
		"supersede":       d.Supersede,
		"diagnostics_env": d.DiagnosticsEnv,
		"watch":           map[string]any{"ignore": d.Watch.Ignore},
		"history": map[string]any{
			"enabled": d.History.Enabled,
			"path":    d.History.Path,
			"limit":   d.History.Limit,
		},
		"tracing": map[string]any{
			"enabled":       d.Tracing.Enabled,
			"exporter":      d.Tracing.Exporter,
			"file_path":     d.Tracing.FilePath,
			"otlp_endpoint": d.Tracing.OTLPEndpoint,
			"sample_rate":   d.Tracing.SampleRate,
		},
		"ui": map[string]any{
			"follow":    d.UI.Follow,
			"show_help": d.UI.ShowHelp,
		},
	}

	var root yaml.Node
	if err := root.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if c, ok := keyComments[root.Content[i].Value]; ok {
			root.Content[i].HeadComment = c
		}
	}

	out := yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "amd configuration",
		Content:     []*yaml.Node{&root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	_ = enc.Close()
	return buf.Bytes(), nil
}

// WriteDefaultConfig creates a config file at configPath with default
// settings and comments. The write goes through a temp file and rename.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	data, err := DefaultConfigYAML()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".amd.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
