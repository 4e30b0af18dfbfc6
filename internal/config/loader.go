package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// configNames are tried in order inside a config directory.
var configNames = []string{"config.yaml", "config.yml", "config.json"}

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed files return an error.
func Load(globalPath, projectPath string) (*RunnerConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths, then applies
// TRAINQUEUE_* environment overrides.
// Global: ~/.trainqueue/config.{yaml,yml,json}
// Project: .trainqueue/config.{yaml,yml,json} (relative to cwd)
func LoadDefault() (*RunnerConfig, error) {
	globalDir, projectDir, err := DefaultDirs()
	if err != nil {
		return nil, err
	}

	cfg, err := Load(FindConfigFile(globalDir), FindConfigFile(projectDir))
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultDirs returns the global and project config directories.
func DefaultDirs() (globalDir, projectDir string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".trainqueue"), ".trainqueue", nil
}

// FindConfigFile returns the first existing config file in dir, or "" if none.
func FindConfigFile(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// mergeConfigFile reads a JSON or YAML config file and merges it into base.
// Missing files are silently skipped. Malformed content returns an error.
func mergeConfigFile(base *RunnerConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded RunnerConfig
	if err := decode(path, data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	merge(base, &loaded)
	return nil
}

func decode(path string, data []byte, out *RunnerConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, out)
	default:
		return json.Unmarshal(data, out)
	}
}

// merge copies every field set in over onto base.
func merge(base, over *RunnerConfig) {
	setString(&base.Queue.PendingFile, over.Queue.PendingFile)
	setString(&base.Queue.CompletedFile, over.Queue.CompletedFile)

	setString(&base.Job.Command, over.Job.Command)
	if over.Job.Subcommand != nil {
		base.Job.Subcommand = over.Job.Subcommand
	}
	setString(&base.Job.ResourceDir, over.Job.ResourceDir)
	setString(&base.Job.Extension, over.Job.Extension)
	setString(&base.Job.WorkDir, over.Job.WorkDir)
	if over.Job.Args != nil {
		base.Job.Args = over.Job.Args
	}
	if over.Job.Env != nil {
		base.Job.Env = over.Job.Env
	}

	if over.Strict != nil {
		base.Strict = over.Strict
	}
	setString(&base.Ledger, over.Ledger)

	setString(&base.Tracing.Exporter, over.Tracing.Exporter)
	setString(&base.Tracing.Endpoint, over.Tracing.Endpoint)
	if over.Tracing.Insecure != nil {
		base.Tracing.Insecure = over.Tracing.Insecure
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
