package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading configuration files.
type Loader struct {
	baseDir string
}

// NewLoader creates a config loader. The base directory is resolved in this
// order:
//  1. REEF_CONFIG environment variable.
//  2. User home directory.
//  3. /tmp/reef-fallback (containerized environments without a home dir).
//
// The loader never fails to construct; when no config file exists, Load
// returns defaults.
func NewLoader() *Loader {
	if baseDir := os.Getenv("REEF_CONFIG"); baseDir != "" {
		return &Loader{baseDir: baseDir}
	}
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return &Loader{baseDir: homeDir}
	}
	return &Loader{baseDir: "/tmp/reef-fallback"}
}

// Path returns the path to the config file.
func (l *Loader) Path() string {
	return filepath.Join(l.baseDir, DefaultDir, ConfigFile)
}

// Load loads the configuration, returning defaults if the file doesn't exist.
func (l *Loader) Load() (*Config, error) {
	return LoadFile(l.Path())
}

// LoadFile loads configuration from path, returning defaults if the file
// doesn't exist.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	//nolint:gosec // G304: Path is from trusted config directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
