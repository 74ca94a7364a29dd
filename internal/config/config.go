// Package config loads the reader's YAML configuration and builds its
// file-backed logger. A TUI owns the terminal, so nothing here ever writes
// to stdout or stderr.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"fable/internal/engine"
)

// Config holds the few knobs the shells expose.
type Config struct {
	// FontScale is the starting font scale for books without a saved
	// bookmark.
	FontScale float64 `yaml:"font_scale"`
	// CacheDir overrides the download cache location.
	CacheDir string `yaml:"cache_dir,omitempty"`
	// LogFile enables logging when set. Empty disables it.
	LogFile string `yaml:"log_file,omitempty"`
	// LogLevel is debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		FontScale: engine.DefaultPreferences().FontScale,
		LogLevel:  "info",
	}
}

// DefaultPath returns XDG_CONFIG_HOME/fable/config.yaml or the home
// equivalent.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "fable", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fable", "config.yaml")
}

// Load reads the config at path, falling back to defaults when the file
// does not exist. A file that exists but does not parse is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.FontScale == 0 {
		cfg.FontScale = engine.DefaultPreferences().FontScale
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// Preferences translates the configured defaults into an initial
// preferences snapshot.
func (c Config) Preferences() engine.Preferences {
	return engine.Preferences{FontScale: c.FontScale}.Clamped()
}
