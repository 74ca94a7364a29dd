package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(fp, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return fp
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("config = %+v, want defaults", cfg)
	}
	if cfg.Preferences().FontScale != 1.0 {
		t.Errorf("default font scale = %v, want 1.0", cfg.Preferences().FontScale)
	}
}

func TestLoadFile(t *testing.T) {
	fp := writeConfig(t, `
font_scale: 1.5
cache_dir: /tmp/fable-cache
log_file: /tmp/fable.log
log_level: debug
`)
	cfg, err := Load(fp)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FontScale != 1.5 {
		t.Errorf("FontScale = %v, want 1.5", cfg.FontScale)
	}
	if cfg.CacheDir != "/tmp/fable-cache" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "cache_dir: /tmp/cache\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FontScale != 1.0 {
		t.Errorf("FontScale = %v, want default 1.0", cfg.FontScale)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "font_scale: [not a number\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPreferencesClampsConfiguredScale(t *testing.T) {
	cfg := Config{FontScale: 9.0}
	if got := cfg.Preferences().FontScale; got != 2.0 {
		t.Errorf("clamped scale = %v, want 2.0", got)
	}
}
