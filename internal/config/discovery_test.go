package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiscoverPrefersEnv(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv(EnvConfigPath, path)

	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if got != path {
		t.Fatalf("Discover() = %q, want %q", got, path)
	}
}

func TestDiscoverEnvMustExist(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Discover()
	if err == nil || !strings.Contains(err.Error(), EnvConfigPath) {
		t.Fatalf("expected error naming %s, got %v", EnvConfigPath, err)
	}
}

func TestDiscoverUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearOverrides(t)

	userPath := filepath.Join(home, ".config", "speclaunch", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userPath, []byte("log:\n  level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if got != userPath {
		t.Fatalf("Discover() = %q, want %q", got, userPath)
	}

	cfg, err := LoadDiscovered()
	if err != nil {
		t.Fatalf("LoadDiscovered() failed: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.SourcePath != userPath {
		t.Fatalf("unexpected config: level=%q source=%q", cfg.Log.Level, cfg.SourcePath)
	}
}

func TestLoadDiscoveredFallsBackToDefaults(t *testing.T) {
	if fileExists(systemConfigPath) {
		t.Skipf("%s exists on this machine", systemConfigPath)
	}
	t.Setenv("HOME", t.TempDir())
	clearOverrides(t)
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := LoadDiscovered()
	if err != nil {
		t.Fatalf("LoadDiscovered() failed: %v", err)
	}
	if cfg.SourcePath != "" {
		t.Errorf("SourcePath = %q, want empty", cfg.SourcePath)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("env override not applied to defaults: %q", cfg.Log.Level)
	}
}

func TestSearchPaths(t *testing.T) {
	t.Setenv("HOME", "/home/someone")
	paths := SearchPaths()
	if len(paths) != 2 {
		t.Fatalf("SearchPaths() = %v", paths)
	}
	if paths[0] != "/home/someone/.config/speclaunch/config.yaml" || paths[1] != systemConfigPath {
		t.Fatalf("SearchPaths() = %v", paths)
	}
}
