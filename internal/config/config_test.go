package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoad_Defaults verifies defaults apply when no file exists and no
// path was given.
func TestLoad_Defaults(t *testing.T) {
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(oldwd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "data")
	}
	if cfg.DisableBundled {
		t.Error("bundled lexicon should be enabled by default")
	}
	if cfg.EnabledSources != nil {
		t.Errorf("EnabledSources should default to nil (import everything), got %v", cfg.EnabledSources)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

// TestLoad_YAMLFile verifies YAML values override defaults.
func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kotoba.yaml")
	yaml := `data_dir: /var/lib/kotoba
lexicon_dir: dicts
enabled_sources:
  - A.zip
disable_bundled: true
workers: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/var/lib/kotoba" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if len(cfg.EnabledSources) != 1 || cfg.EnabledSources[0] != "A.zip" {
		t.Errorf("EnabledSources = %v", cfg.EnabledSources)
	}
	if !cfg.DisableBundled {
		t.Error("disable_bundled: true in the file should turn the bundled lexicon off")
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}

	if cfg.SnapshotPath() != filepath.Join("/var/lib/kotoba", "dictionary.snap") {
		t.Errorf("SnapshotPath = %q", cfg.SnapshotPath())
	}
	if cfg.PagedStorePath() != filepath.Join("/var/lib/kotoba", "dictionary.db") {
		t.Errorf("PagedStorePath = %q", cfg.PagedStorePath())
	}
}

// TestLoad_ExplicitMissingFile verifies a missing explicit path fails.
func TestLoad_ExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load with missing explicit path should fail")
	}
}
