// Package config holds the engine configuration. A Config is constructed
// once at start-up and passed explicitly into the ingestion orchestrator
// and the adapters; nothing reads configuration ambiently.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the settings value supplied to the engine at start-up.
type Config struct {
	// DataDir is where the snapshot, paged store and resource cache live.
	DataDir string `yaml:"data_dir" env:"KOTOBA_DATA_DIR" env-default:"data"`

	// LexiconDir is the directory scanned for packaged lexicons.
	LexiconDir string `yaml:"lexicon_dir" env:"KOTOBA_LEXICON_DIR" env-default:"user_dictionaries"`

	// EnabledSources filters discovered packaged lexicons by name. A nil
	// list means "import everything discovered"; an empty list means
	// "import nothing".
	EnabledSources []string `yaml:"enabled_sources"`

	// DisableBundled turns the bundled lexicon import off entirely.
	// The zero value keeps it enabled, so an explicit setting in the
	// config file is never mistaken for an unset field and overwritten
	// by a default.
	DisableBundled bool `yaml:"disable_bundled" env:"KOTOBA_DISABLE_BUNDLED"`

	// BundledPaths are the bundled lexicon JSON files.
	BundledPaths []string `yaml:"bundled_paths"`

	// RulesPath is the deconjugation-rule JSON file (optional).
	RulesPath string `yaml:"rules_path"`

	// PrioritiesPath is the priority-list JSON file (optional).
	PrioritiesPath string `yaml:"priorities_path"`

	// Workers bounds the ingestion worker pool. Zero means one worker
	// per CPU.
	Workers int `yaml:"workers" env:"KOTOBA_WORKERS" env-default:"0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"KOTOBA_LOG_LEVEL" env-default:"info"`

	// LogFormat is text or json.
	LogFormat string `yaml:"log_format" env:"KOTOBA_LOG_FORMAT" env-default:"text"`
}

// SnapshotPath returns the location of the eager snapshot file.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "dictionary.snap")
}

// PagedStorePath returns the location of the paged store file.
func (c *Config) PagedStorePath() string {
	return filepath.Join(c.DataDir, "dictionary.db")
}

// ResourceCacheDir returns the shared directory for extracted and
// transcoded lexicon resources.
func (c *Config) ResourceCacheDir() string {
	return filepath.Join(c.DataDir, "resources")
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. A missing file is not an error unless
// the path was given explicitly; defaults and environment still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = "kotoba.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	return &cfg, nil
}
