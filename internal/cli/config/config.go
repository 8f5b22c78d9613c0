// Package config loads doclens configuration from doclens.yml, falling back
// to environment variables (DOCLENS_*) and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full doclens configuration.
type Config struct {
	Repositories  []string       `mapstructure:"repositories"`
	KnowledgeBase KBConfig       `mapstructure:"knowledge_base"`
	Sampling      SamplingConfig `mapstructure:"sampling"`
	Scan          ScanConfig     `mapstructure:"scan"`
}

// KBConfig points at the MongoDB database holding the knowledge base.
type KBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// SamplingConfig controls optional runtime sampling of live collections.
type SamplingConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	URI            string   `mapstructure:"uri"`
	Database       string   `mapstructure:"database"`
	MaxDocuments   int      `mapstructure:"max_documents"`
	MaxCollections int      `mapstructure:"max_collections"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	PIIDetection   bool     `mapstructure:"pii_detection"`
	Denylist       []string `mapstructure:"denylist"` // extra sensitive field names
}

// ScanConfig tunes scan concurrency and local state.
type ScanConfig struct {
	Workers     int    `mapstructure:"workers"`      // repository pool size
	FileWorkers int    `mapstructure:"file_workers"` // incremental parse pool size
	StatePath   string `mapstructure:"state_path"`   // local SQLite scan-state database
}

// Load reads doclens.yml (or doclens.yaml) from the current directory.
// A missing file is fine; defaults and DOCLENS_* environment variables apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("knowledge_base.database", "doclens")
	v.SetDefault("sampling.enabled", false)
	v.SetDefault("sampling.max_documents", 200)
	v.SetDefault("sampling.max_collections", 50)
	v.SetDefault("sampling.timeout_seconds", 10)
	v.SetDefault("sampling.pii_detection", true)
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.file_workers", 8)
	v.SetDefault("scan.state_path", ".doclens/state.db")

	v.SetConfigName("doclens")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Scan.Workers < 1 || cfg.Scan.Workers > 64 {
		return fmt.Errorf("scan.workers must be between 1 and 64, got %d", cfg.Scan.Workers)
	}
	if cfg.Scan.FileWorkers < 1 || cfg.Scan.FileWorkers > 256 {
		return fmt.Errorf("scan.file_workers must be between 1 and 256, got %d", cfg.Scan.FileWorkers)
	}
	if cfg.Sampling.MaxDocuments < 1 {
		return fmt.Errorf("sampling.max_documents must be positive, got %d", cfg.Sampling.MaxDocuments)
	}
	if cfg.Sampling.MaxCollections < 1 {
		return fmt.Errorf("sampling.max_collections must be positive, got %d", cfg.Sampling.MaxCollections)
	}
	if cfg.Sampling.Enabled && cfg.Sampling.URI == "" {
		return fmt.Errorf("sampling.uri is required when sampling is enabled")
	}
	return nil
}

// KBURI returns the knowledge-base URI, letting the environment override the
// config file for deployments that inject credentials.
func KBURI(cfg *Config) string {
	if uri := os.Getenv("DOCLENS_KB_URI"); uri != "" {
		return uri
	}
	return cfg.KnowledgeBase.URI
}

// InProject reports whether the current directory carries a doclens config.
func InProject() bool {
	if _, err := os.Stat("doclens.yml"); err == nil {
		return true
	}
	if _, err := os.Stat("doclens.yaml"); err == nil {
		return true
	}
	return false
}

// ProjectRoot walks up from the working directory looking for doclens.yml.
func ProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "doclens.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "doclens.yaml")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not inside a doclens project (no doclens.yml found)")
		}
		dir = parent
	}
}
