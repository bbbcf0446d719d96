// Package config loads the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version   string    `yaml:"version"`
	LogLevel  string    `yaml:"log_level,omitempty"`
	Ingest    Ingest    `yaml:"ingest,omitempty"`
	Journal   Journal   `yaml:"journal,omitempty"`
	Storage   Storage   `yaml:"storage,omitempty"`
	Telemetry Telemetry `yaml:"telemetry,omitempty"`
}

// Ingest controls how report lines are consumed and classified.
type Ingest struct {
	// Source is the report stream; "-" reads stdin.
	Source string `yaml:"source"`
	// CollectAudit enables the third classification set.
	CollectAudit bool `yaml:"collect_audit"`
	// Translations rewrite directory prefixes on reported paths.
	Translations []Translation `yaml:"translations,omitempty"`
}

// Translation is a single source-to-target directory rewrite.
type Translation struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Journal controls durable capture of raw report lines.
type Journal struct {
	Enabled       bool          `yaml:"enabled"`
	Dir           string        `yaml:"dir"`
	MaxFileSize   int64         `yaml:"max_file_size,omitempty"`
	RetentionDays int           `yaml:"retention_days,omitempty"`
	CleanupEvery  time.Duration `yaml:"cleanup_every,omitempty"`
}

// Storage controls where frozen sessions are persisted.
type Storage struct {
	Dir string `yaml:"dir"`
}

// Telemetry controls metrics and tracing export.
type Telemetry struct {
	ServiceName  string `yaml:"service_name,omitempty"`
	Environment  string `yaml:"environment,omitempty"`
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
	MetricsAddr  string `yaml:"metrics_addr,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:  "v1",
		LogLevel: "info",
		Ingest: Ingest{
			Source: "-",
		},
		Journal: Journal{
			Enabled:       false,
			Dir:           "journal",
			MaxFileSize:   64 * 1024 * 1024,
			RetentionDays: 7,
			CleanupEvery:  time.Hour,
		},
		Storage: Storage{
			Dir: "sessions",
		},
		Telemetry: Telemetry{
			ServiceName: "aita",
			Environment: "production",
			MetricsAddr: ":9090",
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Ingest.Source == "" {
		return fmt.Errorf("ingest source is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage dir is required")
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		return fmt.Errorf("journal dir is required when journal is enabled")
	}
	for i, tr := range c.Ingest.Translations {
		if tr.From == "" || tr.To == "" {
			return fmt.Errorf("translation %d needs both from and to", i)
		}
	}
	return nil
}
