package config

import "fmt"

// StateConfig selects and configures the state store backend.
type StateConfig struct {
	// Backend is one of memory, file, sqlite, postgres, redis, s3
	Backend string `yaml:"backend" json:"backend"`

	// Path is the JSON file for the file backend
	Path string `yaml:"path" json:"path"`

	// DSN is the data source name for sqlite and postgres
	DSN string `yaml:"dsn" json:"dsn"`
	// Table holds one row per stream for sql backends
	Table string `yaml:"table" json:"table"`

	// URL is the redis connection URL (redis://host:port/db)
	URL string `yaml:"url" json:"url"`

	// Bucket and Region address the s3 backend; Endpoint overrides the AWS endpoint
	Bucket   string `yaml:"bucket" json:"bucket"`
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Namespace prefixes redis keys and s3 object names
	Namespace string `yaml:"namespace" json:"namespace"`
}

// SyncConfig is the document the CLI loads: one source, one sink, one state store.
type SyncConfig struct {
	Source      BaseConfig  `yaml:"source" json:"source"`
	Destination BaseConfig  `yaml:"destination" json:"destination"`
	State       StateConfig `yaml:"state" json:"state"`
}

// NewSyncConfig returns a SyncConfig with defaults for every section.
func NewSyncConfig() *SyncConfig {
	return &SyncConfig{
		Source:      *NewBaseConfig("gocardless", "gocardless"),
		Destination: *NewBaseConfig("jsonl", "jsonl"),
		State: StateConfig{
			Backend:   "file",
			Path:      "state.json",
			Table:     "connector_state",
			Namespace: "gocardless",
		},
	}
}

// LoadSyncConfig reads a sync document on top of the defaults.
func LoadSyncConfig(path string) (*SyncConfig, error) {
	cfg := NewSyncConfig()
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Source.Security.Credentials == nil {
		cfg.Source.Security.Credentials = make(map[string]string)
	}
	if cfg.Destination.Security.Credentials == nil {
		cfg.Destination.Security.Credentials = make(map[string]string)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates all sections.
func (c *SyncConfig) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	switch c.State.Backend {
	case "memory", "file", "sqlite", "postgres", "redis", "s3":
	default:
		return fmt.Errorf("state: unknown backend %q", c.State.Backend)
	}
	return nil
}
