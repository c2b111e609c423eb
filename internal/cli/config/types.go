// Package config provides configuration management for the fieldsync CLI.
//
// Values are layered with koanf: built-in defaults, then fieldsync.yaml,
// then FIELDSYNC_ environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// SaveConfig tunes the save orchestrator.
type SaveConfig struct {
	Debounce        time.Duration `koanf:"debounce"`
	BulkConcurrency int           `koanf:"bulk_concurrency"`
	Timeout         time.Duration `koanf:"timeout"`
}

// ValidationConfig tunes the validation channel.
type ValidationConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Debounce time.Duration `koanf:"debounce"`
}

// ServerConfig holds the reference record service settings.
type ServerConfig struct {
	Addr   string `koanf:"addr"`
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// Config holds all CLI configuration options.
type Config struct {
	Endpoint     string `koanf:"endpoint"`
	LogLevel     string `koanf:"log_level"`
	LogFormat    string `koanf:"log_format"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Save       SaveConfig       `koanf:"save"`
	Validation ValidationConfig `koanf:"validation"`
	Server     ServerConfig     `koanf:"server"`

	// Strategies overrides the built-in type → strategy table.
	Strategies map[string]core.SaveStrategy `koanf:"strategies"`
	// Debounce holds per-type quiet periods for debounced types.
	Debounce map[string]time.Duration `koanf:"debounce"`
	// Fallbacks is merged over the built-in type fallback chain.
	Fallbacks map[string]string `koanf:"fallbacks"`
	// Fields is the record schema.
	Fields []core.FieldDescriptor `koanf:"fields"`
}

// Default configuration values.
const (
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultSaveDebounce    = time.Second
	DefaultBulkConcurrency = 4
	DefaultSaveTimeout     = 30 * time.Second
	DefaultValidationDelay = 500 * time.Millisecond
	DefaultServerAddr      = ":8080"
	DefaultServerDriver    = "sqlite"
	DefaultServerDSN       = ".fieldsync/records.db"
)

// Field returns the descriptor named key.
func (c *Config) Field(key string) (core.FieldDescriptor, bool) {
	for _, f := range c.Fields {
		if f.Key() == key {
			return f, true
		}
	}
	return core.FieldDescriptor{}, false
}
