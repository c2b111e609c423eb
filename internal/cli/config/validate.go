package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/fieldsync/internal/store"
)

var outputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.OutputFormat != "" && !slices.Contains(outputModes, c.OutputFormat) {
		return fmt.Errorf("output must be one of %s, got %q", strings.Join(outputModes, ", "), c.OutputFormat)
	}

	if c.Save.Debounce < 0 {
		return fmt.Errorf("save.debounce must not be negative")
	}
	if c.Save.Timeout < 0 {
		return fmt.Errorf("save.timeout must not be negative")
	}
	if c.Save.BulkConcurrency < 0 {
		return fmt.Errorf("save.bulk_concurrency must not be negative")
	}
	if c.Validation.Debounce < 0 {
		return fmt.Errorf("validation.debounce must not be negative")
	}

	for fieldType, s := range c.Strategies {
		if !s.IsValid() {
			return fmt.Errorf("strategies.%s: unknown save strategy %q", fieldType, s)
		}
	}
	for fieldType, d := range c.Debounce {
		if d < 0 {
			return fmt.Errorf("debounce.%s must not be negative", fieldType)
		}
	}
	for from, to := range c.Fallbacks {
		if to == "" {
			return fmt.Errorf("fallbacks.%s has no target type", from)
		}
	}

	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		key := f.Key()
		if key == "" {
			return fmt.Errorf("fields[%d] has no name", i)
		}
		if f.Type == "" {
			return fmt.Errorf("field %q has no type", key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate field %q", key)
		}
		seen[key] = true
	}

	if _, err := store.ParseDriver(c.Server.Driver); err != nil {
		return fmt.Errorf("server.driver: %w", err)
	}
	return nil
}

// ParseLevel parses a log level name. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}
