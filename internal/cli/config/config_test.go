package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, time.Second, cfg.Save.Debounce)
	assert.Equal(t, 4, cfg.Save.BulkConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Save.Timeout)
	assert.False(t, cfg.Validation.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Validation.Debounce)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Server.Driver)
	assert.Equal(t, DefaultServerDSN, cfg.Server.DSN)
	assert.Same(t, cfg, GetCurrentConfig())
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, `endpoint: https://api.example.com/records/r1
save:
  debounce: 1200ms
  bulk_concurrency: 2
validation:
  enabled: true
strategies:
  tags: Continuous
  notes: manual
  text: on-exit
debounce:
  ai: 2s
fallbacks:
  score: number
fields:
  - name: status
    type: select
    label: Status
    config:
      options: [open, closed]
  - name: summary
    slug: ai_summary
    type: ai
server:
  dsn: data/records.db
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "https://api.example.com/records/r1", cfg.Endpoint)
	assert.Equal(t, 1200*time.Millisecond, cfg.Save.Debounce)
	assert.Equal(t, 2, cfg.Save.BulkConcurrency)
	assert.True(t, cfg.Validation.Enabled)
	assert.Equal(t, map[string]core.SaveStrategy{
		"tags":  core.StrategyContinuous,
		"notes": core.StrategyManual,
		"text":  core.StrategyOnExit,
	}, cfg.Strategies)
	assert.Equal(t, 2*time.Second, cfg.Debounce["ai"])
	assert.Equal(t, "number", cfg.Fallbacks["score"])

	require.Len(t, cfg.Fields, 2)
	assert.Equal(t, "status", cfg.Fields[0].Key())
	assert.Equal(t, []string{"open", "closed"}, cfg.Fields[0].ConfigStrings("options"))
	assert.Equal(t, "ai_summary", cfg.Fields[1].RemoteKey())

	field, ok := cfg.Field("summary")
	require.True(t, ok)
	assert.Equal(t, "ai", field.Type)
	_, ok = cfg.Field("missing")
	assert.False(t, ok)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "records.db"), cfg.Server.DSN)
}

func TestLoadConfig_UnknownStrategy(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "strategies:\n  tags: sometimes\n")
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown save strategy")
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "endpoint: from_file\nsave:\n  bulk_concurrency: 2\n")
	t.Setenv("FIELDSYNC_ENDPOINT", "from_env")
	t.Setenv("FIELDSYNC_SAVE__BULK_CONCURRENCY", "8")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Endpoint)
	assert.Equal(t, 8, cfg.Save.BulkConcurrency)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "endpoint: from_file\n")
	t.Setenv("FIELDSYNC_ENDPOINT", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("endpoint", "", "endpoint")
	flags.String("log-level", "", "log level")
	require.NoError(t, flags.Set("endpoint", "from_flag"))
	require.NoError(t, flags.Set("log-level", "debug"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from_flag", cfg.Endpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()

	t.Setenv("FIELDSYNC_ENDPOINT", "from_env")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("endpoint", "", "endpoint")

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Endpoint)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfig()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			LogLevel:     "info",
			OutputFormat: "auto",
			Server:       ServerConfig{Driver: "sqlite"},
			Fields: []core.FieldDescriptor{
				{Name: "title", Type: "text"},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, errSubstr: "log_level"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, errSubstr: "log_format"},
		{name: "bad output", mutate: func(c *Config) { c.OutputFormat = "html" }, errSubstr: "output must be one of"},
		{name: "negative debounce", mutate: func(c *Config) { c.Save.Debounce = -time.Second }, errSubstr: "save.debounce"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Save.BulkConcurrency = -1 }, errSubstr: "bulk_concurrency"},
		{name: "negative validation debounce", mutate: func(c *Config) { c.Validation.Debounce = -1 }, errSubstr: "validation.debounce"},
		{
			name:      "invalid strategy",
			mutate:    func(c *Config) { c.Strategies = map[string]core.SaveStrategy{"tags": "later"} },
			errSubstr: "strategies.tags",
		},
		{
			name:      "negative type debounce",
			mutate:    func(c *Config) { c.Debounce = map[string]time.Duration{"ai": -time.Second} },
			errSubstr: "debounce.ai",
		},
		{
			name:      "empty fallback",
			mutate:    func(c *Config) { c.Fallbacks = map[string]string{"score": ""} },
			errSubstr: "fallbacks.score",
		},
		{
			name:      "unnamed field",
			mutate:    func(c *Config) { c.Fields = append(c.Fields, core.FieldDescriptor{Type: "text"}) },
			errSubstr: "fields[1] has no name",
		},
		{
			name:      "untyped field",
			mutate:    func(c *Config) { c.Fields = append(c.Fields, core.FieldDescriptor{Name: "notes"}) },
			errSubstr: `field "notes" has no type`,
		},
		{
			name:      "duplicate field",
			mutate:    func(c *Config) { c.Fields = append(c.Fields, core.FieldDescriptor{Name: "title", Type: "textarea"}) },
			errSubstr: `duplicate field "title"`,
		},
		{name: "unknown driver", mutate: func(c *Config) { c.Server.Driver = "mysql" }, errSubstr: "server.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, &Config{LogLevel: "warn", LogFormat: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "field", "title")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"field":"title"`)

	buf.Reset()
	logger, err = NewLogger(&buf, &Config{LogLevel: "warn", Verbose: true})
	require.NoError(t, err)
	logger.Debug("details")
	assert.Contains(t, buf.String(), "msg=details")

	_, err = NewLogger(&buf, &Config{LogLevel: "nope"})
	assert.Error(t, err)
}

func TestGetLogger_Fallback(t *testing.T) {
	logger := GetLogger(context.Background())
	require.NotNil(t, logger)

	custom, err := NewLogger(&bytes.Buffer{}, &Config{})
	require.NoError(t, err)
	ctx := context.WithValue(context.Background(), LoggerKey(), custom)
	assert.Same(t, custom, GetLogger(ctx))
}
