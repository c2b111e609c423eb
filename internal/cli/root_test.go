package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/fieldsync/internal/cli/config"
	"github.com/leapstack-labs/fieldsync/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"version", "types", "serve", "replay", "watch", "history", "completion"})

	for _, flag := range []string{"config", "endpoint", "log-level", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCommand_FlagsReachConfig(t *testing.T) {
	_, cfgPath := testutil.SetupTestWorkspace(t, "endpoint: https://from-file.example.com\n")

	out, err := run(t, "--config", cfgPath, "--endpoint", "https://from-flag.example.com", "-o", "json", "types")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got, "types")

	cfg := config.GetCurrentConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "https://from-flag.example.com", cfg.Endpoint)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, cfgPath := testutil.SetupTestWorkspace(t, "save:\n  bulk_concurrency: -2\n")

	_, err := run(t, "--config", cfgPath, "types")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk_concurrency")
}

func TestRootCommand_Version(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fieldsync v"+Version)
}

func TestCompletionCommand(t *testing.T) {
	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "fieldsync")

	_, err = run(t, "completion", "tcsh")
	assert.Error(t, err)
}
