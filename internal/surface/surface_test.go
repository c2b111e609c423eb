package surface

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/fieldsync/internal/orchestrator"
	"github.com/leapstack-labs/fieldsync/internal/testutil"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = []core.FieldDescriptor{
	{Name: "status", Type: "select"},
	{Name: "notes", Type: "text"},
	{Name: "approval", Type: "text", Config: map[string]any{"save_strategy": "manual"}},
}

func setup(t *testing.T, initial string) (*FileSurface, *testutil.RecordingPersister, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "record.yaml")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	persister := &testutil.RecordingPersister{}
	orch, err := orchestrator.New(orchestrator.Config{
		Endpoint:  "local:/records/r1",
		Persister: persister,
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	s, err := New(Config{Path: path, Fields: testFields, Orchestrator: orch, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return s, persister, path
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = New(Config{Path: "x.yaml"})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestSync_OnlyChangedFields(t *testing.T) {
	s, persister, path := setup(t, "fields:\n  status: open\n  notes: draft\n")
	require.NoError(t, s.Load())
	ctx := context.Background()

	write(t, path, "fields:\n  status: open\n  notes: final\n")
	pass, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"notes"}, pass.Changed)
	require.Len(t, pass.Results, 1)
	assert.True(t, pass.Results[0].Success())

	calls := persister.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"notes": "final"}, calls[0].Data)
}

func TestSync_ManualFieldWaitsForSaveList(t *testing.T) {
	s, persister, path := setup(t, "fields: {}\n")
	require.NoError(t, s.Load())
	ctx := context.Background()

	write(t, path, "fields:\n  approval: granted\n")
	_, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, persister.Count())
	assert.Equal(t, []string{"approval"}, s.orch.PendingKeys())

	write(t, path, "fields:\n  approval: granted\nsave: [approval]\n")
	pass, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, pass.Changed)
	require.Len(t, pass.Results, 1)
	assert.Equal(t, 1, persister.Count())
	assert.False(t, s.orch.HasUnsavedChanges())
}

func TestSync_ImmediateFieldSavesOnChange(t *testing.T) {
	s, persister, path := setup(t, "")
	require.NoError(t, s.Load())

	write(t, path, "fields:\n  status: closed\n")
	pass, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, pass.Changed)
	assert.Empty(t, pass.Results, "immediate saves are not exit results")
	assert.Equal(t, 1, persister.Count())
}

func TestSync_ParseError(t *testing.T) {
	s, _, path := setup(t, "")
	write(t, path, "fields: [unterminated\n")
	_, err := s.Sync(context.Background())
	assert.Error(t, err)
}

func TestRun_WatchesFile(t *testing.T) {
	s, persister, path := setup(t, "fields:\n  notes: draft\n")
	s.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The watcher may not be ready for the first writes, so each attempt
	// writes a fresh value.
	attempt := 0
	require.Eventually(t, func() bool {
		attempt++
		write(t, path, fmt.Sprintf("fields:\n  notes: edit-%d\n", attempt))
		return persister.Count() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, persister.Calls()[0].Data["notes"], "edit-")
	assert.False(t, s.orch.HasUnsavedChanges())
}
