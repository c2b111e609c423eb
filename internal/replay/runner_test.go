package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/fieldsync/internal/clock"
	"github.com/leapstack-labs/fieldsync/internal/events"
	"github.com/leapstack-labs/fieldsync/internal/orchestrator"
	"github.com/leapstack-labs/fieldsync/internal/testutil"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `
fields:
  - {name: notes, type: text, label: Notes}
  - {name: status, type: select, label: Status}
  - {name: summary, type: ai, label: Summary}
  - {name: approval, type: text, label: Approval, config: {save_strategy: manual}}
steps:
  - change: {field: notes, value: a}
  - change: {field: notes, value: abc}
  - exit: notes
  - change: {field: status, value: closed}
  - change: {field: summary, value: first}
  - wait: 200ms
  - change: {field: summary, value: second}
  - wait: 1s
  - change: {field: approval, value: granted}
  - save: approval
  - change: {field: notes, value: unsaved}
  - save_all: true
  - cleanup: true
`

func newRunner(t *testing.T, persister core.Persister) *Runner {
	t.Helper()
	clk := clock.NewEventTimeSource()
	orch, err := orchestrator.New(orchestrator.Config{
		Endpoint:  "local:/records/r1",
		Persister: persister,
		Clock:     clk,
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	r, err := NewRunner(Config{
		Orchestrator: orch,
		Sleep: func(_ context.Context, d time.Duration) error {
			clk.Advance(d)
			return nil
		},
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return r
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(script))
	require.NoError(t, err)
	require.Len(t, s.Steps, 13)
	assert.Equal(t, "change", s.Steps[0].Action())
	assert.Equal(t, "exit", s.Steps[2].Action())
	assert.Equal(t, 200*time.Millisecond, s.Steps[5].Wait)
	assert.Equal(t, "save_all", s.Steps[11].Action())
	assert.Equal(t, "cleanup", s.Steps[12].Action())
	assert.Equal(t, "manual", s.Fields[3].ConfigString("save_strategy"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "no steps", in: "steps: []"},
		{name: "two actions", in: "steps:\n  - exit: notes\n    save: notes\n"},
		{name: "empty step", in: "steps:\n  - {}\n"},
		{name: "change without field", in: "steps:\n  - change: {value: 1}\n"},
		{name: "bad yaml", in: "steps: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestRunner_Run(t *testing.T) {
	persister := &testutil.RecordingPersister{}
	r := newRunner(t, persister)
	s, err := Parse([]byte(script))
	require.NoError(t, err)

	report, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, report.Steps, 13)

	assert.Equal(t, "pending (on_exit)", report.Steps[1].Outcome)
	assert.Equal(t, "Notes saved", report.Steps[2].Outcome)
	assert.Equal(t, "sent", report.Steps[3].Outcome)
	assert.Equal(t, "debouncing", report.Steps[4].Outcome)
	assert.Equal(t, "Approval saved", report.Steps[9].Outcome)
	assert.Equal(t, "1 field saved", report.Steps[11].Outcome)

	var sent []map[string]any
	for _, c := range persister.Calls() {
		sent = append(sent, c.Data)
	}
	assert.Equal(t, []map[string]any{
		{"notes": "abc"},
		{"status": "closed"},
		{"summary": "second"},
		{"approval": "granted"},
		{"notes": "unsaved"},
	}, sent)

	assert.Len(t, report.Events, 5)
	assert.Equal(t, 0, report.Failures())
}

func TestRunner_FailedSaveContinues(t *testing.T) {
	persister := &testutil.RecordingPersister{Fail: func(map[string]any) error {
		return errors.New("connection refused")
	}}
	r := newRunner(t, persister)
	s, err := Parse([]byte("steps:\n  - change: {field: notes, value: x}\n  - exit: notes\n  - save_all: true\n"))
	require.NoError(t, err)

	report, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, report.Steps, 3)
	assert.Equal(t, "Failed to save notes: persist failed: connection refused", report.Steps[1].Outcome)
	assert.Equal(t, "nothing to save", report.Steps[2].Outcome)
	assert.Equal(t, 1, report.Failures())
	assert.Equal(t, events.SaveFailed, report.Events[0].Kind)
}

func TestRunner_ConfigurationErrorStops(t *testing.T) {
	r := newRunner(t, &testutil.RecordingPersister{})
	s := &Script{Steps: []Step{
		{Change: &Change{Field: ""}},
		{Cleanup: true},
	}}

	report, err := r.Run(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Len(t, report.Steps, 1)
}

func TestNewRunner_RequiresOrchestrator(t *testing.T) {
	_, err := NewRunner(Config{})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		results []orchestrator.SaveResult
		want    string
	}{
		{name: "empty", want: "nothing to save"},
		{name: "one saved", results: []orchestrator.SaveResult{{}}, want: "1 field saved"},
		{
			name: "mixed",
			results: []orchestrator.SaveResult{
				{},
				{Err: core.HTTPError(500, nil)},
				{Superseded: true},
			},
			want: "1 field saved, 1 failed, 1 superseded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarize(tt.results))
		})
	}
}
