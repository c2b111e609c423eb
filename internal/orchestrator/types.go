package orchestrator

import (
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Phase is the lifecycle position of a field key or of a save attempt.
type Phase string

// Idle, Dirty and Saving describe a key; Saved, Failed and Superseded are
// the terminal outcomes of a save attempt.
const (
	PhaseIdle       Phase = "idle"
	PhaseDirty      Phase = "dirty"
	PhaseSaving     Phase = "saving"
	PhaseSaved      Phase = "saved"
	PhaseFailed     Phase = "failed"
	PhaseSuperseded Phase = "superseded"
)

// PendingChange is a value awaiting persistence. At most one exists per field key.
type PendingChange struct {
	FieldKey  string
	Field     core.FieldDescriptor
	Value     any
	Strategy  core.SaveStrategy
	Endpoint  string
	Timestamp time.Time

	onSuccess func(SaveResult)
	onError   func(SaveResult)

	// queued marks a change waiting behind an in-flight save of the same key.
	queued bool
	gen    uint64
}

// SaveResult is the terminal outcome of one save attempt.
type SaveResult struct {
	SaveID   string
	FieldKey string
	Label    string
	Value    any
	Response *core.Response
	Err      error
	Duration time.Duration
	// Superseded is set when a newer value of the key was saved first and
	// this one was never sent.
	Superseded bool
}

// Phase reports Saved, Failed or Superseded.
func (r SaveResult) Phase() Phase {
	switch {
	case r.Err != nil:
		return PhaseFailed
	case r.Superseded:
		return PhaseSuperseded
	default:
		return PhaseSaved
	}
}

// Success reports whether the save succeeded.
func (r SaveResult) Success() bool {
	return r.Err == nil
}

// Message is the user-facing outcome text.
func (r SaveResult) Message() string {
	if r.Err != nil {
		return "Failed to save " + r.Label + ": " + core.UserMessage(r.Err)
	}
	if r.Superseded {
		return r.Label + " superseded by a newer edit"
	}
	return r.Label + " saved"
}
