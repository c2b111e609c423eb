package orchestrator

import (
	"sort"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// HasUnsavedChanges reports whether any change is pending or waiting on a
// debounce timer.
func (o *Orchestrator) HasUnsavedChanges() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending) > 0 || len(o.timers) > 0
}

// PendingKeys returns the keys with a pending change, sorted.
func (o *Orchestrator) PendingKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.pending))
	for key := range o.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PendingChange returns a copy of the key's pending change.
func (o *Orchestrator) PendingChange(fieldKey string) (PendingChange, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	change, ok := o.pending[fieldKey]
	if !ok {
		return PendingChange{}, false
	}
	return *change, true
}

// ActiveTimers returns the number of armed persistence timers.
func (o *Orchestrator) ActiveTimers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.timers)
}

// Phase reports Saving while the key has a save in flight, Dirty while it
// has a pending change or an armed timer, and Idle otherwise.
func (o *Orchestrator) Phase(fieldKey string) Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.flights[fieldKey]; ok {
		return PhaseSaving
	}
	if _, ok := o.pending[fieldKey]; ok {
		return PhaseDirty
	}
	if _, ok := o.timers[fieldKey]; ok {
		return PhaseDirty
	}
	return PhaseIdle
}

// InFlight reports whether the key has a save in progress.
func (o *Orchestrator) InFlight(fieldKey string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.flights[fieldKey]
	return ok
}

// LastValidationResult returns the latest validation result for a key. It
// reports false when validation is not configured or has not completed.
func (o *Orchestrator) LastValidationResult(fieldKey string) (core.ValidationResult, bool) {
	if o.validation == nil {
		return core.ValidationResult{}, false
	}
	return o.validation.LastResult(fieldKey)
}
