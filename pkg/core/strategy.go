package core

import (
	"fmt"
	"strings"
)

// SaveStrategy is the policy governing when a changed value reaches the
// persistence collaborator.
type SaveStrategy string

// Save strategies.
const (
	// StrategyImmediate persists on every change.
	StrategyImmediate SaveStrategy = "immediate"
	// StrategyOnExit buffers changes until the field loses focus.
	StrategyOnExit SaveStrategy = "on_exit"
	// StrategyOnChangeDebounced persists once after a quiet period.
	StrategyOnChangeDebounced SaveStrategy = "on_change_debounced"
	// StrategyContinuous buffers changes until the field signals completion.
	StrategyContinuous SaveStrategy = "continuous"
	// StrategyManual buffers changes until an explicit save action.
	StrategyManual SaveStrategy = "manual"
)

// AllStrategies lists every strategy in declaration order.
func AllStrategies() []SaveStrategy {
	return []SaveStrategy{
		StrategyImmediate,
		StrategyOnExit,
		StrategyOnChangeDebounced,
		StrategyContinuous,
		StrategyManual,
	}
}

// String implements fmt.Stringer.
func (s SaveStrategy) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known strategies.
func (s SaveStrategy) IsValid() bool {
	switch s {
	case StrategyImmediate, StrategyOnExit, StrategyOnChangeDebounced, StrategyContinuous, StrategyManual:
		return true
	}
	return false
}

// ParseSaveStrategy parses a strategy name. It accepts snake_case, kebab-case
// and the CamelCase spellings ("OnExit", "on-exit", "on_exit").
func ParseSaveStrategy(raw string) (SaveStrategy, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "immediate":
		return StrategyImmediate, nil
	case "on_exit", "onexit", "on_blur", "onblur":
		return StrategyOnExit, nil
	case "on_change_debounced", "onchangedebounced", "debounced":
		return StrategyOnChangeDebounced, nil
	case "continuous":
		return StrategyContinuous, nil
	case "manual":
		return StrategyManual, nil
	}
	return "", fmt.Errorf("unknown save strategy %q", raw)
}
