// Package strategy resolves the save-timing policy of a field type.
//
// The type → strategy mapping is configuration data: DefaultTable holds the
// shipped defaults and callers merge their own table over it. Types with no
// entry (directly or through a registry alias) save on exit.
package strategy

import (
	"sort"
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// DefaultDebounce is the quiet period for OnChangeDebounced fields.
const DefaultDebounce = time.Second

// Unknown is the strategy for types with no table entry.
const Unknown = core.StrategyOnExit

// configKey lets a single descriptor override its type's strategy.
const configKey = "save_strategy"

// DefaultTable returns the shipped type → strategy table.
func DefaultTable() map[string]core.SaveStrategy {
	return map[string]core.SaveStrategy{
		// Discrete choices, toggles, references and actions.
		"boolean":     core.StrategyImmediate,
		"select":      core.StrategyImmediate,
		"multiselect": core.StrategyImmediate,
		"relation":    core.StrategyImmediate,
		"user":        core.StrategyImmediate,
		"action":      core.StrategyImmediate,
		"tags":        core.StrategyImmediate,

		// Free typing.
		"text":     core.StrategyOnExit,
		"textarea": core.StrategyOnExit,
		"email":    core.StrategyOnExit,
		"phone":    core.StrategyOnExit,
		"url":      core.StrategyOnExit,
		"number":   core.StrategyOnExit,
		"date":     core.StrategyOnExit,

		"ai":         core.StrategyOnChangeDebounced,
		"attachment": core.StrategyContinuous,
	}
}

// AliasFunc maps a type without its own entry to the type it stands in for,
// e.g. the registry's fallback chain ("currency" → "number").
type AliasFunc func(fieldType string) (string, bool)

// Config configures a Resolver.
type Config struct {
	// Table is merged over DefaultTable.
	Table map[string]core.SaveStrategy
	// Debounce holds per-type quiet periods for OnChangeDebounced types.
	Debounce map[string]time.Duration
	// DefaultDebounce applies when a type has no Debounce entry. Zero means DefaultDebounce.
	DefaultDebounce time.Duration
	// Aliases is consulted when a type has no table entry.
	Aliases AliasFunc
}

// Resolver maps field types to save strategies. It is immutable after New.
type Resolver struct {
	table           map[string]core.SaveStrategy
	debounce        map[string]time.Duration
	defaultDebounce time.Duration
	aliases         AliasFunc
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	table := DefaultTable()
	for t, s := range cfg.Table {
		table[t] = s
	}
	debounce := make(map[string]time.Duration, len(cfg.Debounce))
	for t, d := range cfg.Debounce {
		debounce[t] = d
	}
	def := cfg.DefaultDebounce
	if def <= 0 {
		def = DefaultDebounce
	}
	return &Resolver{
		table:           table,
		debounce:        debounce,
		defaultDebounce: def,
		aliases:         cfg.Aliases,
	}
}

// NewDefault creates a Resolver over the shipped table with no aliases.
func NewDefault() *Resolver {
	return New(Config{})
}

// Resolve returns the strategy of a field type.
func (r *Resolver) Resolve(fieldType string) core.SaveStrategy {
	if s, ok := r.table[fieldType]; ok {
		return s
	}
	if r.aliases != nil {
		if alias, ok := r.aliases(fieldType); ok {
			if s, ok := r.table[alias]; ok {
				return s
			}
		}
	}
	return Unknown
}

// ResolveField returns the strategy of a descriptor. A valid
// config.save_strategy on the descriptor wins over the type table.
func (r *Resolver) ResolveField(field core.FieldDescriptor) core.SaveStrategy {
	if raw := field.ConfigString(configKey); raw != "" {
		if s, err := core.ParseSaveStrategy(raw); err == nil {
			return s
		}
	}
	return r.Resolve(field.Type)
}

// Debounce returns the quiet period for a field type.
func (r *Resolver) Debounce(fieldType string) time.Duration {
	if d, ok := r.debounce[fieldType]; ok && d > 0 {
		return d
	}
	if r.aliases != nil {
		if alias, ok := r.aliases(fieldType); ok {
			if d, ok := r.debounce[alias]; ok && d > 0 {
				return d
			}
		}
	}
	return r.defaultDebounce
}

// DebounceField returns the quiet period for a descriptor, honouring config.debounce_ms.
func (r *Resolver) DebounceField(field core.FieldDescriptor) time.Duration {
	if ms, ok := field.ConfigFloat("debounce_ms"); ok && ms > 0 {
		return time.Duration(ms * float64(time.Millisecond))
	}
	return r.Debounce(field.Type)
}

// Entry is one row of the effective table.
type Entry struct {
	Type     string
	Strategy core.SaveStrategy
}

// Table returns the effective table sorted by type.
func (r *Resolver) Table() []Entry {
	out := make([]Entry, 0, len(r.table))
	for t, s := range r.table {
		out = append(out, Entry{Type: t, Strategy: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
