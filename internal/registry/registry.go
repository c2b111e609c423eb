// Package registry maps field type names to their Capability.
// New field types are added by registering them; the orchestrator and
// validation channel never branch on concrete types.
package registry

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// maxFallbackHops bounds fallback chains so a cyclic table cannot loop.
const maxFallbackHops = 8

// Source reports which step of the resolution chain produced a capability.
type Source string

// Resolution sources.
const (
	SourceExact    Source = "exact"
	SourceFallback Source = "fallback"
	SourceGeneric  Source = "generic"
)

// DefaultFallbacks returns the built-in fallback table: type -> type to try next.
func DefaultFallbacks() map[string]string {
	return map[string]string{
		"currency":     "number",
		"percent":      "number",
		"integer":      "number",
		"radio":        "select",
		"dropdown":     "select",
		"checkbox":     "boolean",
		"toggle":       "boolean",
		"ai_generated": "ai",
		"ai_summary":   "ai",
		"file":         "attachment",
		"datetime":     "date",
		"long_text":    "textarea",
		"rich_text":    "textarea",
		"link":         "url",
		"people":       "user",
		"multi_select": "multiselect",
	}
}

// Resolution is the outcome of resolving a field type.
type Resolution struct {
	Capability core.Capability
	// Type is the registered type that served the request, or "" for the generic default.
	Type   string
	Source Source
}

// Registry stores one Capability per type name.
type Registry struct {
	mu sync.RWMutex

	// capabilities maps type names to implementations: "number" → numberCapability
	capabilities map[string]core.Capability

	// fallbacks maps a type to the next type to try: "currency" → "number"
	fallbacks map[string]string

	generic core.Capability
}

// Entry is one (type, capability) pair of a startup list.
type Entry struct {
	Type       string
	Capability core.Capability
}

// New creates an empty registry with the default fallback table.
func New() *Registry {
	return &Registry{
		capabilities: make(map[string]core.Capability),
		fallbacks:    DefaultFallbacks(),
		generic:      Generic(),
	}
}

// NewWithEntries creates a registry populated from a fixed startup list.
func NewWithEntries(entries []Entry) *Registry {
	r := New()
	for _, e := range entries {
		r.Register(e.Type, e.Capability)
	}
	return r
}

// Register stores a capability for a type. The last registration wins.
func (r *Registry) Register(fieldType string, capability core.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[fieldType] = capability
}

// SetFallback adds or replaces one entry of the fallback table.
func (r *Registry) SetFallback(fromType, toType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[fromType] = toType
}

// MergeFallbacks merges a fallback table over the current one.
func (r *Registry) MergeFallbacks(table map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for from, to := range table {
		r.fallbacks[from] = to
	}
}

// Resolve returns the capability for a descriptor. It never fails.
func (r *Registry) Resolve(field core.FieldDescriptor) core.Capability {
	return r.ResolveType(field.Type).Capability
}

// ResolveType resolves a type name through the fallback chain:
//  1. exact type match
//  2. the fallback table, followed hop by hop
//  3. the generic text-like default
func (r *Registry) ResolveType(fieldType string) Resolution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// 1. Exact match
	if c, ok := r.capabilities[fieldType]; ok {
		return Resolution{Capability: c, Type: fieldType, Source: SourceExact}
	}

	// 2. Fallback chain
	current := fieldType
	for i := 0; i < maxFallbackHops; i++ {
		next, ok := r.fallbacks[current]
		if !ok || next == current {
			break
		}
		if c, ok := r.capabilities[next]; ok {
			return Resolution{Capability: c, Type: next, Source: SourceFallback}
		}
		current = next
	}

	// 3. Generic default
	return Resolution{Capability: r.generic, Source: SourceGeneric}
}

// Alias returns the registered type a fallback resolves to, if any.
// Exact registrations and unknown types report false.
func (r *Registry) Alias(fieldType string) (string, bool) {
	res := r.ResolveType(fieldType)
	if res.Source != SourceFallback {
		return "", false
	}
	return res.Type, true
}

// Has reports whether a type is registered exactly.
func (r *Registry) Has(fieldType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[fieldType]
	return ok
}

// Types returns all registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.capabilities))
	for t := range r.capabilities {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Fallbacks returns a copy of the fallback table.
func (r *Registry) Fallbacks() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]string, len(r.fallbacks))
	for k, v := range r.fallbacks {
		result[k] = v
	}
	return result
}

// Count returns the number of registered types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}
