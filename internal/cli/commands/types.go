package commands

import (
	"sort"

	"github.com/leapstack-labs/fieldsync/internal/cli/output"
	"github.com/leapstack-labs/fieldsync/internal/registry"
	"github.com/leapstack-labs/fieldsync/internal/strategy"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/spf13/cobra"
)

// TypeInfo describes how one field type resolves.
type TypeInfo struct {
	Type       string `json:"type"`
	Capability string `json:"capability"`
	Source     string `json:"source"`
	Strategy   string `json:"strategy"`
	Debounce   string `json:"debounce,omitempty"`
}

// FieldInfo describes how one configured field resolves.
type FieldInfo struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Type     string `json:"type"`
	Strategy string `json:"strategy"`
}

// NewTypesCommand creates the types command.
func NewTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List field types and their save strategies",
		Long: `List every registered field type and fallback alias with the capability
that serves it and the save strategy it resolves to. Configured fields are
listed after the types.`,
		Example: `  # Show the effective type table
  fieldsync types

  # Machine-readable
  fieldsync types -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTypes(NewCommandContext(cmd))
		},
	}
}

func runTypes(c *CommandContext) error {
	reg := c.NewRegistry()
	resolver := c.NewResolver(reg)
	types := describeTypes(reg, resolver, c.Cfg.Fields)
	fields := describeFields(resolver, c.Cfg.Fields)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"types": types, "fields": fields})
	}

	r.Header(1, "Field types")
	rows := make([][]string, 0, len(types))
	for _, t := range types {
		rows = append(rows, []string{t.Type, t.Capability, t.Source, t.Strategy, t.Debounce})
	}
	r.Table([]string{"Type", "Capability", "Source", "Strategy", "Debounce"}, rows)

	if len(fields) > 0 {
		r.Println("")
		r.Header(1, "Fields")
		rows = make([][]string, 0, len(fields))
		for _, f := range fields {
			rows = append(rows, []string{f.Name, f.Key, f.Type, f.Strategy})
		}
		r.Table([]string{"Field", "Key", "Type", "Strategy"}, rows)
	}
	return nil
}

func describeTypes(reg *registry.Registry, resolver *strategy.Resolver, fields []core.FieldDescriptor) []TypeInfo {
	names := make(map[string]bool)
	for _, t := range reg.Types() {
		names[t] = true
	}
	for t := range reg.Fallbacks() {
		names[t] = true
	}
	for _, e := range resolver.Table() {
		names[e.Type] = true
	}
	for _, f := range fields {
		names[f.Type] = true
	}

	out := make([]TypeInfo, 0, len(names))
	for name := range names {
		res := reg.ResolveType(name)
		capability := res.Type
		if res.Source == registry.SourceGeneric {
			capability = "generic"
		}
		s := resolver.Resolve(name)
		info := TypeInfo{
			Type:       name,
			Capability: capability,
			Source:     string(res.Source),
			Strategy:   s.String(),
		}
		if s == core.StrategyOnChangeDebounced {
			info.Debounce = resolver.Debounce(name).String()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func describeFields(resolver *strategy.Resolver, fields []core.FieldDescriptor) []FieldInfo {
	out := make([]FieldInfo, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldInfo{
			Name:     f.DisplayLabel(),
			Key:      f.RemoteKey(),
			Type:     f.Type,
			Strategy: resolver.ResolveField(f).String(),
		})
	}
	return out
}
