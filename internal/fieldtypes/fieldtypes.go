// Package fieldtypes holds the thin built-in capabilities registered at startup.
// Each adapter satisfies core.Capability and nothing more.
package fieldtypes

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/fieldsync/internal/registry"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"golang.org/x/text/language"
)

// Builtins returns the fixed startup list of (type, capability) pairs.
func Builtins() []registry.Entry {
	return []registry.Entry{
		{Type: "text", Capability: Text{Widget: "text"}},
		{Type: "textarea", Capability: Text{Widget: "textarea"}},
		{Type: "email", Capability: Text{Widget: "email", Pattern: emailPattern, PatternMessage: "must be a valid email address"}},
		{Type: "phone", Capability: Text{Widget: "tel", Pattern: phonePattern, PatternMessage: "must be a valid phone number"}},
		{Type: "url", Capability: Text{Widget: "url", Pattern: urlPattern, PatternMessage: "must be a valid URL"}},
		{Type: "number", Capability: Number{}},
		{Type: "boolean", Capability: Boolean{}},
		{Type: "select", Capability: Select{}},
		{Type: "multiselect", Capability: Select{Multiple: true}},
		{Type: "date", Capability: Date{}},
		{Type: "relation", Capability: Reference{Widget: "relation"}},
		{Type: "user", Capability: Reference{Widget: "user"}},
		{Type: "tags", Capability: Tags{}},
		{Type: "action", Capability: Action{}},
		{Type: "ai", Capability: AI{}},
		{Type: "attachment", Capability: Attachment{}},
	}
}

// NewRegistry returns a registry populated with Builtins.
func NewRegistry() *registry.Registry {
	return registry.NewWithEntries(Builtins())
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// toStrings converts list-shaped values into a string slice.
func toStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, stringify(item))
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{stringify(v)}
}

func requiredResult(field core.FieldDescriptor, empty bool) (core.ValidationResult, bool) {
	if field.Required && empty {
		return core.Invalid(field.DisplayLabel() + " is required"), true
	}
	return core.Valid(), false
}

func localeTag(ctx core.FormatContext) language.Tag {
	if ctx.Locale == "" {
		return language.English
	}
	tag, err := language.Parse(ctx.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

func truncate(s string, mode core.DisplayMode, limit int) string {
	if mode != core.DisplayTable {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
