package core

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldDescriptor describes one user-editable record attribute.
type FieldDescriptor struct {
	ID       string         `koanf:"id" json:"id" yaml:"id"`
	Name     string         `koanf:"name" json:"name" yaml:"name"`
	Type     string         `koanf:"type" json:"type" yaml:"type"`
	Slug     string         `koanf:"slug" json:"slug,omitempty" yaml:"slug,omitempty"`
	Label    string         `koanf:"label" json:"label,omitempty" yaml:"label,omitempty"`
	Required bool           `koanf:"required" json:"required,omitempty" yaml:"required,omitempty"`
	Config   map[string]any `koanf:"config" json:"config,omitempty" yaml:"config,omitempty"`
}

// Key returns the field key used to index pending changes and timers.
func (f FieldDescriptor) Key() string {
	return f.Name
}

// RemoteKey returns the key used to address the field on the remote store.
// It falls back to the logical name when no slug is set.
func (f FieldDescriptor) RemoteKey() string {
	if f.Slug != "" {
		return f.Slug
	}
	return f.Name
}

// DisplayLabel returns the human-facing name of the field.
func (f FieldDescriptor) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// ConfigValue returns a raw configuration entry.
func (f FieldDescriptor) ConfigValue(key string) (any, bool) {
	if f.Config == nil {
		return nil, false
	}
	v, ok := f.Config[key]
	return v, ok
}

// ConfigString returns a configuration entry as a string, or "" when absent.
func (f FieldDescriptor) ConfigString(key string) string {
	v, ok := f.ConfigValue(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ConfigBool returns a configuration entry as a bool.
// Strings are parsed with strconv.ParseBool; anything else is false.
func (f FieldDescriptor) ConfigBool(key string) bool {
	v, ok := f.ConfigValue(key)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	}
	return false
}

// ConfigFloat returns a numeric configuration entry.
func (f FieldDescriptor) ConfigFloat(key string) (float64, bool) {
	v, ok := f.ConfigValue(key)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ConfigStrings returns a list configuration entry as strings.
// Entries that are maps contribute their "value" (or "name") key, so both
// ["a", "b"] and [{value: a, label: A}] option lists are accepted.
func (f FieldDescriptor) ConfigStrings(key string) []string {
	v, ok := f.ConfigValue(key)
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch it := item.(type) {
			case string:
				out = append(out, it)
			case map[string]any:
				if val, ok := it["value"]; ok {
					out = append(out, fmt.Sprint(val))
				} else if name, ok := it["name"]; ok {
					out = append(out, fmt.Sprint(name))
				}
			default:
				out = append(out, fmt.Sprint(it))
			}
		}
		return out
	case string:
		if list == "" {
			return nil
		}
		parts := strings.Split(list, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return nil
}

// ToFloat converts the numeric shapes produced by JSON, YAML and form input into a float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
