package fieldtypes

import (
	"strings"
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Wire formats accepted for dates, in order of preference.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Date is a calendar date stored as YYYY-MM-DD. Config: format (Go layout),
// min, max (YYYY-MM-DD).
type Date struct{}

func (Date) RenderInput(props core.RenderProps) core.Representation {
	value := ""
	if t, ok := parseDate(props.Value); ok {
		value = t.Format(time.DateOnly)
	}
	attrs := map[string]string{}
	if min := props.Field.ConfigString("min"); min != "" {
		attrs["min"] = min
	}
	if max := props.Field.ConfigString("max"); max != "" {
		attrs["max"] = max
	}
	return core.Representation{
		Widget:   "date",
		Name:     props.Field.RemoteKey(),
		Value:    value,
		Disabled: props.Disabled,
		Required: props.Field.Required,
		Error:    props.Error,
		Attrs:    attrs,
	}
}

func (Date) FormatValue(value any, field core.FieldDescriptor, ctx core.FormatContext) string {
	t, ok := parseDate(value)
	if !ok {
		return stringify(value)
	}
	if layout := field.ConfigString("format"); layout != "" {
		return t.Format(layout)
	}
	if ctx.Mode == core.DisplayTable {
		return t.Format(time.DateOnly)
	}
	return t.Format("Jan 2, 2006")
}

func (Date) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	empty := strings.TrimSpace(stringify(value)) == ""
	if res, failed := requiredResult(field, empty); failed {
		return res
	}
	if empty {
		return core.Valid()
	}
	t, ok := parseDate(value)
	if !ok {
		return core.Invalid(field.DisplayLabel() + " must be a date (YYYY-MM-DD)")
	}
	if min, ok := parseDate(field.ConfigString("min")); ok && t.Before(min) {
		return core.Invalid(field.DisplayLabel() + " must be on or after " + min.Format(time.DateOnly))
	}
	if max, ok := parseDate(field.ConfigString("max")); ok && t.After(max) {
		return core.Invalid(field.DisplayLabel() + " must be on or before " + max.Format(time.DateOnly))
	}
	return core.Valid()
}

func (Date) DefaultValue(field core.FieldDescriptor) any {
	if field.ConfigString("default") == "today" {
		return time.Now().Format(time.DateOnly)
	}
	return nil
}

func (Date) IsEmpty(value any) bool {
	return strings.TrimSpace(stringify(value)) == ""
}

func parseDate(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
