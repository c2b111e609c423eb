package fieldtypes

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Boolean is a checkbox/toggle. Config: true_label, false_label.
type Boolean struct{}

func (Boolean) RenderInput(props core.RenderProps) core.Representation {
	b, _ := toBool(props.Value)
	return core.Representation{
		Widget:   "checkbox",
		Name:     props.Field.RemoteKey(),
		Value:    strconv.FormatBool(b),
		Disabled: props.Disabled,
		Error:    props.Error,
	}
}

func (Boolean) FormatValue(value any, field core.FieldDescriptor, _ core.FormatContext) string {
	b, ok := toBool(value)
	if !ok {
		return ""
	}
	if b {
		if l := field.ConfigString("true_label"); l != "" {
			return l
		}
		return "Yes"
	}
	if l := field.ConfigString("false_label"); l != "" {
		return l
	}
	return "No"
}

func (Boolean) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	if value == nil {
		if res, failed := requiredResult(field, true); failed {
			return res
		}
		return core.Valid()
	}
	if _, ok := toBool(value); !ok {
		return core.Invalid(field.DisplayLabel() + " must be true or false")
	}
	return core.Valid()
}

func (Boolean) DefaultValue(field core.FieldDescriptor) any {
	return field.ConfigBool("default")
}

// IsEmpty is only true for nil: false is a value.
func (Boolean) IsEmpty(value any) bool {
	return value == nil
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	}
	return false, false
}
