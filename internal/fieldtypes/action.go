package fieldtypes

import (
	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Action is a trigger button. Its value is the trigger payload; config.label
// names the button.
type Action struct{}

func (Action) RenderInput(props core.RenderProps) core.Representation {
	label := props.Field.ConfigString("label")
	if label == "" {
		label = props.Field.DisplayLabel()
	}
	return core.Representation{
		Widget:   "button",
		Name:     props.Field.RemoteKey(),
		Value:    label,
		Disabled: props.Disabled,
		Error:    props.Error,
	}
}

func (Action) FormatValue(value any, _ core.FieldDescriptor, _ core.FormatContext) string {
	if value == nil {
		return ""
	}
	if m, ok := value.(map[string]any); ok {
		if s := stringify(m["status"]); s != "" {
			return s
		}
	}
	return stringify(value)
}

func (Action) Validate(any, core.FieldDescriptor) core.ValidationResult {
	return core.Valid()
}

func (Action) DefaultValue(core.FieldDescriptor) any {
	return nil
}

func (Action) IsEmpty(value any) bool {
	return value == nil
}
