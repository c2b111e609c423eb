package fieldtypes

import (
	"strings"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// AI is a field whose value is produced by a remote model from a prompt.
// The editable value is the prompt; config.prompt seeds the default.
type AI struct{}

func (AI) RenderInput(props core.RenderProps) core.Representation {
	rep := core.Representation{
		Widget:      "ai",
		Name:        props.Field.RemoteKey(),
		Value:       aiText(props.Value),
		Placeholder: props.Field.ConfigString("placeholder"),
		Disabled:    props.Disabled,
		Error:       props.Error,
	}
	if model := props.Field.ConfigString("model"); model != "" {
		rep.Attrs = map[string]string{"model": model}
	}
	return rep
}

func (AI) FormatValue(value any, _ core.FieldDescriptor, ctx core.FormatContext) string {
	return truncate(aiText(value), ctx.Mode, tableTextLimit)
}

func (AI) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	text := strings.TrimSpace(aiText(value))
	if res, failed := requiredResult(field, text == ""); failed {
		return res
	}
	return core.Valid()
}

func (AI) DefaultValue(field core.FieldDescriptor) any {
	return field.ConfigString("prompt")
}

func (AI) IsEmpty(value any) bool {
	return strings.TrimSpace(aiText(value)) == ""
}

// aiText reads either a bare string or a {"output": ...} / {"prompt": ...} object.
func aiText(value any) string {
	if m, ok := value.(map[string]any); ok {
		if out := stringify(m["output"]); out != "" {
			return out
		}
		return stringify(m["prompt"])
	}
	return stringify(value)
}
