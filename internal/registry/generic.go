package registry

import (
	"fmt"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// genericCapability renders any value as free text. It backs types nobody registered.
type genericCapability struct{}

// Generic returns the text-like default capability: it accepts any string,
// performs no validation and treats the empty string as empty.
func Generic() core.Capability {
	return genericCapability{}
}

func (genericCapability) RenderInput(props core.RenderProps) core.Representation {
	return core.Representation{
		Widget:   "text",
		Name:     props.Field.RemoteKey(),
		Value:    stringify(props.Value),
		Disabled: props.Disabled,
		Required: props.Field.Required,
		Error:    props.Error,
	}
}

func (genericCapability) FormatValue(value any, _ core.FieldDescriptor, _ core.FormatContext) string {
	return stringify(value)
}

func (genericCapability) Validate(any, core.FieldDescriptor) core.ValidationResult {
	return core.Valid()
}

func (genericCapability) DefaultValue(core.FieldDescriptor) any {
	return ""
}

func (genericCapability) IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
