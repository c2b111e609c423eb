package fieldtypes

import (
	"strings"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Reference points at other records (relation) or people (user) by ID.
// Config: multiple, target (the referenced collection, rendered as an attribute).
type Reference struct {
	Widget string
}

func (c Reference) RenderInput(props core.RenderProps) core.Representation {
	ids := toStrings(props.Value)
	rep := core.Representation{
		Widget:   c.Widget,
		Name:     props.Field.RemoteKey(),
		Disabled: props.Disabled,
		Required: props.Field.Required,
		Error:    props.Error,
	}
	if target := props.Field.ConfigString("target"); target != "" {
		rep.Attrs = map[string]string{"target": target}
	}
	if props.Field.ConfigBool("multiple") {
		rep.Values = ids
	} else if len(ids) > 0 {
		rep.Value = ids[0]
	}
	return rep
}

func (Reference) FormatValue(value any, _ core.FieldDescriptor, _ core.FormatContext) string {
	return strings.Join(referenceLabels(value), ", ")
}

func (Reference) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	ids := toStrings(value)
	if res, failed := requiredResult(field, len(ids) == 0); failed {
		return res
	}
	if !field.ConfigBool("multiple") && len(ids) > 1 {
		return core.Invalid(field.DisplayLabel() + " accepts a single reference")
	}
	return core.Valid()
}

func (Reference) DefaultValue(field core.FieldDescriptor) any {
	if field.ConfigBool("multiple") {
		return []string{}
	}
	return nil
}

func (Reference) IsEmpty(value any) bool {
	return len(toStrings(value)) == 0
}

// referenceLabels prefers a display name when the value carries expanded objects.
func referenceLabels(value any) []string {
	list, ok := value.([]any)
	if !ok {
		if m, ok := value.(map[string]any); ok {
			list = []any{m}
		} else {
			return toStrings(value)
		}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			for _, key := range []string{"name", "title", "label", "id"} {
				if s := stringify(m[key]); s != "" {
					out = append(out, s)
					break
				}
			}
			continue
		}
		out = append(out, stringify(item))
	}
	return out
}
