package fieldtypes

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Attachment holds uploaded files as a list of {name, url, size} objects or
// bare URLs. Config: max_files, accept (comma separated extensions).
type Attachment struct{}

func (Attachment) RenderInput(props core.RenderProps) core.Representation {
	rep := core.Representation{
		Widget:   "file",
		Name:     props.Field.RemoteKey(),
		Values:   attachmentNames(props.Value),
		Disabled: props.Disabled,
		Required: props.Field.Required,
		Error:    props.Error,
	}
	if accept := props.Field.ConfigStrings("accept"); len(accept) > 0 {
		rep.Attrs = map[string]string{"accept": strings.Join(accept, ",")}
	}
	return rep
}

func (Attachment) FormatValue(value any, _ core.FieldDescriptor, ctx core.FormatContext) string {
	names := attachmentNames(value)
	if ctx.Mode == core.DisplayTable && len(names) > 1 {
		return fmt.Sprintf("%d files", len(names))
	}
	return strings.Join(names, ", ")
}

func (Attachment) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	names := attachmentNames(value)
	if res, failed := requiredResult(field, len(names) == 0); failed {
		return res
	}
	if max, ok := field.ConfigFloat("max_files"); ok && len(names) > int(max) {
		return core.Invalid(fmt.Sprintf("%s allows at most %d files", field.DisplayLabel(), int(max)))
	}
	if accept := field.ConfigStrings("accept"); len(accept) > 0 {
		for _, name := range names {
			ext := strings.ToLower(path.Ext(name))
			if !slices.Contains(accept, ext) {
				return core.Invalid(fmt.Sprintf("%s does not accept %s files", field.DisplayLabel(), ext))
			}
		}
	}
	return core.Valid()
}

func (Attachment) DefaultValue(core.FieldDescriptor) any {
	return []any{}
}

func (Attachment) IsEmpty(value any) bool {
	return len(attachmentNames(value)) == 0
}

func attachmentNames(value any) []string {
	var items []any
	switch t := value.(type) {
	case nil:
		return nil
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	default:
		return toStrings(value)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			name := stringify(m["name"])
			if name == "" {
				name = path.Base(stringify(m["url"]))
			}
			if name != "" && name != "." {
				out = append(out, name)
			}
			continue
		}
		if s := stringify(item); s != "" {
			out = append(out, path.Base(s))
		}
	}
	return out
}
