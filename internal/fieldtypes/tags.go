package fieldtypes

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Tags is a free-form set of labels. Config: max_tags.
type Tags struct{}

func (Tags) RenderInput(props core.RenderProps) core.Representation {
	return core.Representation{
		Widget:   "tags",
		Name:     props.Field.RemoteKey(),
		Values:   normalizeTags(props.Value),
		Disabled: props.Disabled,
		Error:    props.Error,
	}
}

func (Tags) FormatValue(value any, _ core.FieldDescriptor, ctx core.FormatContext) string {
	tags := normalizeTags(value)
	if ctx.Mode == core.DisplayTable && len(tags) > 3 {
		return fmt.Sprintf("%s +%d", strings.Join(tags[:3], ", "), len(tags)-3)
	}
	return strings.Join(tags, ", ")
}

func (Tags) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	tags := normalizeTags(value)
	if res, failed := requiredResult(field, len(tags) == 0); failed {
		return res
	}
	if max, ok := field.ConfigFloat("max_tags"); ok && len(tags) > int(max) {
		return core.Invalid(fmt.Sprintf("%s allows at most %d tags", field.DisplayLabel(), int(max)))
	}
	return core.Valid()
}

func (Tags) DefaultValue(core.FieldDescriptor) any {
	return []string{}
}

func (Tags) IsEmpty(value any) bool {
	return len(normalizeTags(value)) == 0
}

// normalizeTags trims, drops blanks and de-duplicates case-insensitively.
func normalizeTags(value any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range toStrings(value) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
