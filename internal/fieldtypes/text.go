package fieldtypes

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ().-]{5,20}$`)
	urlPattern   = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
)

// tableTextLimit caps free text in table cells.
const tableTextLimit = 60

// Text covers the free-typing string types: text, textarea, email, phone, url.
// Config: max_length, min_length, placeholder.
type Text struct {
	Widget         string
	Pattern        *regexp.Regexp
	PatternMessage string
}

func (c Text) RenderInput(props core.RenderProps) core.Representation {
	rep := core.Representation{
		Widget:      c.Widget,
		Name:        props.Field.RemoteKey(),
		Value:       stringify(props.Value),
		Placeholder: props.Field.ConfigString("placeholder"),
		Disabled:    props.Disabled,
		Required:    props.Field.Required,
		Error:       props.Error,
	}
	if max, ok := props.Field.ConfigFloat("max_length"); ok {
		rep.Attrs = map[string]string{"maxlength": fmt.Sprintf("%d", int(max))}
	}
	return rep
}

func (c Text) FormatValue(value any, _ core.FieldDescriptor, ctx core.FormatContext) string {
	s := stringify(value)
	if c.Widget == "textarea" && ctx.Mode != core.DisplayDetail {
		s = strings.Join(strings.Fields(s), " ")
	}
	return truncate(s, ctx.Mode, tableTextLimit)
}

func (c Text) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	s := strings.TrimSpace(stringify(value))
	if res, failed := requiredResult(field, s == ""); failed {
		return res
	}
	if s == "" {
		return core.Valid()
	}

	var errs []string
	length := utf8.RuneCountInString(s)
	if max, ok := field.ConfigFloat("max_length"); ok && length > int(max) {
		errs = append(errs, fmt.Sprintf("%s must be at most %d characters", field.DisplayLabel(), int(max)))
	}
	if min, ok := field.ConfigFloat("min_length"); ok && length < int(min) {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", field.DisplayLabel(), int(min)))
	}
	if c.Pattern != nil && !c.Pattern.MatchString(s) {
		errs = append(errs, field.DisplayLabel()+" "+c.PatternMessage)
	}
	if len(errs) > 0 {
		return core.Invalid(errs...)
	}
	return core.Valid()
}

func (Text) DefaultValue(field core.FieldDescriptor) any {
	if v, ok := field.ConfigValue("default"); ok {
		return stringify(v)
	}
	return ""
}

func (Text) IsEmpty(value any) bool {
	return strings.TrimSpace(stringify(value)) == ""
}
