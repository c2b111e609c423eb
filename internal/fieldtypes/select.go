package fieldtypes

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/fieldsync/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Select is a discrete choice among config.options. Multiple selects a set.
// Options may be plain strings or {value, label} maps; labels default to the
// title-cased value.
type Select struct {
	Multiple bool
}

func (c Select) RenderInput(props core.RenderProps) core.Representation {
	selected := c.selected(props.Value)
	opts := options(props.Field)
	for i := range opts {
		opts[i].Selected = slices.Contains(selected, opts[i].Value)
	}
	rep := core.Representation{
		Widget:   "select",
		Name:     props.Field.RemoteKey(),
		Options:  opts,
		Disabled: props.Disabled,
		Required: props.Field.Required,
		Error:    props.Error,
	}
	if c.Multiple {
		rep.Widget = "multiselect"
		rep.Values = selected
	} else if len(selected) > 0 {
		rep.Value = selected[0]
	}
	return rep
}

func (c Select) FormatValue(value any, field core.FieldDescriptor, _ core.FormatContext) string {
	labels := make(map[string]string)
	for _, o := range options(field) {
		labels[o.Value] = o.Label
	}
	selected := c.selected(value)
	out := make([]string, 0, len(selected))
	for _, v := range selected {
		if l, ok := labels[v]; ok {
			out = append(out, l)
		} else {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}

func (c Select) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	selected := c.selected(value)
	if res, failed := requiredResult(field, len(selected) == 0); failed {
		return res
	}
	allowed := field.ConfigStrings("options")
	if len(allowed) == 0 || field.ConfigBool("allow_custom") {
		return core.Valid()
	}
	var errs []string
	for _, v := range selected {
		if !slices.Contains(allowed, v) {
			errs = append(errs, field.DisplayLabel()+" must be one of "+strings.Join(allowed, ", "))
			break
		}
	}
	if !c.Multiple && len(selected) > 1 {
		errs = append(errs, field.DisplayLabel()+" accepts a single value")
	}
	if len(errs) > 0 {
		return core.Invalid(errs...)
	}
	return core.Valid()
}

func (c Select) DefaultValue(field core.FieldDescriptor) any {
	if v, ok := field.ConfigValue("default"); ok {
		if c.Multiple {
			return toStrings(v)
		}
		return stringify(v)
	}
	if c.Multiple {
		return []string{}
	}
	return nil
}

func (c Select) IsEmpty(value any) bool {
	return len(c.selected(value)) == 0
}

func (c Select) selected(value any) []string {
	if !c.Multiple {
		s := stringify(value)
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return toStrings(value)
}

func options(field core.FieldDescriptor) []core.Option {
	raw, _ := field.ConfigValue("options")
	caser := cases.Title(language.English)
	var out []core.Option
	switch list := raw.(type) {
	case []string:
		for _, v := range list {
			out = append(out, core.Option{Value: v, Label: caser.String(strings.ReplaceAll(v, "_", " "))})
		}
	case []any:
		for _, item := range list {
			switch it := item.(type) {
			case map[string]any:
				v := stringify(it["value"])
				if v == "" {
					v = stringify(it["name"])
				}
				label := stringify(it["label"])
				if label == "" {
					label = caser.String(strings.ReplaceAll(v, "_", " "))
				}
				out = append(out, core.Option{Value: v, Label: label})
			default:
				v := stringify(it)
				out = append(out, core.Option{Value: v, Label: caser.String(strings.ReplaceAll(v, "_", " "))})
			}
		}
	}
	return out
}
