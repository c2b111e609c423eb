package fieldtypes

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/fieldsync/pkg/core"
	"golang.org/x/text/currency"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Number covers numeric values, including currency and percent presentations.
// Config: min, max, precision, currency (ISO 4217), percent, integer.
type Number struct{}

func (Number) RenderInput(props core.RenderProps) core.Representation {
	attrs := map[string]string{}
	if min, ok := props.Field.ConfigFloat("min"); ok {
		attrs["min"] = strconv.FormatFloat(min, 'f', -1, 64)
	}
	if max, ok := props.Field.ConfigFloat("max"); ok {
		attrs["max"] = strconv.FormatFloat(max, 'f', -1, 64)
	}
	if props.Field.ConfigBool("integer") {
		attrs["step"] = "1"
	}
	value := ""
	if f, ok := core.ToFloat(props.Value); ok {
		value = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return core.Representation{
		Widget:   "number",
		Name:     props.Field.RemoteKey(),
		Value:    value,
		Disabled: props.Disabled,
		Required: props.Field.Required,
		Error:    props.Error,
		Attrs:    attrs,
	}
}

func (Number) FormatValue(value any, field core.FieldDescriptor, ctx core.FormatContext) string {
	f, ok := core.ToFloat(value)
	if !ok {
		return stringify(value)
	}
	p := message.NewPrinter(localeTag(ctx))

	precision := 2
	if v, ok := field.ConfigFloat("precision"); ok && v >= 0 {
		precision = int(v)
	}

	if code := field.ConfigString("currency"); code != "" {
		if unit, err := currency.ParseISO(code); err == nil {
			return p.Sprint(currency.Symbol(unit.Amount(f)))
		}
	}
	if field.ConfigBool("percent") {
		return p.Sprint(number.Percent(f, number.Scale(precision)))
	}
	if field.ConfigBool("integer") {
		return p.Sprint(number.Decimal(f, number.Scale(0)))
	}
	return p.Sprint(number.Decimal(f, number.MaxFractionDigits(precision)))
}

func (Number) Validate(value any, field core.FieldDescriptor) core.ValidationResult {
	empty := Number{}.IsEmpty(value)
	if res, failed := requiredResult(field, empty); failed {
		return res
	}
	if empty {
		return core.Valid()
	}

	f, ok := core.ToFloat(value)
	if !ok {
		return core.Invalid(field.DisplayLabel() + " must be a number")
	}

	var errs []string
	if field.ConfigBool("integer") && f != float64(int64(f)) {
		errs = append(errs, field.DisplayLabel()+" must be a whole number")
	}
	if min, ok := field.ConfigFloat("min"); ok && f < min {
		errs = append(errs, fmt.Sprintf("%s must be at least %v", field.DisplayLabel(), min))
	}
	if max, ok := field.ConfigFloat("max"); ok && f > max {
		errs = append(errs, fmt.Sprintf("%s must be at most %v", field.DisplayLabel(), max))
	}
	if len(errs) > 0 {
		return core.Invalid(errs...)
	}
	return core.Valid()
}

func (Number) DefaultValue(field core.FieldDescriptor) any {
	if f, ok := field.ConfigFloat("default"); ok {
		return f
	}
	return nil
}

func (Number) IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}
