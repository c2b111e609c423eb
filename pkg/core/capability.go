package core

// Capability is the contract every field type implements.
// Implementations are stateless and registered once at startup.
type Capability interface {
	// RenderInput produces the editable representation of a field.
	RenderInput(props RenderProps) Representation

	// FormatValue produces the display representation of a value.
	FormatValue(value any, field FieldDescriptor, ctx FormatContext) string

	// Validate checks a value locally.
	Validate(value any, field FieldDescriptor) ValidationResult

	// DefaultValue returns the value a new record starts with.
	DefaultValue(field FieldDescriptor) any

	// IsEmpty reports whether a value counts as "no value".
	IsEmpty(value any) bool
}

// RenderProps are the inputs to Capability.RenderInput.
type RenderProps struct {
	Field    FieldDescriptor
	Value    any
	Disabled bool
	Error    string
}

// Representation is a presentation-agnostic description of an input control.
type Representation struct {
	Widget      string            `json:"widget"`
	Name        string            `json:"name"`
	Value       string            `json:"value,omitempty"`
	Values      []string          `json:"values,omitempty"`
	Options     []Option          `json:"options,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Disabled    bool              `json:"disabled,omitempty"`
	Required    bool              `json:"required,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty"`
}

// Option is one choice of a discrete-choice field.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

// DisplayMode selects how much room a formatted value gets.
type DisplayMode string

// Display modes.
const (
	DisplayInline DisplayMode = "inline"
	DisplayTable  DisplayMode = "table"
	DisplayDetail DisplayMode = "detail"
)

// FormatContext carries presentation hints to Capability.FormatValue.
type FormatContext struct {
	Mode   DisplayMode
	Locale string // BCP 47 tag; empty means "en"
}
