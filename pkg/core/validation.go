package core

// ValidationResult is the outcome of validating one field value.
type ValidationResult struct {
	IsValid        bool            `json:"is_valid"`
	Errors         []string        `json:"errors,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	DisplayChanges []DisplayChange `json:"display_changes,omitempty"`
}

// DisplayChange is a cross-field visibility directive. The core relays these
// to the caller and never acts on them.
type DisplayChange struct {
	Field   string `json:"field"`
	Visible bool   `json:"visible"`
	Reason  string `json:"reason,omitempty"`
}

// Valid returns a passing result with no messages.
func Valid() ValidationResult {
	return ValidationResult{IsValid: true}
}

// Invalid returns a failing result with the given errors.
func Invalid(errs ...string) ValidationResult {
	return ValidationResult{IsValid: false, Errors: errs}
}

// ServiceUnavailableMessage is reported when the remote validator cannot be reached.
const ServiceUnavailableMessage = "Validation service unavailable"

// Unavailable is the result recorded when a validation call fails in transport.
func Unavailable() ValidationResult {
	return Invalid(ServiceUnavailableMessage)
}
