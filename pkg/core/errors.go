package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code classifies an Error.
type Code string

// Error codes.
const (
	// CodeConfiguration marks setup mistakes detected before any network call.
	CodeConfiguration Code = "CONFIGURATION"
	// CodeTransport marks a rejected persist or validate call, including timeouts.
	CodeTransport Code = "TRANSPORT"
	// CodeValidation marks field-specific problems reported by a validator.
	CodeValidation Code = "VALIDATION"
)

// Sentinels for errors.Is matching by code.
var (
	ErrConfiguration = &Error{Code: CodeConfiguration}
	ErrTransport     = &Error{Code: CodeTransport}
	ErrValidation    = &Error{Code: CodeValidation}
)

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Field   string // field key, when the error concerns one field
	Status  int    // HTTP status for transport errors, 0 otherwise
	Body    []byte // raw response body for transport errors
	Details map[string][]string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(string(e.Code))
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// ConfigurationErrorf creates a configuration error.
func ConfigurationErrorf(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// TransportError wraps a failed collaborator call.
func TransportError(message string, cause error) *Error {
	return &Error{Code: CodeTransport, Message: message, Cause: cause}
}

// HTTPError builds a transport error from a non-success HTTP response.
func HTTPError(status int, body []byte) *Error {
	return &Error{
		Code:    CodeTransport,
		Message: fmt.Sprintf("request failed with status %d", status),
		Status:  status,
		Body:    body,
	}
}

// ValidationErrorf creates a validation error for one field.
func ValidationErrorf(field, format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage extracts a best-effort human-readable message from err.
//
// Transport errors are inspected for a JSON body carrying one of the keys
// "error", "message", "detail" or "errors"; then the HTTP status text is
// used; then the message, with its cause when there is one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if msg := messageFromBody(e.Body); msg != "" {
			return msg
		}
		if len(e.Details) > 0 {
			return flattenDetails(e.Details)
		}
		if e.Status != 0 {
			if text := http.StatusText(e.Status); text != "" {
				return text
			}
		}
		if e.Message != "" && e.Cause == nil {
			return e.Message
		}
	}
	return err.Error()
}

func messageFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		trimmed := strings.TrimSpace(string(body))
		if trimmed != "" && len(trimmed) <= 200 && !strings.HasPrefix(trimmed, "<") {
			return trimmed
		}
		return ""
	}
	for _, key := range []string{"error", "message", "detail"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return messageFromAny(payload["errors"])
}

func messageFromAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := messageFromAny(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := messageFromAny(t[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func flattenDetails(details map[string][]string) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(details[k], ", "))
	}
	return strings.Join(parts, "; ")
}
