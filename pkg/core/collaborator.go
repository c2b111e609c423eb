package core

import (
	"context"
	"encoding/json"
)

// Payload is the body sent to the persistence collaborator: {data: {remoteKey: value}}.
type Payload struct {
	Data map[string]any `json:"data"`
}

// Response is the persistence collaborator's reply. The orchestrator passes
// it through to success callbacks without interpreting it.
type Response struct {
	Data map[string]any `json:"data"`
	// Raw is the reply body as received, when the collaborator has one.
	Raw json.RawMessage `json:"-"`
}

// ValidationRequest is the body sent to the validation collaborator.
type ValidationRequest struct {
	Data         map[string]any `json:"data"`
	ValidateOnly bool           `json:"validate_only"`
	FieldSlug    string         `json:"field_slug"`
}

// ValidationResponse is the validation collaborator's reply.
type ValidationResponse struct {
	IsValid        bool            `json:"is_valid"`
	Errors         []string        `json:"errors"`
	Warnings       []string        `json:"warnings"`
	DisplayChanges []DisplayChange `json:"display_changes"`
}

// Result converts the wire response into a ValidationResult.
func (r ValidationResponse) Result() ValidationResult {
	return ValidationResult{
		IsValid:        r.IsValid,
		Errors:         r.Errors,
		Warnings:       r.Warnings,
		DisplayChanges: r.DisplayChanges,
	}
}

// Persister writes field values to the remote store.
// Any returned error is a failed save; any nil error is a successful one.
type Persister interface {
	Persist(ctx context.Context, endpoint string, payload Payload) (*Response, error)
}

// Validator checks field values without persisting them.
// The endpoint passed in is the full validation endpoint (".../validate").
type Validator interface {
	Validate(ctx context.Context, endpoint string, req ValidationRequest) (*ValidationResponse, error)
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(ctx context.Context, endpoint string, payload Payload) (*Response, error)

// Persist implements Persister.
func (f PersisterFunc) Persist(ctx context.Context, endpoint string, payload Payload) (*Response, error) {
	return f(ctx, endpoint, payload)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, endpoint string, req ValidationRequest) (*ValidationResponse, error)

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, endpoint string, req ValidationRequest) (*ValidationResponse, error) {
	return f(ctx, endpoint, req)
}

// ValidateEndpoint derives the validation endpoint from a persistence endpoint.
func ValidateEndpoint(endpoint string) string {
	for len(endpoint) > 0 && endpoint[len(endpoint)-1] == '/' {
		endpoint = endpoint[:len(endpoint)-1]
	}
	return endpoint + "/validate"
}
