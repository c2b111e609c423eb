package recordsvc

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// LocalBackend serves the persistence and validation collaborators
// in-process. Endpoints address a record as ".../records/{id}".
type LocalBackend struct {
	svc *Service
}

var (
	_ core.Persister = (*LocalBackend)(nil)
	_ core.Validator = (*LocalBackend)(nil)
)

// NewLocalBackend wraps a Service.
func NewLocalBackend(svc *Service) *LocalBackend {
	return &LocalBackend{svc: svc}
}

// Persist implements core.Persister.
func (b *LocalBackend) Persist(ctx context.Context, endpoint string, payload core.Payload) (*core.Response, error) {
	id, err := RecordID(endpoint)
	if err != nil {
		return nil, err
	}
	rec, err := b.svc.Save(ctx, id, payload.Data)
	if err != nil {
		return nil, err
	}
	return &core.Response{Data: rec.Fields}, nil
}

// Validate implements core.Validator.
func (b *LocalBackend) Validate(ctx context.Context, endpoint string, req core.ValidationRequest) (*core.ValidationResponse, error) {
	id, err := RecordID(endpoint)
	if err != nil {
		return nil, err
	}
	return b.svc.Validate(ctx, id, req)
}

// RecordID extracts the record ID from an endpoint of the form
// ".../records/{id}" or ".../records/{id}/validate".
func RecordID(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", core.ConfigurationErrorf("invalid endpoint %q: %v", endpoint, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "records" && parts[i+1] != "" && parts[i+1] != "validate" {
			return parts[i+1], nil
		}
	}
	return "", core.ConfigurationErrorf("endpoint %q does not address a record", endpoint)
}

// Endpoint builds the record endpoint under base.
func Endpoint(base, id string) string {
	return fmt.Sprintf("%s/records/%s", strings.TrimRight(base, "/"), id)
}
