// Package recordsvc applies and validates field values server-side. It
// backs the reference HTTP service and the in-process LocalBackend.
package recordsvc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/fieldsync/internal/registry"
	"github.com/leapstack-labs/fieldsync/internal/store"
	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Repository is the storage the service needs.
type Repository interface {
	CreateRecord(ctx context.Context) (*store.Record, error)
	GetRecord(ctx context.Context, id string) (*store.Record, error)
	SaveFields(ctx context.Context, id string, values map[string]any) error
	History(ctx context.Context, id, fieldKey string, limit int) ([]store.Change, error)
}

// Config configures a Service.
type Config struct {
	Repository Repository
	// Fields is the record schema. Data keys are matched against each
	// field's remote key.
	Fields   []core.FieldDescriptor
	Registry *registry.Registry
	Logger   *slog.Logger
}

// Service validates and stores record field values.
type Service struct {
	repo     Repository
	fields   map[string]core.FieldDescriptor
	order    []string
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Repository == nil {
		return nil, core.ConfigurationErrorf("record service requires a repository")
	}
	s := &Service{
		repo:     cfg.Repository,
		fields:   make(map[string]core.FieldDescriptor, len(cfg.Fields)),
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
	for _, f := range cfg.Fields {
		key := f.RemoteKey()
		if key == "" {
			return nil, core.ConfigurationErrorf("field without a name in record schema")
		}
		if _, dup := s.fields[key]; dup {
			return nil, core.ConfigurationErrorf("duplicate field %q in record schema", key)
		}
		s.fields[key] = f
		s.order = append(s.order, key)
	}
	if s.registry == nil {
		s.registry = registry.New()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Fields returns the schema in declaration order.
func (s *Service) Fields() []core.FieldDescriptor {
	out := make([]core.FieldDescriptor, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.fields[key])
	}
	return out
}

// Create makes an empty record.
func (s *Service) Create(ctx context.Context) (*store.Record, error) {
	rec, err := s.repo.CreateRecord(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("record created", "record_id", rec.ID)
	return rec, nil
}

// Get returns a record.
func (s *Service) Get(ctx context.Context, id string) (*store.Record, error) {
	return s.repo.GetRecord(ctx, id)
}

// History returns a record's change log.
func (s *Service) History(ctx context.Context, id, fieldKey string, limit int) ([]store.Change, error) {
	if _, err := s.repo.GetRecord(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id, fieldKey, limit)
}

// Save validates data and writes it. Unknown keys and invalid values fail
// the whole save with a validation error carrying per-field details.
func (s *Service) Save(ctx context.Context, id string, data map[string]any) (*store.Record, error) {
	if len(data) == 0 {
		return nil, core.ValidationErrorf("", "no fields to save")
	}

	details := make(map[string][]string)
	for key, value := range data {
		field, ok := s.fields[key]
		if !ok {
			details[key] = append(details[key], "unknown field")
			continue
		}
		result := s.registry.Resolve(field).Validate(value, field)
		if !result.IsValid {
			details[key] = append(details[key], result.Errors...)
		}
	}
	if len(details) > 0 {
		err := core.ValidationErrorf(singleKey(details), "validation failed")
		err.Details = details
		return nil, err
	}

	if err := s.repo.SaveFields(ctx, id, data); err != nil {
		return nil, err
	}
	s.logger.Debug("record saved", "record_id", id, "fields", sortedKeys(data))
	return s.repo.GetRecord(ctx, id)
}

// Validate checks data without writing it and computes display directives
// for fields whose visible_when condition depends on the submitted values.
func (s *Service) Validate(ctx context.Context, id string, req core.ValidationRequest) (*core.ValidationResponse, error) {
	if _, err := s.repo.GetRecord(ctx, id); err != nil {
		return nil, err
	}

	resp := &core.ValidationResponse{IsValid: true, Errors: []string{}, Warnings: []string{}, DisplayChanges: []core.DisplayChange{}}
	for _, key := range sortedKeys(req.Data) {
		field, ok := s.fields[key]
		if !ok {
			resp.IsValid = false
			resp.Errors = append(resp.Errors, fmt.Sprintf("unknown field %q", key))
			continue
		}
		result := s.registry.Resolve(field).Validate(req.Data[key], field)
		if !result.IsValid {
			resp.IsValid = false
		}
		resp.Errors = append(resp.Errors, result.Errors...)
		resp.Warnings = append(resp.Warnings, result.Warnings...)
	}
	resp.DisplayChanges = s.displayChanges(req.Data)
	return resp, nil
}

// displayChanges evaluates visible_when: {field: <remote key>, equals: <value>}.
func (s *Service) displayChanges(data map[string]any) []core.DisplayChange {
	changes := []core.DisplayChange{}
	for _, key := range s.order {
		field := s.fields[key]
		raw, ok := field.ConfigValue("visible_when")
		if !ok {
			continue
		}
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		dep, _ := cond["field"].(string)
		value, present := data[dep]
		if dep == "" || !present {
			continue
		}
		want := fmt.Sprint(cond["equals"])
		got := fmt.Sprint(value)
		changes = append(changes, core.DisplayChange{
			Field:   key,
			Visible: strings.EqualFold(got, want),
			Reason:  fmt.Sprintf("%s is %s", dep, got),
		})
	}
	return changes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func singleKey(details map[string][]string) string {
	if len(details) == 1 {
		for k := range details {
			return k
		}
	}
	return ""
}
