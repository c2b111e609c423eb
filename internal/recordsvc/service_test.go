package recordsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/fieldsync/internal/fieldtypes"
	"github.com/leapstack-labs/fieldsync/internal/store"
	"github.com/leapstack-labs/fieldsync/internal/testutil"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFields() []core.FieldDescriptor {
	return []core.FieldDescriptor{
		{Name: "status", Type: "select", Label: "Status", Config: map[string]any{"options": []any{"open", "closed"}}},
		{Name: "amount", Type: "number", Label: "Amount", Config: map[string]any{"min": 0}},
		{Name: "kind", Type: "select", Label: "Kind", Config: map[string]any{"options": []any{"personal", "business"}}},
		{Name: "company", Type: "text", Label: "Company", Config: map[string]any{
			"visible_when": map[string]any{"field": "kind", "equals": "business"},
		}},
		{Name: "notes", Slug: "cf_notes", Type: "textarea", Label: "Notes"},
	}
}

func setupService(t *testing.T) (*Service, *store.Record) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	svc, err := New(Config{
		Repository: st,
		Fields:     testFields(),
		Registry:   fieldtypes.NewRegistry(),
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	rec, err := svc.Create(ctx)
	require.NoError(t, err)
	return svc, rec
}

func TestNew_RejectsBadSchema(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = New(Config{
		Repository: &store.Store{},
		Fields:     []core.FieldDescriptor{{Name: "a"}, {Name: "a"}},
	})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestService_Save(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()

	got, err := svc.Save(ctx, rec.ID, map[string]any{"status": "closed", "cf_notes": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "closed", "cf_notes": "hello"}, got.Fields)

	history, err := svc.History(ctx, rec.ID, "status", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "closed", history[0].Value)
}

func TestService_SaveRejectsInvalid(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		data    map[string]any
		wantKey string
	}{
		{name: "unknown field", data: map[string]any{"colour": "red"}, wantKey: "colour"},
		{name: "bad option", data: map[string]any{"status": "archived"}, wantKey: "status"},
		{name: "not a number", data: map[string]any{"amount": "lots"}, wantKey: "amount"},
		{name: "name instead of slug", data: map[string]any{"notes": "x"}, wantKey: "notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(ctx, rec.ID, tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)

			var coreErr *core.Error
			require.True(t, errors.As(err, &coreErr))
			assert.Contains(t, coreErr.Details, tt.wantKey)
			assert.Equal(t, tt.wantKey, coreErr.Field)
		})
	}

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Fields, "rejected saves write nothing")
}

func TestService_SaveUnknownRecord(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.Save(context.Background(), "missing", map[string]any{"status": "open"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Validate(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()

	resp, err := svc.Validate(ctx, rec.ID, core.ValidationRequest{
		Data:         map[string]any{"kind": "business"},
		ValidateOnly: true,
		FieldSlug:    "kind",
	})
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.Equal(t, []core.DisplayChange{{Field: "company", Visible: true, Reason: "kind is business"}}, resp.DisplayChanges)

	resp, err = svc.Validate(ctx, rec.ID, core.ValidationRequest{Data: map[string]any{"kind": "personal"}})
	require.NoError(t, err)
	require.Len(t, resp.DisplayChanges, 1)
	assert.False(t, resp.DisplayChanges[0].Visible)

	resp, err = svc.Validate(ctx, rec.ID, core.ValidationRequest{Data: map[string]any{"status": "archived"}})
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Equal(t, []string{"Status must be one of open, closed"}, resp.Errors)
	assert.Empty(t, resp.DisplayChanges)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Fields, "validation never writes")
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{endpoint: "http://localhost:8080/records/abc", want: "abc"},
		{endpoint: "http://localhost:8080/api/records/abc/validate", want: "abc"},
		{endpoint: "local:/records/r-1", want: "r-1"},
		{endpoint: "http://localhost:8080/records", wantErr: true},
		{endpoint: "http://localhost:8080/records/validate", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := RecordID(tt.endpoint)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "local:/records/r-1", Endpoint("local:", "r-1"))
}

func TestLocalBackend(t *testing.T) {
	svc, rec := setupService(t)
	backend := NewLocalBackend(svc)
	ctx := context.Background()
	endpoint := Endpoint("local:", rec.ID)

	resp, err := backend.Persist(ctx, endpoint, core.Payload{Data: map[string]any{"status": "open"}})
	require.NoError(t, err)
	assert.Equal(t, "open", resp.Data["status"])

	vresp, err := backend.Validate(ctx, core.ValidateEndpoint(endpoint), core.ValidationRequest{
		Data: map[string]any{"amount": -5}, ValidateOnly: true, FieldSlug: "amount",
	})
	require.NoError(t, err)
	assert.False(t, vresp.IsValid)
}
