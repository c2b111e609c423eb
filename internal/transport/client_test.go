package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leapstack-labs/fieldsync/internal/testutil"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Persist(t *testing.T) {
	var (
		gotMethod string
		gotAuth   string
		gotBody   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":"closed","updated":true}}`))
	}))
	defer srv.Close()

	c := New(Config{Headers: map[string]string{"Authorization": "Bearer t0k"}, Logger: testutil.NewTestLogger(t)})
	resp, err := c.Persist(context.Background(), srv.URL+"/records/1", core.Payload{Data: map[string]any{"status": "closed"}})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "Bearer t0k", gotAuth)
	assert.Equal(t, map[string]any{"data": map[string]any{"status": "closed"}}, gotBody)
	assert.Equal(t, map[string]any{"status": "closed", "updated": true}, resp.Data)
}

func TestClient_PersistEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := New(Config{}).Persist(context.Background(), srv.URL, core.Payload{Data: map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Nil(t, resp.Data)
}

func TestClient_PersistPassesThroughOtherBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "plain text", body: "ok"},
		{name: "json array", body: `[{"id":1}]`},
		{name: "object without data", body: `{"id":"r1","version":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := New(Config{Logger: testutil.NewTestLogger(t)}).Persist(context.Background(), srv.URL, core.Payload{Data: map[string]any{"a": 1}})
			require.NoError(t, err, "a 2xx reply is a successful save")
			require.NotNil(t, resp)
			assert.Nil(t, resp.Data)
			assert.Equal(t, tt.body, string(resp.Raw))
		})
	}
}

func TestClient_ValidateUndecodableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := New(Config{}).Validate(context.Background(), srv.URL, core.ValidationRequest{ValidateOnly: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"Status must be one of open, closed"}`))
	}))
	defer srv.Close()

	_, err := New(Config{}).Persist(context.Background(), srv.URL, core.Payload{Data: map[string]any{"status": "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)

	var coreErr *core.Error
	require.True(t, errors.As(err, &coreErr))
	assert.Equal(t, http.StatusUnprocessableEntity, coreErr.Status)
	assert.Equal(t, "Status must be one of open, closed", core.UserMessage(err))
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Config{}).Persist(context.Background(), url, core.Payload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{Timeout: 20 * time.Millisecond}).Persist(context.Background(), srv.URL, core.Payload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestClient_Validate(t *testing.T) {
	var got core.ValidationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/records/1/validate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"is_valid":false,"errors":["too short"],"warnings":[],"display_changes":[{"field":"company","visible":true}]}`))
	}))
	defer srv.Close()

	req := core.ValidationRequest{Data: map[string]any{"name": "x"}, ValidateOnly: true, FieldSlug: "name"}
	resp, err := New(Config{}).Validate(context.Background(), core.ValidateEndpoint(srv.URL+"/records/1"), req)
	require.NoError(t, err)

	assert.Equal(t, req, got)
	assert.False(t, resp.IsValid)
	assert.Equal(t, []string{"too short"}, resp.Errors)
	assert.Equal(t, []core.DisplayChange{{Field: "company", Visible: true}}, resp.DisplayChanges)
}

func TestClient_EmptyEndpoint(t *testing.T) {
	_, err := New(Config{}).Persist(context.Background(), "", core.Payload{})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
