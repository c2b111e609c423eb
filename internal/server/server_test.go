package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/fieldsync/internal/fieldtypes"
	"github.com/leapstack-labs/fieldsync/internal/orchestrator"
	"github.com/leapstack-labs/fieldsync/internal/recordsvc"
	"github.com/leapstack-labs/fieldsync/internal/store"
	"github.com/leapstack-labs/fieldsync/internal/testutil"
	"github.com/leapstack-labs/fieldsync/internal/transport"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*httptest.Server, *recordsvc.Service) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	svc, err := recordsvc.New(recordsvc.Config{
		Repository: st,
		Registry:   fieldtypes.NewRegistry(),
		Fields: []core.FieldDescriptor{
			{Name: "status", Type: "select", Label: "Status", Config: map[string]any{"options": []any{"open", "closed"}}},
			{Name: "notes", Type: "text", Label: "Notes"},
		},
	})
	require.NoError(t, err)

	srv := New(Config{Service: svc, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func createRecord(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/records", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec store.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	require.NotEmpty(t, rec.ID)
	return rec.ID
}

func TestHealthz(t *testing.T) {
	ts, _ := setupServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordLifecycle(t *testing.T) {
	ts, _ := setupServer(t)
	ctx := context.Background()
	id := createRecord(t, ts)
	endpoint := recordsvc.Endpoint(ts.URL, id)
	client := transport.New(transport.Config{})

	saved, err := client.Persist(ctx, endpoint, core.Payload{Data: map[string]any{"status": "closed"}})
	require.NoError(t, err)
	assert.Equal(t, "closed", saved.Data["status"])

	resp, err := http.Get(endpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	var rec store.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, map[string]any{"status": "closed"}, rec.Fields)

	hist, err := http.Get(endpoint + "/history?field=status")
	require.NoError(t, err)
	defer hist.Body.Close()
	var body struct {
		Changes []store.Change `json:"changes"`
	}
	require.NoError(t, json.NewDecoder(hist.Body).Decode(&body))
	require.Len(t, body.Changes, 1)
	assert.Equal(t, "closed", body.Changes[0].Value)
}

func TestSaveRejected(t *testing.T) {
	ts, _ := setupServer(t)
	id := createRecord(t, ts)
	client := transport.New(transport.Config{})

	_, err := client.Persist(context.Background(), recordsvc.Endpoint(ts.URL, id), core.Payload{Data: map[string]any{"status": "archived"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.Equal(t, "status: Status must be one of open, closed", core.UserMessage(err))
}

func TestValidateEndpoint(t *testing.T) {
	ts, _ := setupServer(t)
	id := createRecord(t, ts)
	client := transport.New(transport.Config{})

	resp, err := client.Validate(context.Background(), core.ValidateEndpoint(recordsvc.Endpoint(ts.URL, id)), core.ValidationRequest{
		Data: map[string]any{"status": "archived"}, ValidateOnly: true, FieldSlug: "status",
	})
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Equal(t, []string{"Status must be one of open, closed"}, resp.Errors)
}

func TestNotFoundAndBadRequests(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/records/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	id := createRecord(t, ts)
	req, err := http.NewRequest(http.MethodPatch, recordsvc.Endpoint(ts.URL, id), strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(recordsvc.Endpoint(ts.URL, id) + "/history?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrchestratorAgainstServer(t *testing.T) {
	ts, svc := setupServer(t)
	ctx := context.Background()
	id := createRecord(t, ts)

	orch, err := orchestrator.New(orchestrator.Config{
		Endpoint:  recordsvc.Endpoint(ts.URL, id),
		Persister: transport.New(transport.Config{}),
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	fields := svc.Fields()
	require.NoError(t, orch.OnFieldChange(ctx, fields[0], "open"))
	require.NoError(t, orch.OnFieldChange(ctx, fields[1], "first draft"))
	result, err := orch.OnFieldExit(ctx, "notes")
	require.NoError(t, err)
	require.NotNil(t, result)

	rec, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "open", "notes": "first draft"}, rec.Fields)
}

func TestServeListener_ShutsDownOnCancel(t *testing.T) {
	_, svc := setupServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(Config{Service: svc}).ServeListener(ctx, ln)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
