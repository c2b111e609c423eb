// Package transport implements the persistence and validation collaborators
// over HTTP with JSON bodies.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is kept for messages.
const maxErrorBody = 64 << 10

// Config configures a Client.
type Config struct {
	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
	// PersistMethod defaults to PATCH.
	PersistMethod string
	// Headers are added to every request, e.g. Authorization.
	Headers map[string]string
	Logger  *slog.Logger
}

// Client is both a core.Persister and a core.Validator.
type Client struct {
	http          *http.Client
	persistMethod string
	headers       map[string]string
	logger        *slog.Logger
}

var (
	_ core.Persister = (*Client)(nil)
	_ core.Validator = (*Client)(nil)
)

// New creates a Client.
func New(cfg Config) *Client {
	c := &Client{
		http:          cfg.HTTPClient,
		persistMethod: cfg.PersistMethod,
		headers:       cfg.Headers,
		logger:        cfg.Logger,
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.persistMethod == "" {
		c.persistMethod = http.MethodPatch
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Persist sends {"data": {...}} to endpoint. Any 2xx reply is a success; the
// body is kept verbatim in Raw and Data is filled only when the body has the
// {"data": {...}} shape.
func (c *Client) Persist(ctx context.Context, endpoint string, payload core.Payload) (*core.Response, error) {
	raw, err := c.do(ctx, c.persistMethod, endpoint, payload)
	if err != nil {
		return nil, err
	}
	out := &core.Response{Raw: raw}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Debug("persist reply is not a data envelope", "endpoint", endpoint, "error", err)
		out.Data = nil
	}
	return out, nil
}

// Validate posts a validate-only request to endpoint.
func (c *Client) Validate(ctx context.Context, endpoint string, req core.ValidationRequest) (*core.ValidationResponse, error) {
	raw, err := c.do(ctx, http.MethodPost, endpoint, req)
	if err != nil {
		return nil, err
	}
	var out core.ValidationResponse
	if len(raw) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, core.TransportError("decode response", err)
	}
	return &out, nil
}

// do sends body and returns the trimmed body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	if endpoint == "" {
		return nil, core.ConfigurationErrorf("endpoint is required")
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, core.ConfigurationErrorf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.TransportError(fmt.Sprintf("%s %s", method, endpoint), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, core.HTTPError(resp.StatusCode, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.TransportError("read response", err)
	}
	return bytes.TrimSpace(data), nil
}
