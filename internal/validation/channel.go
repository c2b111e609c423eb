// Package validation runs debounced, validate-only checks of field values.
//
// The channel is independent of persistence: it never saves, and saving never
// waits on it. Results are kept per field key; a newer schedule or a
// CancelAll makes any in-flight check stale and its result is dropped.
package validation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/fieldsync/internal/clock"
	"github.com/leapstack-labs/fieldsync/internal/events"
	"github.com/leapstack-labs/fieldsync/internal/registry"
	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// DefaultDebounce is the quiet period before a scheduled validation runs.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Channel.
type Config struct {
	// Endpoint is the persistence endpoint; validations go to Endpoint + "/validate".
	Endpoint  string
	Validator core.Validator
	// Registry enables a local capability pre-check. A locally invalid value
	// is recorded without calling the remote validator.
	Registry *registry.Registry
	Clock    clock.TimeSource
	Debounce time.Duration
	Bus      *events.Bus
	// OnResult is called with every fresh result.
	OnResult func(fieldKey string, result core.ValidationResult)
	Logger   *slog.Logger
	// Context bounds validations started by timers. Nil means context.Background().
	Context context.Context
}

type armedTimer struct {
	timer clock.Timer
}

// Channel is a per-editing-surface validation pipeline.
type Channel struct {
	endpoint  string
	validator core.Validator
	registry  *registry.Registry
	clock     clock.TimeSource
	debounce  time.Duration
	bus       *events.Bus
	onResult  func(string, core.ValidationResult)
	logger    *slog.Logger
	ctx       context.Context

	mu      sync.Mutex
	timers  map[string]*armedTimer
	results map[string]core.ValidationResult
	seq     map[string]uint64
	epoch   uint64
}

// New creates a Channel. It fails with a configuration error when the
// validator or endpoint is missing.
func New(cfg Config) (*Channel, error) {
	if cfg.Validator == nil {
		return nil, core.ConfigurationErrorf("validation channel requires a validator")
	}
	if cfg.Endpoint == "" {
		return nil, core.ConfigurationErrorf("validation channel requires an endpoint")
	}
	c := &Channel{
		endpoint:  cfg.Endpoint,
		validator: cfg.Validator,
		registry:  cfg.Registry,
		clock:     cfg.Clock,
		debounce:  cfg.Debounce,
		bus:       cfg.Bus,
		onResult:  cfg.OnResult,
		logger:    cfg.Logger,
		ctx:       cfg.Context,
		timers:    make(map[string]*armedTimer),
		results:   make(map[string]core.ValidationResult),
		seq:       make(map[string]uint64),
	}
	if c.clock == nil {
		c.clock = clock.NewRealTimeSource()
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	return c, nil
}

// Schedule (re)arms the field's validation timer. Any timer already running
// for the field is cancelled first.
func (c *Channel) Schedule(field core.FieldDescriptor, value any) error {
	key := field.Key()
	if key == "" {
		return core.ConfigurationErrorf("field name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.timers[key]; ok {
		existing.timer.Stop()
	}
	c.seq[key]++
	seq, epoch := c.seq[key], c.epoch

	armed := &armedTimer{}
	armed.timer = c.clock.AfterFunc(c.debounce, func() {
		c.fire(key, armed, field, value, seq, epoch)
	})
	c.timers[key] = armed
	return nil
}

func (c *Channel) fire(key string, armed *armedTimer, field core.FieldDescriptor, value any, seq, epoch uint64) {
	c.mu.Lock()
	if c.timers[key] != armed {
		c.mu.Unlock()
		return
	}
	delete(c.timers, key)
	c.mu.Unlock()

	result := c.ValidateNow(c.ctx, field, value)
	c.record(key, result, seq, epoch)
}

// ValidateNow validates a value immediately and returns the result without
// recording it. Transport failures become the "service unavailable" result.
func (c *Channel) ValidateNow(ctx context.Context, field core.FieldDescriptor, value any) core.ValidationResult {
	if c.registry != nil {
		local := c.registry.Resolve(field).Validate(value, field)
		if !local.IsValid {
			c.logger.Debug("local validation failed", "field", field.Key(), "errors", local.Errors)
			return local
		}
	}

	remoteKey := field.RemoteKey()
	req := core.ValidationRequest{
		Data:         map[string]any{remoteKey: value},
		ValidateOnly: true,
		FieldSlug:    remoteKey,
	}

	start := c.clock.Now()
	resp, err := c.validator.Validate(ctx, core.ValidateEndpoint(c.endpoint), req)
	if err != nil {
		c.logger.Warn("validation call failed", "field", field.Key(), "error", err)
		return core.Unavailable()
	}
	if resp == nil {
		return core.Valid()
	}
	c.logger.Debug("validation completed",
		"field", field.Key(),
		"is_valid", resp.IsValid,
		"duration", c.clock.Now().Sub(start),
	)
	return resp.Result()
}

// record stores a result unless a newer schedule or a cancel superseded it.
func (c *Channel) record(key string, result core.ValidationResult, seq, epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.seq[key] != seq {
		c.mu.Unlock()
		c.logger.Debug("dropping stale validation result", "field", key)
		return
	}
	c.results[key] = result
	c.mu.Unlock()

	if c.onResult != nil {
		c.onResult(key, result)
	}
	if c.bus != nil {
		r := result
		c.bus.Publish(events.Event{Kind: events.ValidationChanged, FieldKey: key, Validation: &r, At: c.clock.Now()})
	}
}

// LastResult returns the most recent result recorded for a field.
func (c *Channel) LastResult(fieldKey string) (core.ValidationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[fieldKey]
	return r, ok
}

// Cancel stops the field's pending timer and invalidates any in-flight check.
func (c *Channel) Cancel(fieldKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if armed, ok := c.timers[fieldKey]; ok {
		armed.timer.Stop()
		delete(c.timers, fieldKey)
	}
	c.seq[fieldKey]++
}

// CancelAll stops every timer and invalidates every in-flight check.
// Recorded results are kept.
func (c *Channel) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, armed := range c.timers {
		armed.timer.Stop()
		delete(c.timers, key)
	}
	c.epoch++
}

// ActiveTimers returns the number of armed validation timers.
func (c *Channel) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
