// Package orchestrator decides when changed field values reach the
// persistence collaborator.
//
// Each field key moves through Idle, Pending, Saving and back to Idle. The
// pending table holds at most one change per key and later edits overwrite
// earlier ones. A key never has two saves in flight: an edit arriving while
// its key is saving waits as the next pending change and is sent once the
// in-flight call resolves.
//
// Every change is stamped with a per-key generation. A change is only sent
// if no newer generation of its key has been sent already; older ones are
// reported as superseded.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/fieldsync/internal/clock"
	"github.com/leapstack-labs/fieldsync/internal/events"
	"github.com/leapstack-labs/fieldsync/internal/strategy"
	"github.com/leapstack-labs/fieldsync/internal/validation"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"golang.org/x/sync/errgroup"
)

// DefaultBulkConcurrency bounds the parallel saves of SaveAllPending.
const DefaultBulkConcurrency = 4

// Config configures an Orchestrator.
type Config struct {
	// Endpoint is the remote persistence endpoint. Required.
	Endpoint string
	// Persister performs the save calls. Required.
	Persister core.Persister
	// Strategies maps field types to save strategies. Nil uses the defaults.
	Strategies *strategy.Resolver
	// Validation, when set, is scheduled on every change and cancelled on Cleanup.
	Validation *validation.Channel
	Clock      clock.TimeSource
	Bus        *events.Bus
	Logger     *slog.Logger

	// OnSuccess and OnError receive each terminal save outcome.
	OnSuccess func(SaveResult)
	OnError   func(SaveResult)

	BulkConcurrency int

	// Context bounds saves started by debounce timers. Nil means context.Background().
	Context context.Context
}

type armedTimer struct {
	timer  clock.Timer
	change *PendingChange
}

// flight marks a key with a save in progress. done closes when the key's
// save chain ends.
type flight struct {
	done chan struct{}
}

// Orchestrator is the per-editing-surface save engine.
type Orchestrator struct {
	endpoint    string
	persister   core.Persister
	strategies  *strategy.Resolver
	validation  *validation.Channel
	clock       clock.TimeSource
	bus         *events.Bus
	logger      *slog.Logger
	onSuccess   func(SaveResult)
	onError     func(SaveResult)
	concurrency int
	ctx         context.Context

	mu      sync.Mutex
	pending map[string]*PendingChange
	timers  map[string]*armedTimer
	flights map[string]*flight
	// gens is the latest generation stamped per key, sent the latest sent.
	gens map[string]uint64
	sent map[string]uint64
}

// New creates an Orchestrator. A missing endpoint or persister is a
// configuration error.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Endpoint == "" {
		return nil, core.ConfigurationErrorf("persistence endpoint is required")
	}
	if cfg.Persister == nil {
		return nil, core.ConfigurationErrorf("persister is required")
	}

	o := &Orchestrator{
		endpoint:    cfg.Endpoint,
		persister:   cfg.Persister,
		strategies:  cfg.Strategies,
		validation:  cfg.Validation,
		clock:       cfg.Clock,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		onSuccess:   cfg.OnSuccess,
		onError:     cfg.OnError,
		concurrency: cfg.BulkConcurrency,
		ctx:         cfg.Context,
		pending:     make(map[string]*PendingChange),
		timers:      make(map[string]*armedTimer),
		flights:     make(map[string]*flight),
		gens:        make(map[string]uint64),
		sent:        make(map[string]uint64),
	}
	if o.strategies == nil {
		o.strategies = strategy.NewDefault()
	}
	if o.clock == nil {
		o.clock = clock.NewRealTimeSource()
	}
	if o.bus == nil {
		o.bus = events.New()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultBulkConcurrency
	}
	if o.ctx == nil {
		o.ctx = context.Background()
	}
	return o, nil
}

// Events returns the bus save outcomes are published on.
func (o *Orchestrator) Events() *events.Bus {
	return o.bus
}

// OnFieldChange records a new value for a field and acts on its strategy.
//
// Immediate fields are saved before OnFieldChange returns, unless the key
// already has a save in flight, in which case the value is queued behind it.
// Debounced fields (re)arm their timer. All other strategies overwrite the
// key's pending change.
//
// The returned error is only ever a configuration error; save outcomes are
// reported through the callbacks and the event bus.
func (o *Orchestrator) OnFieldChange(ctx context.Context, field core.FieldDescriptor, value any) error {
	key := field.Key()
	if key == "" {
		return core.ConfigurationErrorf("field name is required")
	}

	st := o.strategies.ResolveField(field)
	change := &PendingChange{
		FieldKey:  key,
		Field:     field,
		Value:     value,
		Strategy:  st,
		Endpoint:  o.endpoint,
		Timestamp: o.clock.Now(),
		onSuccess: o.onSuccess,
		onError:   o.onError,
	}

	if o.validation != nil {
		if err := o.validation.Schedule(field, value); err != nil {
			o.logger.Warn("failed to schedule validation", "field", key, "error", err)
		}
	}

	o.mu.Lock()
	o.gens[key]++
	change.gen = o.gens[key]
	o.supersedeLocked(key)

	switch st {
	case core.StrategyImmediate:
		f := o.beginLocked(change)
		o.mu.Unlock()
		if f != nil {
			o.drain(ctx, f, change)
		}

	case core.StrategyOnChangeDebounced:
		o.armLocked(change)
		o.mu.Unlock()

	default:
		o.pending[key] = change
		o.mu.Unlock()
		o.logger.Debug("change pending", "field", key, "strategy", st)
	}
	return nil
}

// OnFieldExit saves the key's pending change when its strategy is OnExit or
// Continuous. It returns nil with no error when there is nothing to save.
func (o *Orchestrator) OnFieldExit(ctx context.Context, fieldKey string) (*SaveResult, error) {
	return o.flush(ctx, fieldKey, func(st core.SaveStrategy) bool {
		return st == core.StrategyOnExit || st == core.StrategyContinuous
	})
}

// SaveField saves the key's pending change when its strategy is Manual.
// It returns nil with no error when there is nothing to save.
func (o *Orchestrator) SaveField(ctx context.Context, fieldKey string) (*SaveResult, error) {
	return o.flush(ctx, fieldKey, func(st core.SaveStrategy) bool {
		return st == core.StrategyManual
	})
}

func (o *Orchestrator) flush(ctx context.Context, key string, accept func(core.SaveStrategy) bool) (*SaveResult, error) {
	for {
		o.mu.Lock()
		change, ok := o.pending[key]
		if !ok || !accept(change.Strategy) {
			o.mu.Unlock()
			return nil, nil
		}
		if f, busy := o.flights[key]; busy {
			o.mu.Unlock()
			select {
			case <-f.done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		delete(o.pending, key)
		f := o.startFlightLocked(key)
		o.mu.Unlock()

		result := o.drain(ctx, f, change)
		return &result, result.Err
	}
}

// SaveAllPending saves every pending change independently and returns one
// result per change, ordered by field key. The pending table is drained at
// the start of the call; edits made while it runs stay pending. A change
// overtaken by a newer save of its key while waiting for the key's lane is
// not sent and its result is marked Superseded.
func (o *Orchestrator) SaveAllPending(ctx context.Context) []SaveResult {
	o.mu.Lock()
	changes := make([]*PendingChange, 0, len(o.pending))
	for key, change := range o.pending {
		changes = append(changes, change)
		delete(o.pending, key)
	}
	o.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].FieldKey < changes[j].FieldKey })

	results := make([]SaveResult, len(changes))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, change := range changes {
		g.Go(func() error {
			results[i] = o.saveExclusive(ctx, change)
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Debug("saved all pending", "count", len(results))
	return results
}

// saveExclusive waits for the key's lane, then saves the change.
func (o *Orchestrator) saveExclusive(ctx context.Context, change *PendingChange) SaveResult {
	for {
		o.mu.Lock()
		f, busy := o.flights[change.FieldKey]
		if !busy {
			f = o.startFlightLocked(change.FieldKey)
			o.mu.Unlock()
			return o.drain(ctx, f, change)
		}
		o.mu.Unlock()

		select {
		case <-f.done:
		case <-ctx.Done():
			result := SaveResult{
				SaveID:   uuid.NewString(),
				FieldKey: change.FieldKey,
				Label:    change.Field.DisplayLabel(),
				Value:    change.Value,
				Err:      core.TransportError("save cancelled", ctx.Err()),
			}
			o.report(change, result)
			return result
		}
	}
}

// Cleanup cancels every persistence and validation timer and drops the
// pending table. Saves already in flight run to completion.
func (o *Orchestrator) Cleanup() {
	o.mu.Lock()
	stopped := len(o.timers)
	for key, armed := range o.timers {
		armed.timer.Stop()
		delete(o.timers, key)
	}
	dropped := len(o.pending)
	clear(o.pending)
	o.mu.Unlock()

	if o.validation != nil {
		o.validation.CancelAll()
	}
	o.logger.Debug("orchestrator cleaned up", "timers_stopped", stopped, "pending_dropped", dropped)
}

// Wait blocks until no key has a save in flight.
func (o *Orchestrator) Wait(ctx context.Context) error {
	for {
		o.mu.Lock()
		var f *flight
		for _, candidate := range o.flights {
			f = candidate
			break
		}
		o.mu.Unlock()
		if f == nil {
			return nil
		}
		select {
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// supersedeLocked discards the key's armed timer and pending change.
func (o *Orchestrator) supersedeLocked(key string) {
	if armed, ok := o.timers[key]; ok {
		armed.timer.Stop()
		delete(o.timers, key)
	}
	delete(o.pending, key)
}

// beginLocked claims the key's lane for change. If a save is already in
// flight the change is queued and nil is returned.
func (o *Orchestrator) beginLocked(change *PendingChange) *flight {
	if _, busy := o.flights[change.FieldKey]; busy {
		change.queued = true
		o.pending[change.FieldKey] = change
		o.logger.Debug("change queued behind in-flight save", "field", change.FieldKey)
		return nil
	}
	return o.startFlightLocked(change.FieldKey)
}

func (o *Orchestrator) startFlightLocked(key string) *flight {
	f := &flight{done: make(chan struct{})}
	o.flights[key] = f
	return f
}

func (o *Orchestrator) armLocked(change *PendingChange) {
	d := o.strategies.DebounceField(change.Field)
	armed := &armedTimer{change: change}
	armed.timer = o.clock.AfterFunc(d, func() { o.fire(change.FieldKey, armed) })
	o.timers[change.FieldKey] = armed
	o.logger.Debug("debounce armed", "field", change.FieldKey, "delay", d)
}

// fire runs when a debounce timer elapses. A timer that was superseded or
// stopped by Cleanup after it began firing does nothing.
func (o *Orchestrator) fire(key string, armed *armedTimer) {
	o.mu.Lock()
	if o.timers[key] != armed {
		o.mu.Unlock()
		return
	}
	delete(o.timers, key)
	f := o.beginLocked(armed.change)
	o.mu.Unlock()

	if f != nil {
		o.drain(o.ctx, f, armed.change)
	}
}

// drain saves change, then any change queued behind it, and releases the
// key's lane. It returns the result of the first save. The caller must own
// the key's lane.
func (o *Orchestrator) drain(ctx context.Context, f *flight, change *PendingChange) SaveResult {
	first := o.sendLatest(ctx, change)
	for {
		o.mu.Lock()
		next, ok := o.pending[change.FieldKey]
		if !ok || !next.queued {
			delete(o.flights, change.FieldKey)
			close(f.done)
			o.mu.Unlock()
			return first
		}
		delete(o.pending, change.FieldKey)
		o.mu.Unlock()

		o.sendLatest(ctx, next)
	}
}

// sendLatest saves change unless a newer generation of its key was already
// sent, in which case it returns a superseded result without a persistence call.
func (o *Orchestrator) sendLatest(ctx context.Context, change *PendingChange) SaveResult {
	o.mu.Lock()
	stale := change.gen < o.sent[change.FieldKey]
	if !stale {
		o.sent[change.FieldKey] = change.gen
	}
	o.mu.Unlock()

	if stale {
		o.logger.Debug("change superseded by a newer save", "field", change.FieldKey)
		return SaveResult{
			SaveID:     uuid.NewString(),
			FieldKey:   change.FieldKey,
			Label:      change.Field.DisplayLabel(),
			Value:      change.Value,
			Superseded: true,
		}
	}
	return o.save(ctx, change)
}

// save performs exactly one persistence call and reports its outcome.
func (o *Orchestrator) save(ctx context.Context, change *PendingChange) SaveResult {
	result := SaveResult{
		SaveID:   uuid.NewString(),
		FieldKey: change.FieldKey,
		Label:    change.Field.DisplayLabel(),
		Value:    change.Value,
	}
	logger := o.logger.With("save_id", result.SaveID, "field", change.FieldKey)
	logger.Debug("saving field", "strategy", change.Strategy)

	payload := core.Payload{Data: map[string]any{change.Field.RemoteKey(): change.Value}}
	start := o.clock.Now()
	resp, err := o.persister.Persist(ctx, change.Endpoint, payload)
	result.Duration = o.clock.Now().Sub(start)

	if err != nil {
		if core.CodeOf(err) == "" {
			err = core.TransportError("persist failed", err)
		}
		result.Err = err
		logger.Warn("save failed", "error", err, "duration", result.Duration)
	} else {
		result.Response = resp
		logger.Debug("save succeeded", "duration", result.Duration)
	}

	o.report(change, result)
	return result
}

func (o *Orchestrator) report(change *PendingChange, result SaveResult) {
	event := events.Event{
		FieldKey: result.FieldKey,
		Label:    result.Label,
		Value:    result.Value,
		Message:  result.Message(),
		Response: result.Response,
		Err:      result.Err,
		At:       o.clock.Now(),
	}
	if result.Err != nil {
		if change.onError != nil {
			change.onError(result)
		}
		event.Kind = events.SaveFailed
	} else {
		if change.onSuccess != nil {
			change.onSuccess(result)
		}
		event.Kind = events.SaveSucceeded
	}
	o.bus.Publish(event)
}
