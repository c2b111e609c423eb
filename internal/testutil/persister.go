package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// PersistCall is one recorded Persist invocation.
type PersistCall struct {
	Endpoint string
	Data     map[string]any
	At       time.Time
}

// RecordingPersister records Persist calls. Fail, when set, decides the
// error for a call; Gate, when set, blocks each call until it can receive.
type RecordingPersister struct {
	Now  func() time.Time
	Fail func(data map[string]any) error
	Gate chan struct{}
	// Started receives the data of each call before it blocks on Gate.
	Started chan map[string]any

	mu    sync.Mutex
	calls []PersistCall
}

// Persist implements core.Persister.
func (p *RecordingPersister) Persist(ctx context.Context, endpoint string, payload core.Payload) (*core.Response, error) {
	call := PersistCall{Endpoint: endpoint, Data: payload.Data}
	if p.Now != nil {
		call.At = p.Now()
	}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()

	if p.Started != nil {
		p.Started <- payload.Data
	}
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.Fail != nil {
		if err := p.Fail(payload.Data); err != nil {
			return nil, err
		}
	}
	return &core.Response{Data: payload.Data}, nil
}

// Calls returns a copy of the recorded calls.
func (p *RecordingPersister) Calls() []PersistCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PersistCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Count returns the number of recorded calls.
func (p *RecordingPersister) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
