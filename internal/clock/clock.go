// Package clock abstracts time so debounce timers can be driven manually in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// TimeSource provides the current time and schedules callbacks.
type TimeSource interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// RealTimeSource is backed by the runtime clock.
type RealTimeSource struct{}

// NewRealTimeSource returns a TimeSource backed by package time.
func NewRealTimeSource() RealTimeSource {
	return RealTimeSource{}
}

// Now returns time.Now().
func (RealTimeSource) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (RealTimeSource) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// EventTimeSource is a TimeSource whose time only moves when told to.
// Due callbacks run synchronously on the goroutine calling Update or Advance,
// in deadline order.
type EventTimeSource struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*eventTimer
}

type eventTimer struct {
	source   *EventTimeSource
	deadline time.Time
	seq      uint64
	fn       func()
	done     bool
}

// NewEventTimeSource creates an EventTimeSource starting at the Unix epoch.
func NewEventTimeSource() *EventTimeSource {
	return &EventTimeSource{now: time.Unix(0, 0).UTC()}
}

// Now returns the current fake time.
func (s *EventTimeSource) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc schedules f to run once the fake time reaches now+d.
func (s *EventTimeSource) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &eventTimer{source: s, deadline: s.now.Add(d), seq: s.seq, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Update sets the fake time and fires every timer that became due.
// Time never moves backwards.
func (s *EventTimeSource) Update(now time.Time) {
	for {
		s.mu.Lock()
		if now.After(s.now) {
			s.now = now
		}
		next := s.nextDueLocked()
		if next == nil {
			s.mu.Unlock()
			return
		}
		next.done = true
		s.removeLocked(next)
		fn := next.fn
		s.mu.Unlock()

		fn()
	}
}

// Advance moves the fake time forward by d and fires due timers.
func (s *EventTimeSource) Advance(d time.Duration) {
	s.Update(s.Now().Add(d))
}

// NumTimers returns the number of scheduled, unfired, unstopped timers.
func (s *EventTimeSource) NumTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *EventTimeSource) nextDueLocked() *eventTimer {
	due := make([]*eventTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.deadline.After(s.now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}

func (s *EventTimeSource) removeLocked(t *eventTimer) {
	for i, candidate := range s.timers {
		if candidate == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

// Stop implements Timer.
func (t *eventTimer) Stop() bool {
	s := t.source
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	s.removeLocked(t)
	return true
}
