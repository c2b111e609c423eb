package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventTimeSource_FiresInDeadlineOrder(t *testing.T) {
	ts := NewEventTimeSource()
	var fired []string

	ts.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	ts.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	ts.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early-second") })

	ts.Advance(50 * time.Millisecond)
	assert.Empty(t, fired)
	assert.Equal(t, 3, ts.NumTimers())

	ts.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"early", "early-second", "late"}, fired)
	assert.Equal(t, 0, ts.NumTimers())
}

func TestEventTimeSource_Stop(t *testing.T) {
	ts := NewEventTimeSource()
	fired := false

	timer := ts.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	ts.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestEventTimeSource_CallbackCanScheduleTimers(t *testing.T) {
	ts := NewEventTimeSource()
	count := 0

	ts.AfterFunc(time.Second, func() {
		count++
		ts.AfterFunc(time.Second, func() { count++ })
	})

	ts.Advance(time.Second)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, ts.NumTimers())

	ts.Advance(time.Second)
	assert.Equal(t, 2, count)
}

func TestEventTimeSource_StopAfterFire(t *testing.T) {
	ts := NewEventTimeSource()
	timer := ts.AfterFunc(time.Millisecond, func() {})
	ts.Advance(time.Millisecond)
	assert.False(t, timer.Stop())
}
