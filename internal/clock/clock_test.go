package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceFiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)

	var fired []string
	c.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(2*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestManual_Stop(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	assert.False(t, called)
}

func TestManual_StopAfterFire(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestManual_CallbackSchedulesWithinSameAdvance(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	var at []time.Duration
	var tick func()
	tick = func() {
		at = append(at, c.Now().Sub(time.Unix(0, 0)))
		if len(at) < 3 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(10 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, at)
	assert.Equal(t, time.Unix(10, 0), c.Now())
}

func TestManual_CallbackMayStopOtherTimer(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	secondFired := false
	second := c.AfterFunc(2*time.Second, func() { secondFired = true })
	c.AfterFunc(time.Second, func() { second.Stop() })

	c.Advance(5 * time.Second)
	assert.False(t, secondFired)
}
