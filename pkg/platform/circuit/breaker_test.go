package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := New("sink", WithFailureThreshold(3), WithClock(clk.now))

	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.True(t, b.Allow())
	assert.Equal(t, StateChange{Opened: true}, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("sink", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := New("sink", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(clk.now))

	b.RecordFailure()
	clk.advance(9 * time.Second)
	assert.False(t, b.Allow())

	clk.advance(time.Second)
	assert.True(t, b.Allow(), "first call after cooldown is a probe")
	assert.False(t, b.Allow(), "only one probe per cooldown")

	assert.Equal(t, StateChange{}, b.RecordFailure(), "failed probe keeps the circuit open")
	assert.False(t, b.Allow())

	clk.advance(10 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateChange{Closed: true}, b.RecordSuccess())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerSuccessThreshold(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := New("sink", WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Second), WithClock(clk.now))

	b.RecordFailure()
	clk.advance(time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateChange{}, b.RecordSuccess())
	assert.Equal(t, StateOpen, b.State())

	clk.advance(time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateChange{Closed: true}, b.RecordSuccess())
}

func TestBreakerReset(t *testing.T) {
	b := New("sink", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.Equal(t, "sink", b.Name())
}
