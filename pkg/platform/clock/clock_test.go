package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonotonic_NeverGoesBackwards(t *testing.T) {
	readings := []time.Time{
		time.UnixMilli(1000),
		time.UnixMilli(900),
		time.UnixMilli(1000),
		time.UnixMilli(1500),
	}
	i := 0
	c := NewMonotonic(func() time.Time {
		r := readings[i]
		i++
		return r
	})

	assert.Equal(t, int64(1000), c.Now().UnixMilli())
	assert.Equal(t, int64(1000), c.Now().UnixMilli(), "skew backwards is clamped")
	assert.Equal(t, int64(1000), c.Now().UnixMilli(), "equal readings are allowed")
	assert.Equal(t, int64(1500), c.Now().UnixMilli())
}

func TestMonotonic_TruncatesToMilliseconds(t *testing.T) {
	c := NewMonotonic(func() time.Time { return time.Unix(1, 999_999) })
	assert.Equal(t, time.UnixMilli(1000).UTC(), c.Now())
}

func TestMonotonic_ConcurrentReaders(t *testing.T) {
	c := NewMonotonic(nil)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := c.Now()
			for range 100 {
				next := c.Now()
				assert.False(t, next.Before(prev))
				prev = next
			}
		}()
	}
	wg.Wait()
}

func TestFixed(t *testing.T) {
	at := time.UnixMilli(42)
	assert.Equal(t, at, Fixed(at).Now())
}
