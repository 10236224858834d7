package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contract "vcregistry/contracts/credential"
	"vcregistry/internal/credential/metrics"
	"vcregistry/pkg/platform/circuit"
)

type countingPublisher struct {
	calls int
	err   error
}

func (c *countingPublisher) Publish(context.Context, contract.Event) error {
	c.calls++
	return c.err
}

func TestGuardedPublisher(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	sink := &countingPublisher{err: errors.New("broker down")}
	m := metrics.New(prometheus.NewRegistry())
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute), circuit.WithClock(clock))
	pub := NewGuardedPublisher(sink, breaker, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	evt := New(contract.EventIssued, testCredential(), "did:example:university", 1_000, "")
	ctx := context.Background()

	require.Error(t, pub.Publish(ctx, evt))
	require.Error(t, pub.Publish(ctx, evt))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.EventSinkOpen))

	err := pub.Publish(ctx, evt)
	assert.ErrorIs(t, err, ErrSinkOpen)
	assert.Equal(t, 2, sink.calls, "open circuit must not reach the sink")

	sink.err = nil
	now = now.Add(time.Minute)
	require.NoError(t, pub.Publish(ctx, evt))
	assert.Equal(t, 3, sink.calls)
	assert.Equal(t, circuit.StateClosed, breaker.State())
	assert.Equal(t, float64(0), promtestutil.ToFloat64(m.EventSinkOpen))
}
