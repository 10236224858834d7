package events

import (
	"context"
	"errors"
	"log/slog"

	contract "vcregistry/contracts/credential"
	"vcregistry/internal/credential/metrics"
	"vcregistry/pkg/platform/circuit"
)

// ErrSinkOpen is returned while the sink's circuit is open and the event was
// dropped without being sent.
var ErrSinkOpen = errors.New("event sink circuit open")

// Publisher is the delivery side of an event sink.
type Publisher interface {
	Publish(ctx context.Context, event contract.Event) error
}

// GuardedPublisher stops calling a failing sink after repeated errors so that
// a broker outage costs each request one breaker check instead of a produce
// timeout.
type GuardedPublisher struct {
	next    Publisher
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewGuardedPublisher(next Publisher, breaker *circuit.Breaker, logger *slog.Logger, m *metrics.Metrics) *GuardedPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedPublisher{next: next, breaker: breaker, logger: logger, metrics: m}
}

func (p *GuardedPublisher) Publish(ctx context.Context, event contract.Event) error {
	if !p.breaker.Allow() {
		return ErrSinkOpen
	}

	if err := p.next.Publish(ctx, event); err != nil {
		if change := p.breaker.RecordFailure(); change.Opened {
			p.metrics.SetEventSinkOpen(true)
			p.logger.WarnContext(ctx, "event sink circuit opened",
				"breaker", p.breaker.Name(),
				"error", err,
			)
		}
		return err
	}

	if change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.SetEventSinkOpen(false)
		p.logger.InfoContext(ctx, "event sink circuit closed", "breaker", p.breaker.Name())
	}
	return nil
}
