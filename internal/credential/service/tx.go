package service

import (
	"context"
	"time"

	"vcregistry/internal/credential/metrics"
	"vcregistry/internal/credential/models"
	dErrors "vcregistry/pkg/domain-errors"
	platformsync "vcregistry/pkg/platform/sync"
)

const defaultTxTimeout = 5 * time.Second

// shardedTx serializes transactions per key with a sharded mutex. It gives
// per-key atomicity for stores living in this process.
type shardedTx struct {
	mu      *platformsync.ShardedMutex
	store   Store
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewShardedTx returns the in-process StoreTx. A zero timeout means 5s.
func NewShardedTx(st Store, timeout time.Duration, m *metrics.Metrics) StoreTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &shardedTx{
		mu:      platformsync.NewShardedMutex(),
		store:   st,
		timeout: timeout,
		metrics: m,
	}
}

func (t *shardedTx) RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// The tx budget applies even under a request deadline; an earlier
	// parent deadline still wins.
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	lockStart := time.Now()
	t.mu.Lock(key.String())
	t.metrics.ObserveLockWait(time.Since(lockStart).Seconds())
	defer t.mu.Unlock(key.String())

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx, t.store)
}
