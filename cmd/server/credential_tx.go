package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"vcregistry/internal/credential/models"
	credentialservice "vcregistry/internal/credential/service"
	credentialstore "vcregistry/internal/credential/store"
	dErrors "vcregistry/pkg/domain-errors"
)

const (
	defaultCredentialTxTimeout = 5 * time.Second
	redisTxMaxAttempts         = 10
	redisTxInitialBackoff      = 2 * time.Millisecond
	redisTxMaxBackoff          = 50 * time.Millisecond
)

// credentialPostgresTx runs each registry mutation in a database/sql
// transaction. Row locks taken by the store serialize writers on one key.
type credentialPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newCredentialPostgresTx(db *sql.DB, timeout time.Duration) *credentialPostgresTx {
	return &credentialPostgresTx{db: db, timeout: timeout}
}

func (t *credentialPostgresTx) RunInTx(ctx context.Context, _ models.Key, fn func(ctx context.Context, store credentialservice.Store) error) error {
	ctx, cancel, err := txContext(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if err := fn(ctx, credentialstore.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// credentialRedisTx runs each mutation under WATCH on the credential's key.
// A concurrent write aborts EXEC; the whole callback is then re-run against
// the new state.
type credentialRedisTx struct {
	client  *redis.Client
	timeout time.Duration
}

func newCredentialRedisTx(client *redis.Client, timeout time.Duration) *credentialRedisTx {
	return &credentialRedisTx{client: client, timeout: timeout}
}

func (t *credentialRedisTx) RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context, store credentialservice.Store) error) error {
	ctx, cancel, err := txContext(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	redisKey := credentialstore.RedisKey(key)
	policy := backoff.WithContext(backoff.WithMaxRetries(newRedisTxBackoff(), redisTxMaxAttempts-1), ctx)
	err = backoff.Retry(func() error {
		err := t.client.Watch(ctx, func(tx *redis.Tx) error {
			return fn(ctx, credentialstore.NewRedisTx(tx))
		}, redisKey)
		if err == nil || errors.Is(err, redis.TxFailedErr) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if errors.Is(err, redis.TxFailedErr) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "credential is under concurrent modification")
	}
	return err
}

// newRedisTxBackoff spreads WATCH retries of competing writers with jitter.
func newRedisTxBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = redisTxInitialBackoff
	b.MaxInterval = redisTxMaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// txContext bounds a transaction by timeout, or by the parent's deadline if
// that comes first.
func txContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout <= 0 {
		timeout = defaultCredentialTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
