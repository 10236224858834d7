//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"vcregistry/internal/credential/models"
	"vcregistry/internal/credential/store"
	"vcregistry/pkg/testutil"
	"vcregistry/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.Flush(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	c := testutil.NewCredentialBuilder().ExpiresAt(9_000).Build()
	s.Require().NoError(s.store.Insert(ctx, c))

	got, err := s.store.FindByKey(ctx, c.Key())
	s.Require().NoError(err)
	s.Equal(c, *got)

	raw, err := s.redis.Client.Get(ctx, store.RedisKey(c.Key())).Result()
	s.Require().NoError(err)
	s.Contains(raw, `"expires_at":9000`)
}

func (s *RedisStoreSuite) TestInsertDuplicate() {
	ctx := context.Background()
	c := testutil.NewCredentialBuilder().Build()
	s.Require().NoError(s.store.Insert(ctx, c))
	s.ErrorIs(s.store.Insert(ctx, c), store.ErrAlreadyExists)
}

func (s *RedisStoreSuite) TestUpdateMissing() {
	c := testutil.NewCredentialBuilder().Build()
	s.ErrorIs(s.store.Update(context.Background(), c), store.ErrNotFound)

	_, err := s.store.FindByKey(context.Background(), models.KeyFor(testutil.SubjectBob, testutil.CIDDegree))
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *RedisStoreSuite) TestWatchedUpdate() {
	ctx := context.Background()
	c := testutil.NewCredentialBuilder().Build()
	s.Require().NoError(s.store.Insert(ctx, c))

	err := s.redis.Client.Watch(ctx, func(tx *redis.Tx) error {
		txStore := store.NewRedisTx(tx)
		existing, err := txStore.FindByKey(ctx, c.Key())
		if err != nil {
			return err
		}
		existing.Revoke()
		return txStore.Update(ctx, *existing)
	}, store.RedisKey(c.Key()))
	s.Require().NoError(err)

	got, err := s.store.FindByKey(ctx, c.Key())
	s.Require().NoError(err)
	s.True(got.Revoked)
}

func (s *RedisStoreSuite) TestWatchAbortsOnConcurrentWrite() {
	ctx := context.Background()
	c := testutil.NewCredentialBuilder().Build()
	s.Require().NoError(s.store.Insert(ctx, c))

	err := s.redis.Client.Watch(ctx, func(tx *redis.Tx) error {
		txStore := store.NewRedisTx(tx)
		existing, err := txStore.FindByKey(ctx, c.Key())
		if err != nil {
			return err
		}
		// A write from another connection between WATCH and EXEC.
		other := *existing
		other.Revoke()
		if err := s.store.Update(ctx, other); err != nil {
			return err
		}
		return txStore.Update(ctx, *existing)
	}, store.RedisKey(c.Key()))

	s.True(errors.Is(err, redis.TxFailedErr), "got %v", err)
}
