package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vcregistry/internal/credential/models"
)

const redisCredentialKeyPrefix = "credential:"

// RedisStore persists credentials as JSON values under credential:<key>.
// Records never expire; expiry is evaluated on read.
type RedisStore struct {
	client redis.Cmdable
	tx     *redis.Tx
}

func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisTx binds the store to a WATCHed transaction. Writes are queued in
// MULTI/EXEC and fail with redis.TxFailedErr if the watched key changed.
func NewRedisTx(tx *redis.Tx) *RedisStore {
	return &RedisStore{client: tx, tx: tx}
}

// RedisKey is the Redis key a credential key is stored under.
func RedisKey(key models.Key) string {
	return redisCredentialKeyPrefix + key.String()
}

func (s *RedisStore) Insert(ctx context.Context, credential models.Credential) error {
	payload, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	key := RedisKey(credential.Key())

	ok, err := s.write(ctx, func(c redis.Cmdable) *redis.BoolCmd {
		return c.SetNX(ctx, key, payload, 0)
	})
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) FindByKey(ctx context.Context, key models.Key) (*models.Credential, error) {
	data, err := s.client.Get(ctx, RedisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find credential by key: %w", err)
	}

	var credential models.Credential
	if err := json.Unmarshal(data, &credential); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &credential, nil
}

func (s *RedisStore) Update(ctx context.Context, credential models.Credential) error {
	payload, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	key := RedisKey(credential.Key())

	ok, err := s.write(ctx, func(c redis.Cmdable) *redis.BoolCmd {
		return c.SetXX(ctx, key, payload, 0)
	})
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// write runs a conditional SET directly, or inside MULTI/EXEC when bound to a
// transaction. A nil reply means the condition did not hold.
func (s *RedisStore) write(ctx context.Context, cmd func(redis.Cmdable) *redis.BoolCmd) (bool, error) {
	if s.tx == nil {
		ok, err := cmd(s.client).Result()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return ok, err
	}

	var res *redis.BoolCmd
	_, err := s.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		res = cmd(pipe)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return res.Val(), nil
}
