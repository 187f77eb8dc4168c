package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mailcove/gatekeeper/pkg/config"
)

// RedisStore implements Store against a shared Redis server.
//
// IncrementWithExpiry issues INCR and EXPIRE NX inside a MULTI/EXEC
// transaction so the increment and the conditional expiry commit as one
// atomic unit, regardless of concurrent writers on the same key.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a RedisStore from the Redis configuration.
// The connection is established lazily; call Ping to verify it.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}
}

// Increment implements Store.Increment.
func (s *RedisStore) Increment(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Incr(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return 0, wrapRedisErr("incr", err)
	}
	return value, nil
}

// IncrementWithExpiry implements Store.IncrementWithExpiry.
func (s *RedisStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.keyPrefix+key)
	// EXPIRE NX only sets the TTL when the key has none, which is
	// exactly the just-created case for counters managed here.
	pipe.ExpireNX(ctx, s.keyPrefix+key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, wrapRedisErr("incr+expire", err)
	}
	return incr.Val(), nil
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	value, err := s.client.Get(ctx, s.keyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapRedisErr("get", err)
	}
	return value, true, nil
}

// TTL implements Store.TTL.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.client.TTL(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return 0, false, wrapRedisErr("ttl", err)
	}
	// Redis reports -2 for a missing key and -1 for a key without expiry.
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

// Ping implements Store.Ping.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapRedisErr("ping", err)
	}
	return nil
}

// Close implements Store.Close.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// wrapRedisErr classifies a redis failure as ErrUnavailable while
// preserving the original error chain.
func wrapRedisErr(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", ErrUnavailable, op, err)
}
