package proxypool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheKey is the Redis hash holding the shared pool.
const DefaultCacheKey = "guba:proxies:valid"

// RedisStore persists the pool in a Redis hash (endpoint → score) so
// it survives restarts and can be shared across harvester processes.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client. An empty key falls back to
// DefaultCacheKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultCacheKey
	}
	return &RedisStore{client: client, key: key}
}

// Count implements Store via HLEN.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return int(n), nil
}

// GetAll implements Store via HGETALL.
func (s *RedisStore) GetAll(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make(map[string]int, len(raw))
	for endpoint, val := range raw {
		score, err := strconv.Atoi(val)
		if err != nil {
			// A corrupted field is dropped rather than poisoning the pool.
			continue
		}
		out[endpoint] = score
	}
	return out, nil
}

// Set implements Store via HSET.
func (s *RedisStore) Set(ctx context.Context, endpoint string, score int) error {
	if err := s.client.HSet(ctx, s.key, endpoint, clampScore(score)).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Adjust implements Store. The clamp cannot be expressed with a plain
// HINCRBY, so the read-modify-write runs inside a WATCH transaction to
// stay atomic against concurrent updaters.
func (s *RedisStore) Adjust(ctx context.Context, endpoint string, delta int) (int, bool, error) {
	var (
		next  int
		found bool
	)
	txn := func(tx *redis.Tx) error {
		val, err := tx.HGet(ctx, s.key, endpoint).Result()
		if err == redis.Nil {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		current, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		found = true
		next = clampScore(current + delta)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, endpoint, next)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := s.client.Watch(ctx, txn, s.key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return 0, false, fmt.Errorf("redis adjust: %w", err)
		}
		return next, found, nil
	}
	return 0, false, fmt.Errorf("redis adjust: %w", redis.TxFailedErr)
}

// Delete implements Store via HDEL.
func (s *RedisStore) Delete(ctx context.Context, endpoint string) error {
	if err := s.client.HDel(ctx, s.key, endpoint).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}
