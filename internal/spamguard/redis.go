package spamguard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a window record.
const (
	fieldCount       = "count"
	fieldWindowStart = "window_start"
)

// RedisStore keeps windows as hashes and bans as plain keys, both with a TTL
// so abandoned records clean themselves up. The gate never relies on the
// TTL for correctness: a record outliving its logical expiry is handled by
// the gate's own time checks.
type RedisStore struct {
	rdb       *redis.Client
	windowTTL time.Duration
	banTTL    time.Duration
}

// NewRedisStore creates a store whose TTLs are derived from policy.
func NewRedisStore(rdb *redis.Client, policy Policy) *RedisStore {
	return &RedisStore{
		rdb:       rdb,
		windowTTL: 2 * policy.Window,
		banTTL:    policy.BanDuration + policy.Window,
	}
}

func windowKey(clientID string) string { return WindowCollection + ":" + clientID }
func banKey(clientID string) string    { return BanCollection + ":" + clientID }

// GetWindow implements Store. A hash missing its start field (possible when
// an increment lands on an expired key) is reported as absent.
func (s *RedisStore) GetWindow(ctx context.Context, clientID string) (*RateWindow, error) {
	vals, err := s.rdb.HGetAll(ctx, windowKey(clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading window from Redis: %w", err)
	}
	startRaw, ok := vals[fieldWindowStart]
	if !ok {
		return nil, nil
	}

	startMs, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing window start %q: %w", startRaw, err)
	}
	count, err := strconv.Atoi(vals[fieldCount])
	if err != nil {
		return nil, fmt.Errorf("parsing window count %q: %w", vals[fieldCount], err)
	}

	return &RateWindow{Count: count, WindowStart: time.UnixMilli(startMs)}, nil
}

// PutWindow implements Store. The old hash is replaced, not merged.
func (s *RedisStore) PutWindow(ctx context.Context, clientID string, w RateWindow) error {
	key := windowKey(clientID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldCount, w.Count,
			fieldWindowStart, w.WindowStart.UnixMilli(),
		)
		pipe.Expire(ctx, key, s.windowTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing window to Redis: %w", err)
	}
	return nil
}

// IncrementWindow implements Store with HINCRBY, which is atomic on the
// server.
func (s *RedisStore) IncrementWindow(ctx context.Context, clientID string) error {
	if err := s.rdb.HIncrBy(ctx, windowKey(clientID), fieldCount, 1).Err(); err != nil {
		return fmt.Errorf("incrementing window in Redis: %w", err)
	}
	return nil
}

// GetBan implements Store.
func (s *RedisStore) GetBan(ctx context.Context, clientID string) (*Ban, error) {
	raw, err := s.rdb.Get(ctx, banKey(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ban from Redis: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing ban expiry %q: %w", raw, err)
	}
	return &Ban{ExpiresAt: time.UnixMilli(ms)}, nil
}

// PutBan implements Store.
func (s *RedisStore) PutBan(ctx context.Context, clientID string, b Ban) error {
	if err := s.rdb.Set(ctx, banKey(clientID), b.ExpiresAt.UnixMilli(), s.banTTL).Err(); err != nil {
		return fmt.Errorf("writing ban to Redis: %w", err)
	}
	return nil
}

// DeleteBan implements Store.
func (s *RedisStore) DeleteBan(ctx context.Context, clientID string) error {
	if err := s.rdb.Del(ctx, banKey(clientID)).Err(); err != nil {
		return fmt.Errorf("deleting ban from Redis: %w", err)
	}
	return nil
}
