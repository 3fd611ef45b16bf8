package heartbeat

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	TLSEnabled bool
}

// NewRedisClient creates a client and pings it to verify connectivity.
func NewRedisClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisTracker keeps one sorted set per session, scored by last-seen unix
// milliseconds. Keys expire after ttl of silence so abandoned sessions clean
// themselves up, and liveness survives process restarts.
type RedisTracker struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

var _ Tracker = (*RedisTracker)(nil)

func NewRedisTracker(rdb redis.Cmdable, ttl time.Duration, now func() time.Time) *RedisTracker {
	if now == nil {
		now = time.Now
	}
	return &RedisTracker{rdb: rdb, ttl: ttl, now: now}
}

func key(sessionID uuid.UUID) string {
	return "heartbeat:" + sessionID.String()
}

func (t *RedisTracker) Beat(ctx context.Context, sessionID, memberID uuid.UUID) error {
	k := key(sessionID)
	pipe := t.rdb.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(t.now().UnixMilli()), Member: memberID.String()})
	pipe.Expire(ctx, k, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

func (t *RedisTracker) LastSeen(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	entries, err := t.rdb.ZRangeWithScores(ctx, key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read heartbeats: %w", err)
	}
	out := make(map[uuid.UUID]time.Time, len(entries))
	for _, z := range entries {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		out[id] = time.UnixMilli(int64(z.Score)).UTC()
	}
	return out, nil
}

func (t *RedisTracker) Forget(ctx context.Context, sessionID uuid.UUID) error {
	if err := t.rdb.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to forget heartbeats: %w", err)
	}
	return nil
}
