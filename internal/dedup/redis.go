package dedup

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "chatpush:sent:"

// RedisGuard keeps sent keys in Redis with a TTL of one window.
// Redis failures are logged and treated as "not seen".
type RedisGuard struct {
	client *redis.Client
	window time.Duration
	logger zerolog.Logger
}

func NewRedisGuard(ctx context.Context, redisURL string, window time.Duration, logger zerolog.Logger) (*RedisGuard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisGuard{
		client: client,
		window: window,
		logger: logger.With().Str("component", "dedup_guard").Str("backend", "redis").Logger(),
	}, nil
}

func (g *RedisGuard) Seen(ctx context.Context, key Key) bool {
	n, err := g.client.Exists(ctx, redisKeyPrefix+key.String()).Result()
	if err != nil {
		g.logger.Warn().Err(err).Int64("message_id", key.MessageID).Msg("dedup lookup failed")
		return false
	}
	return n > 0
}

func (g *RedisGuard) MarkSent(ctx context.Context, key Key) {
	if err := g.client.Set(ctx, redisKeyPrefix+key.String(), 1, g.window).Err(); err != nil {
		g.logger.Warn().Err(err).Int64("message_id", key.MessageID).Msg("dedup record failed")
	}
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}
