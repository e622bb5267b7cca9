// Package publish forwards arbitrage reports to external consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fxarb/internal/arbitrage"
	"fxarb/internal/config"
	"fxarb/internal/infra/log"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RedisPublisher sends each report as JSON on a Redis pub/sub channel.
// Bursts of reports beyond the configured rate are skipped, not queued: a
// newer report supersedes an unsent one.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	limiter *rate.Limiter
	logger  log.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg config.Config, logger log.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Redis.Addr, err)
	}
	return newRedisPublisher(rdb, cfg.Redis.Channel, cfg.Redis.MaxPublishPerSecond, logger), nil
}

func newRedisPublisher(rdb *redis.Client, channel string, perSecond float64, logger log.Logger) *RedisPublisher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.Component(logger, "redis"),
	}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, r arbitrage.Report) error {
	if !p.limiter.Allow() {
		p.logger.Debug().Str("id", r.ID).Msg("throttled arbitrage report")
		return nil
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis: encode report: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }
