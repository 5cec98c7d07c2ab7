package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// BarCacheConfig configures the Redis bar cache.
type BarCacheConfig struct {
	Addr     string
	Password string
	DB       int
	Symbol   string
	Limit    int // rolling window length, bars beyond it are trimmed
}

// BarCache is a rolling window of recent bars in a Redis list, one
// JSON-encoded bar per element, oldest first. An ingest process pushes
// bars; the trading cycle pulls the whole window each tick.
type BarCache struct {
	client *goredis.Client
	key    string
	limit  int
}

// NewBarCache connects to Redis and pings the server.
func NewBarCache(cfg BarCacheConfig) (*BarCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = 500
	}

	slog.Info("bar cache connected", "addr", cfg.Addr, "symbol", cfg.Symbol, "limit", limit)
	return &BarCache{
		client: client,
		key:    "bars:" + cfg.Symbol,
		limit:  limit,
	}, nil
}

// PushBar appends a bar and trims the window in one pipeline round trip.
func (c *BarCache) PushBar(ctx context.Context, bar model.PriceBar) error {
	pipe := c.client.Pipeline()
	pipe.RPush(ctx, c.key, bar.JSON())
	pipe.LTrim(ctx, c.key, int64(-c.limit), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push bar: %w", err)
	}
	return nil
}

// GetPriceHistory returns the cached window, oldest first. Elements that
// fail to decode are skipped rather than poisoning the cycle.
func (c *BarCache) GetPriceHistory(ctx context.Context) ([]model.PriceBar, error) {
	raw, err := c.client.LRange(ctx, c.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", c.key, err)
	}

	bars := make([]model.PriceBar, 0, len(raw))
	for _, item := range raw {
		var bar model.PriceBar
		if err := json.Unmarshal([]byte(item), &bar); err != nil {
			slog.Warn("skipping undecodable bar", "key", c.key, "err", err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// GetCurrentPrice returns the close of the newest cached bar.
func (c *BarCache) GetCurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	raw, err := c.client.LIndex(ctx, c.key, -1).Result()
	if err == goredis.Nil {
		return decimal.Zero, ErrNoBars
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lindex %s: %w", c.key, err)
	}

	var bar model.PriceBar
	if err := json.Unmarshal([]byte(raw), &bar); err != nil {
		return decimal.Zero, fmt.Errorf("decode bar: %w", err)
	}
	return bar.Close, nil
}

// Close releases the Redis connection.
func (c *BarCache) Close() error {
	return c.client.Close()
}

var _ model.PriceProvider = (*BarCache)(nil)
