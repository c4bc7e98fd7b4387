package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptosim/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const latestPriceKey = "csim:price:latest"

// PriceCache implements ports.PriceCache. The latest tick is stored as JSON
// under a single key.
type PriceCache struct {
	client *goredis.Client
}

// NewPriceCache creates a Redis-backed latest-price cache.
func NewPriceCache(client *goredis.Client) *PriceCache {
	return &PriceCache{client: client}
}

// GetLatest returns the cached tick, or nil on a miss.
func (c *PriceCache) GetLatest(ctx context.Context) (*domain.PriceTick, error) {
	raw, err := c.client.Get(ctx, latestPriceKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis price get: %w", err)
	}

	var tick domain.PriceTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return nil, fmt.Errorf("decode cached price: %w", err)
	}
	return &tick, nil
}

func (c *PriceCache) SetLatest(ctx context.Context, tick *domain.PriceTick, ttl time.Duration) error {
	raw, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}
	if err := c.client.Set(ctx, latestPriceKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis price set: %w", err)
	}
	return nil
}

func (c *PriceCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, latestPriceKey).Err(); err != nil {
		return fmt.Errorf("redis price del: %w", err)
	}
	return nil
}
