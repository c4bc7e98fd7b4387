package redis

import (
	"context"

	"cryptosim/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck probes the Redis server backing rate limits and caches.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping issues PING under ports.HealthProbeTimeout.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ports.HealthProbeTimeout)
	defer cancel()
	return h.client.Ping(ctx).Err()
}

func (h *HealthCheck) Name() string { return "redis" }
