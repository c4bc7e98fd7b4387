package ports

import (
	"context"
	"time"
)

// HealthProbeTimeout bounds a single dependency probe so /health answers
// even when a backend hangs.
const HealthProbeTimeout = 2 * time.Second

// HealthChecker probes one backing service for /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string // "postgres", "redis"
}
