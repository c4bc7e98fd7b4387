package postgres

import (
	"context"

	"cryptosim/internal/core/ports"
)

// HealthCheck probes the ledger database.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping runs a trivial query under ports.HealthProbeTimeout.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ports.HealthProbeTimeout)
	defer cancel()
	_, err := h.pool.Exec(ctx, "SELECT 1")
	return err
}

func (h *HealthCheck) Name() string { return "postgres" }
