package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 3 * time.Second

// PoolStats is the subset of pgxpool statistics exposed on /health/db.
type PoolStats struct {
	TotalConns    int32 `json:"totalConns"`
	IdleConns     int32 `json:"idleConns"`
	AcquiredConns int32 `json:"acquiredConns"`
	MaxConns      int32 `json:"maxConns"`
	// EmptyAcquires counts acquires that had to wait for a free connection.
	EmptyAcquires int64 `json:"emptyAcquires"`
}

// Saturated reports whether every connection is checked out. Billing holds a
// connection for the whole transaction, so this is the first sign of
// contention.
func (s PoolStats) Saturated() bool {
	return s.MaxConns > 0 && s.AcquiredConns >= s.MaxConns
}

func statsOf(pool *pgxpool.Pool) PoolStats {
	st := pool.Stat()
	return PoolStats{
		TotalConns:    st.TotalConns(),
		IdleConns:     st.IdleConns(),
		AcquiredConns: st.AcquiredConns(),
		MaxConns:      st.MaxConns(),
		EmptyAcquires: st.EmptyAcquireCount(),
	}
}

// HealthReport is the /health/db body.
type HealthReport struct {
	Status    string    `json:"status"`
	LatencyMS int64     `json:"latencyMs"`
	Error     string    `json:"error,omitempty"`
	Pool      PoolStats `json:"pool"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers 200 "up", 200 "degraded" when the pool is saturated,
// or 503 "down" when the ping fails.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pool, func() PoolStats { return statsOf(pool) })
}

func healthHandler(p pinger, stats func() PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		report := HealthReport{
			Status:    "up",
			LatencyMS: time.Since(start).Milliseconds(),
			Pool:      stats(),
		}

		switch {
		case err != nil:
			report.Status = "down"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		case report.Pool.Saturated():
			report.Status = "degraded"
		}
		return c.JSON(http.StatusOK, report)
	}
}
