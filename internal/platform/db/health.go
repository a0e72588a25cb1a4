package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthReport is the body of GET /health/db.
type HealthReport struct {
	Status  string     `json:"status"`
	Breaker string     `json:"breaker,omitempty"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

// Healthy reports whether the store can take traffic: the ping succeeded and
// the breaker is not open.
func (r HealthReport) Healthy() bool {
	return r.Status == "healthy" && r.Breaker != "open"
}

// HealthHandler pings the pool and reports its statistics together with the
// store breaker state. The ping error itself is not exposed.
func HealthHandler(pool *pgxpool.Pool, breaker *BreakerTransactor) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := HealthReport{Status: "healthy", Pool: GetPoolStats(pool)}
		if breaker != nil {
			report.Breaker = breaker.State()
		}
		if err := pool.Ping(ctx); err != nil {
			report.Status = "unhealthy"
		}

		if !report.Healthy() {
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
