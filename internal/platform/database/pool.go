package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vcregistry/internal/platform/config"
)

var (
	dbOpenConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vcreg_db_pool_open_conns",
		Help: "Established connections, in use and idle",
	})
	dbInUseConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vcreg_db_pool_in_use_conns",
		Help: "Connections currently in use",
	})
	dbWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcreg_db_pool_waits_total",
		Help: "Times a caller waited for a free connection",
	})
	dbWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcreg_db_pool_wait_seconds_total",
		Help: "Total time spent waiting for a free connection",
	})
)

// Pool wraps a *sql.DB opened through the pgx stdlib driver.
type Pool struct {
	db        *sql.DB
	cfg       config.DatabaseConfig
	lastStats sql.DBStats
}

// New opens and pings a connection pool sized from cfg. Returns nil, nil if
// the URL is empty.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{db: db, cfg: cfg}, nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health checks if the database is reachable.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// RecordPoolStats publishes pool statistics. Counters advance by the delta
// since the previous call; call it from a single ticker goroutine.
func (p *Pool) RecordPoolStats() {
	stats := p.Stats()

	dbOpenConns.Set(float64(stats.OpenConnections))
	dbInUseConns.Set(float64(stats.InUse))
	if d := stats.WaitCount - p.lastStats.WaitCount; d > 0 {
		dbWaits.Add(float64(d))
	}
	if d := stats.WaitDuration - p.lastStats.WaitDuration; d > 0 {
		dbWaitSeconds.Add(d.Seconds())
	}
	p.lastStats = stats
}
