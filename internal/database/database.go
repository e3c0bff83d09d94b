// Package database opens the console's PostgreSQL connection pool.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/config"
)

// ApplicationName identifies console sessions in pg_stat_activity.
const ApplicationName = "mpesa-console"

// DB wraps the connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDatabase opens the pool described by cfg and pings it. Sessions use the
// console time zone, so timestamps rendered as text by the server read the
// same as the calendar days the views are computed in.
func NewDatabase(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"min_conns": poolCfg.MinConns,
		"max_conns": poolCfg.MaxConns,
		"timezone":  poolCfg.ConnConfig.RuntimeParams["timezone"],
	}).Info("Database connection pool established")

	return &DB{Pool: pool}, nil
}

// PoolConfig builds the pgx pool settings from cfg.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	if cfg.DBMinConns > 0 {
		poolCfg.MinConns = int32(cfg.DBMinConns)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	params := poolCfg.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = ApplicationName
	}
	// "Local" has no server-side equivalent; the server default applies
	if tz := sessionTimezone(cfg); tz != "" {
		params["timezone"] = tz
	}

	return poolCfg, nil
}

func sessionTimezone(cfg *config.Config) string {
	if cfg.Location != nil && cfg.Location != time.Local && cfg.Location.String() != "Local" {
		return cfg.Location.String()
	}
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		return cfg.Timezone
	}
	return ""
}

// Close releases every pooled connection.
func (db *DB) Close() {
	if db.Pool != nil {
		logrus.Info("Closing database connection pool...")
		db.Pool.Close()
	}
}

// Health pings the database with a short deadline.
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Pool.Ping(ctx)
}
