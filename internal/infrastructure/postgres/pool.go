// Package postgres opens the pgx connection pool used by the Postgres
// credential store. Schema setup lives with the store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nerrad567/gatekeeper/internal/infrastructure/config"
)

const pingTimeout = 3 * time.Second

// ErrNoURL is returned when the configuration carries no connection URL.
var ErrNoURL = errors.New("postgres: url is required")

// ParseConfig turns cfg into a pgxpool configuration. Non-positive
// MaxConns and negative MinConns keep the pgx defaults.
func ParseConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}

	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}

	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if pcfg.MinConns > pcfg.MaxConns {
		pcfg.MinConns = pcfg.MaxConns
	}

	return pcfg, nil
}

// NewPool builds a pool from cfg and verifies a connection can be acquired.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pcfg, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := Ping(ctx, pool, pingTimeout); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Ping checks that a connection can be acquired within timeout.
func Ping(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring postgres connection: %w", err)
	}
	conn.Release()
	return nil
}

// Health adapts a pool to the HealthCheck shape used by the API.
type Health struct {
	Pool *pgxpool.Pool
}

// HealthCheck acquires and releases one connection.
func (h Health) HealthCheck(ctx context.Context) error {
	return Ping(ctx, h.Pool, pingTimeout)
}
