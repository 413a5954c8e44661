package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                VARCHAR(64) PRIMARY KEY,
		customer_id       VARCHAR(64) NOT NULL,
		merchant_id       VARCHAR(64) NOT NULL,
		product_id        VARCHAR(64) NOT NULL,
		product_name      TEXT NOT NULL,
		unit_price        NUMERIC(12,2) NOT NULL DEFAULT 0,
		currency          VARCHAR(8) NOT NULL DEFAULT '',
		status            VARCHAR(16) NOT NULL,
		estimated_minutes INTEGER NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		order_type        VARCHAR(16) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_merchant_id ON orders(merchant_id, created_at DESC)`,
}

// EnsureSchema creates the orders table and its indexes when missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, q := range schema {
		if _, err := db.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
