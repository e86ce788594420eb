package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect builds the single process-wide pool. It is constructed once in
// main and passed by reference to every component that touches storage;
// nothing initializes a connection lazily.
func Connect(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return p, nil
}

// Migrate creates the price table and its indexes. The unique constraint
// on (timestamp, coin_id, source) is the dedup invariant; everything else
// in the repository depends on it being present.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bitcoin_prices (
			id BIGSERIAL PRIMARY KEY,
			timestamp BIGINT NOT NULL,
			price NUMERIC(18, 8) NOT NULL,
			currency VARCHAR(10) NOT NULL,
			coin_id VARCHAR(50) NOT NULL,
			source VARCHAR(32) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT bitcoin_prices_ts_coin_source_key UNIQUE (timestamp, coin_id, source)
		);
		CREATE INDEX IF NOT EXISTS idx_bitcoin_prices_timestamp ON bitcoin_prices (timestamp);
		CREATE INDEX IF NOT EXISTS idx_bitcoin_prices_coin_id ON bitcoin_prices (coin_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
