package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Talex210/chart-prices-bitcoin/internal/models"
)

// StorageError wraps a database failure with the repository operation that
// produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type PriceRepo struct {
	pool *pgxpool.Pool
}

func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

// UpsertOne inserts the record or, when (timestamp, coin_id, source)
// already exists, overwrites price in place. The unique constraint is what
// makes concurrent writers on the same key converge to a single row.
// Returns whether a row was affected.
func (r *PriceRepo) UpsertOne(ctx context.Context, p models.PricePoint) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO bitcoin_prices (timestamp, price, currency, coin_id, source)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (timestamp, coin_id, source) DO UPDATE
		 SET price = EXCLUDED.price`,
		p.Timestamp, p.Price, p.Currency, p.CoinID, p.Source,
	)
	if err != nil {
		return false, &StorageError{Op: "upsert price", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertBulk applies the UpsertOne contract to a batch in one set-oriented
// statement. An empty batch is a no-op, not an error.
func (r *PriceRepo) UpsertBulk(ctx context.Context, ps []models.PricePoint) (int64, error) {
	if len(ps) == 0 {
		return 0, nil
	}

	timestamps := make([]int64, len(ps))
	prices := make([]float64, len(ps))
	currencies := make([]string, len(ps))
	coinIDs := make([]string, len(ps))
	srcs := make([]string, len(ps))
	for i, p := range ps {
		timestamps[i] = p.Timestamp
		prices[i] = p.Price
		currencies[i] = p.Currency
		coinIDs[i] = p.CoinID
		srcs[i] = p.Source
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO bitcoin_prices (timestamp, price, currency, coin_id, source)
		 SELECT * FROM unnest($1::bigint[], $2::float8[], $3::text[], $4::text[], $5::text[])
		 ON CONFLICT (timestamp, coin_id, source) DO UPDATE
		 SET price = EXCLUDED.price`,
		timestamps, prices, currencies, coinIDs, srcs,
	)
	if err != nil {
		return 0, &StorageError{Op: "bulk upsert prices", Err: err}
	}
	return tag.RowsAffected(), nil
}

// QueryRange returns records within [startMs, endMs] ascending by
// timestamp, downsampled to at most one record per period bucket. The
// winner within a bucket is the earliest record, an explicit rule rather
// than whatever row order the engine picks. An empty source matches all
// sources.
func (r *PriceRepo) QueryRange(ctx context.Context, startMs, endMs int64, period, source string) ([]models.PricePoint, error) {
	width := BucketWidthMillis(period)

	query := `SELECT DISTINCT ON (timestamp / $3)
	            id, timestamp, price, currency, coin_id, source, created_at
	          FROM bitcoin_prices
	          WHERE timestamp BETWEEN $1 AND $2`
	args := []any{startMs, endMs, width}
	if source != "" {
		query += ` AND source = $4`
		args = append(args, source)
	}
	query += ` ORDER BY timestamp / $3, timestamp ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query price range", Err: err}
	}
	defer rows.Close()

	out, err := collectPrices(rows)
	if err != nil {
		return nil, &StorageError{Op: "query price range", Err: err}
	}
	return out, nil
}

// CountRange reports how many raw (non-downsampled) records exist for a
// source within [startMs, endMs].
func (r *PriceRepo) CountRange(ctx context.Context, startMs, endMs int64, source string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bitcoin_prices
		 WHERE timestamp BETWEEN $1 AND $2 AND source = $3`,
		startMs, endMs, source,
	).Scan(&n)
	if err != nil {
		return 0, &StorageError{Op: "count price range", Err: err}
	}
	return n, nil
}

// --- scan helpers ---

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectPrices(rows rowsIter) ([]models.PricePoint, error) {
	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.Price, &p.Currency, &p.CoinID, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
