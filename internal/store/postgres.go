package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/option-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// schema is applied by EnsureSchema. Seeds are full uint64 values and do
// not fit BIGINT, so they are kept as NUMERIC(20,0).
const schema = `
CREATE TABLE IF NOT EXISTS pricing_runs (
	id          TEXT PRIMARY KEY,
	key         TEXT NOT NULL,
	contract    TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL,
	spot        NUMERIC NOT NULL,
	strike      NUMERIC NOT NULL,
	maturity    DOUBLE PRECISION NOT NULL,
	rate        DOUBLE PRECISION NOT NULL,
	volatility  DOUBLE PRECISION NOT NULL,
	samples     INTEGER NOT NULL,
	shift       DOUBLE PRECISION NOT NULL,
	seed        NUMERIC(20,0) NOT NULL,
	price       NUMERIC NOT NULL,
	std_err     NUMERIC NOT NULL,
	ci_low      NUMERIC NOT NULL,
	ci_high     NUMERIC NOT NULL,
	elapsed_ms  BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pricing_runs_key_idx ON pricing_runs (key, created_at);
CREATE INDEX IF NOT EXISTS pricing_runs_created_idx ON pricing_runs (created_at DESC);
`

// EnsureSchema creates the runs table and its indexes when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const selectRun = `SELECT id, key, contract, mode,
        spot::TEXT, strike::TEXT,
        maturity, rate, volatility, samples, shift, seed::TEXT,
        price::TEXT, std_err::TEXT, ci_low::TEXT, ci_high::TEXT,
        elapsed_ms, created_at
 FROM pricing_runs`

func (s *PostgresStore) CreateRun(ctx context.Context, r *model.PricingRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pricing_runs (id, key, contract, mode, spot, strike,
		        maturity, rate, volatility, samples, shift, seed,
		        price, std_err, ci_low, ci_high, elapsed_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC,
		        $7, $8, $9, $10, $11, $12::NUMERIC,
		        $13::NUMERIC, $14::NUMERIC, $15::NUMERIC, $16::NUMERIC, $17, $18)`,
		r.ID, r.Key, r.Contract, r.Mode,
		r.Spot.String(), r.Strike.String(),
		r.Maturity, r.Rate, r.Volatility, r.Samples, r.Shift,
		strconv.FormatUint(r.Seed, 10),
		r.Price.String(), r.StdErr.String(), r.CILow.String(), r.CIHigh.String(),
		r.ElapsedMS, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.PricingRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, selectRun+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) GetRunByKey(ctx context.Context, key string) (*model.PricingRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx,
		selectRun+` WHERE key = $1 ORDER BY created_at LIMIT 1`, key))
	if err != nil {
		return nil, fmt.Errorf("get run by key %s: %w", key, err)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.PricingRun, error) {
	query := selectRun + ` ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.PricingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// scanRun reads one row of selectRun. pgx.Row and pgx.Rows both satisfy it.
func scanRun(row pgx.Row) (*model.PricingRun, error) {
	var r model.PricingRun
	var spot, strike, seed, price, stdErr, ciLow, ciHigh string

	err := row.Scan(&r.ID, &r.Key, &r.Contract, &r.Mode,
		&spot, &strike,
		&r.Maturity, &r.Rate, &r.Volatility, &r.Samples, &r.Shift, &seed,
		&price, &stdErr, &ciLow, &ciHigh,
		&r.ElapsedMS, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Spot, _ = decimal.NewFromString(spot)
	r.Strike, _ = decimal.NewFromString(strike)
	r.Price, _ = decimal.NewFromString(price)
	r.StdErr, _ = decimal.NewFromString(stdErr)
	r.CILow, _ = decimal.NewFromString(ciLow)
	r.CIHigh, _ = decimal.NewFromString(ciHigh)
	if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", seed, err)
	}
	return &r, nil
}
