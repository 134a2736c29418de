package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id          TEXT PRIMARY KEY,
	symbol      TEXT        NOT NULL,
	strategy    TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	payload     JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS backtest_runs_symbol_idx ON backtest_runs (symbol, created_at DESC);
CREATE INDEX IF NOT EXISTS backtest_runs_created_idx ON backtest_runs (created_at DESC);
`

// PostgresStore keeps run history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, core.Errorf(core.ErrStorageFailed, "connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.Errorf(core.ErrStorageFailed, "ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the runs table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return core.Errorf(core.ErrStorageFailed, "create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Save upserts a run.
func (s *PostgresStore) Save(ctx context.Context, rec report.Response) error {
	if rec.ID == "" {
		return core.Errorf(core.ErrInvalidParameter, "run id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return core.Errorf(core.ErrStorageFailed, "encode run: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (id, symbol, strategy, created_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET symbol = EXCLUDED.symbol, strategy = EXCLUDED.strategy,
		    created_at = EXCLUDED.created_at, payload = EXCLUDED.payload
	`, rec.ID, rec.Config.Symbol, rec.Config.Strategy, rec.CreatedAt, payload)
	if err != nil {
		return core.Errorf(core.ErrStorageFailed, "insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*report.Response, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM backtest_runs WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Errorf(core.ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, core.Errorf(core.ErrStorageFailed, "query run: %w", err)
	}

	var rec report.Response
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, core.Errorf(core.ErrStorageFailed, "decode run %s: %w", id, err)
	}
	return &rec, nil
}

// List returns runs matching the filter, newest first.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]report.Response, error) {
	where, args := whereClause(filter)
	query := `SELECT payload FROM backtest_runs` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, core.Errorf(core.ErrStorageFailed, "query runs: %w", err)
	}
	defer rows.Close()

	result := []report.Response{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, core.Errorf(core.ErrStorageFailed, "scan run: %w", err)
		}
		var rec report.Response
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, core.Errorf(core.ErrStorageFailed, "decode run: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Errorf(core.ErrStorageFailed, "iterate runs: %w", err)
	}
	return result, nil
}

// Count returns the number of runs matching the filter.
func (s *PostgresStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM backtest_runs`+where, args...).Scan(&n); err != nil {
		return 0, core.Errorf(core.ErrStorageFailed, "count runs: %w", err)
	}
	return n, nil
}

func whereClause(filter ListFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		conds = append(conds, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if filter.Strategy != "" {
		args = append(args, filter.Strategy)
		conds = append(conds, fmt.Sprintf("strategy = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}
