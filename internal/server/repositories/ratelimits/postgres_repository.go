package ratelimits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) PurgeStale(ctx context.Context, endpoint string, cutoff time.Time) (int64, error) {

	query :=
		`DELETE FROM rate_limits
		 WHERE endpoint = $1 AND window_start < $2
		 `

	return r.exec(ctx, query, endpoint, cutoff)
}

func (r *PostgresRepository) Hit(ctx context.Context, identifier, endpoint string, maxHits int, now, cutoff time.Time) (int, bool, error) {
	if maxHits <= 0 {
		return 0, false, nil
	}

	// The conflict branch is skipped by its WHERE once the live window is
	// full, so RETURNING yields no row and the request is denied.
	query :=
		`INSERT INTO rate_limits AS rl (identifier, endpoint, hits, window_start)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (identifier, endpoint) DO UPDATE
		 SET hits = CASE WHEN rl.window_start < $4 THEN 1 ELSE rl.hits + 1 END,
		     window_start = CASE WHEN rl.window_start < $4 THEN EXCLUDED.window_start ELSE rl.window_start END
		 WHERE rl.window_start < $4 OR rl.hits < $5
		 RETURNING hits
		 `

	var hits int
	err := r.db.QueryRowContext(ctx, query, identifier, endpoint, now, cutoff, maxHits).Scan(&hits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}

	return hits, true, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {

	query :=
		`DELETE FROM rate_limits
		 WHERE window_start < $1
		 `

	return r.exec(ctx, query, cutoff)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
