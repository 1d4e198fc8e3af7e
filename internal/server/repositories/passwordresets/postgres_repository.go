package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error) {

	query :=
		`INSERT INTO password_resets (user_id, token_hash, expires_at)
         VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	pr := &models.PasswordReset{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	if err := r.db.QueryRowContext(ctx, query, userID, tokenHash, expiresAt).Scan(&pr.ID, &pr.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pr, nil
}

// InvalidateForUser marks every outstanding reset of the user as used.
func (r *PostgresRepository) InvalidateForUser(ctx context.Context, userID int64) (int64, error) {

	query :=
		`UPDATE password_resets SET used = TRUE
		 WHERE user_id = $1 AND used = FALSE
		 `

	return r.exec(ctx, query, userID)
}

func (r *PostgresRepository) FindValidByHash(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {

	query :=
		`SELECT id, user_id, token_hash, expires_at, used, created_at
		 FROM password_resets
		 WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
		 ORDER BY id DESC
		 LIMIT 1
		 `

	pr := &models.PasswordReset{}
	err := r.db.QueryRowContext(ctx, query, tokenHash, now).Scan(
		&pr.ID, &pr.UserID, &pr.TokenHash, &pr.ExpiresAt, &pr.Used, &pr.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pr, nil
}

// MarkUsed reports false when another redemption got there first.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id int64) (bool, error) {

	query :=
		`UPDATE password_resets SET used = TRUE
		 WHERE id = $1 AND used = FALSE
		 `

	n, err := r.exec(ctx, query, id)
	return n == 1, err
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {

	query :=
		`DELETE FROM password_resets
		 WHERE expires_at < $1 OR used = TRUE
		 `

	return r.exec(ctx, query, now)
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
