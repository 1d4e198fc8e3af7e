package remembertokens

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

func (r *PostgresRepository) Create(ctx context.Context, token *models.RememberToken) error {

	query :=
		`INSERT INTO remember_tokens (user_id, token_jti, token_hash, family_id, expires_at)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		token.UserID, token.JTI, token.TokenHash, token.FamilyID, token.ExpiresAt).Scan(&token.ID, &token.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FindByJTI(ctx context.Context, jti string) (*models.RememberToken, error) {

	query :=
		`SELECT id, user_id, token_jti, token_hash, family_id, expires_at, revoked, created_at
		 FROM remember_tokens
		 WHERE token_jti = $1
		 `

	t := &models.RememberToken{}
	err := r.db.QueryRowContext(ctx, query, jti).Scan(
		&t.ID, &t.UserID, &t.JTI, &t.TokenHash, &t.FamilyID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) RevokeByJTI(ctx context.Context, jti string) (bool, error) {

	query :=
		`UPDATE remember_tokens SET revoked = TRUE
		 WHERE token_jti = $1 AND revoked = FALSE
		 `

	n, err := r.exec(ctx, query, jti)
	return n == 1, err
}

func (r *PostgresRepository) RevokeByJTIForUser(ctx context.Context, userID int64, jti string) error {

	query :=
		`UPDATE remember_tokens SET revoked = TRUE
		 WHERE user_id = $1 AND token_jti = $2
		 `

	_, err := r.exec(ctx, query, userID, jti)
	return err
}

func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID string) (int64, error) {

	query :=
		`UPDATE remember_tokens SET revoked = TRUE
		 WHERE family_id = $1 AND revoked = FALSE
		 `

	return r.exec(ctx, query, familyID)
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {

	query :=
		`UPDATE remember_tokens SET revoked = TRUE
		 WHERE user_id = $1 AND revoked = FALSE
		 `

	return r.exec(ctx, query, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {

	query :=
		`DELETE FROM remember_tokens
		 WHERE expires_at < $1
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
