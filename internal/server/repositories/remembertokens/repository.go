package remembertokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.RememberToken) error
	FindByJTI(ctx context.Context, jti string) (*models.RememberToken, error)
	// RevokeByJTI flips revoked only if it is still FALSE and reports whether
	// this call did the flip.
	RevokeByJTI(ctx context.Context, jti string) (bool, error)
	RevokeByJTIForUser(ctx context.Context, userID int64, jti string) error
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
