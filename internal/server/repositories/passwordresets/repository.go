package passwordresets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error)
	InvalidateForUser(ctx context.Context, userID int64) (int64, error)
	FindValidByHash(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error)
	MarkUsed(ctx context.Context, id int64) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
