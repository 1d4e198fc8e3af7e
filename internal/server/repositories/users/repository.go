// Package users declares the account repository contract, including the
// lockout counters stored on the user row.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills ID/CreatedAt/UpdatedAt. A duplicate
	// email, username or uuid yields common.ErrConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)

	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// UpdateProfile changes username and email. A value held by another
	// account yields common.ErrConflict, a missing row common.ErrorNotFound.
	UpdateProfile(ctx context.Context, id int64, userName, email string) (*models.User, error)

	// RegisterFailedLogin atomically increments the failed-attempt counter
	// and sets locked_until to lockUntil once the counter reaches threshold.
	// It returns the counter and lock after the update.
	RegisterFailedLogin(ctx context.Context, id int64, threshold int, lockUntil time.Time) (int, *time.Time, error)

	// ResetFailedLogins zeroes the counter and clears the lock.
	ResetFailedLogins(ctx context.Context, id int64) error
}
