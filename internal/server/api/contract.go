package api

import (
	"context"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
)

// SessionService is the part of services.SessionService both boundaries use.
type SessionService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*services.LoginResult, error)
	Refresh(ctx context.Context, rawRememberToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, id services.Identity, jti string) error
	ForgotPassword(ctx context.Context, email string) (*services.ResetTicket, error)
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	ValidateAccessToken(ctx context.Context, header string) (*services.Identity, error)
	ChangePassword(ctx context.Context, id services.Identity, currentPassword, newPassword string) error
	Profile(ctx context.Context, id services.Identity) (*models.User, error)
	UpdateProfile(ctx context.Context, id services.Identity, username, email string) (*models.User, error)
}

type RateLimiter interface {
	Check(ctx context.Context, identifier, endpoint string, limit config.RateLimit) (bool, error)
}

var (
	_ SessionService = (*services.SessionService)(nil)
	_ RateLimiter    = (*services.RateLimiter)(nil)
)
