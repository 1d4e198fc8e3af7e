package grpc

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

// ---- fakes ----

type fakeSessions struct {
	registerResp *models.User
	registerErr  error

	loginResp *services.LoginResult
	loginErr  error
	loginArgs struct {
		email, password string
		rememberMe      bool
	}

	refreshResp *services.TokenPair
	refreshErr  error

	logoutErr error
	logoutID  services.Identity
	logoutJTI string

	forgotResp *services.ResetTicket
	forgotErr  error

	resetErr error

	identity    *services.Identity
	validateErr error
	gotHeader   string

	changeErr error
	changeID  services.Identity

	profileResp *models.User
	profileErr  error

	updateResp *models.User
	updateErr  error
	updateArgs struct {
		id              services.Identity
		username, email string
	}
}

func (f *fakeSessions) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return f.registerResp, f.registerErr
}

func (f *fakeSessions) Login(ctx context.Context, email, password string, rememberMe bool) (*services.LoginResult, error) {
	f.loginArgs.email, f.loginArgs.password, f.loginArgs.rememberMe = email, password, rememberMe
	return f.loginResp, f.loginErr
}

func (f *fakeSessions) Refresh(ctx context.Context, raw string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}

func (f *fakeSessions) Logout(ctx context.Context, id services.Identity, jti string) error {
	f.logoutID, f.logoutJTI = id, jti
	return f.logoutErr
}

func (f *fakeSessions) ForgotPassword(ctx context.Context, email string) (*services.ResetTicket, error) {
	return f.forgotResp, f.forgotErr
}

func (f *fakeSessions) ResetPassword(ctx context.Context, raw, newPassword string) error {
	return f.resetErr
}

func (f *fakeSessions) ValidateAccessToken(ctx context.Context, header string) (*services.Identity, error) {
	f.gotHeader = header
	return f.identity, f.validateErr
}

func (f *fakeSessions) ChangePassword(ctx context.Context, id services.Identity, current, newPassword string) error {
	f.changeID = id
	return f.changeErr
}

func (f *fakeSessions) Profile(ctx context.Context, id services.Identity) (*models.User, error) {
	return f.profileResp, f.profileErr
}

func (f *fakeSessions) UpdateProfile(ctx context.Context, id services.Identity, username, email string) (*models.User, error) {
	f.updateArgs.id, f.updateArgs.username, f.updateArgs.email = id, username, email
	return f.updateResp, f.updateErr
}

type limiterCall struct {
	identifier string
	endpoint   string
	limit      config.RateLimit
}

type fakeLimiter struct {
	mu      sync.Mutex
	allowed bool
	err     error
	calls   []limiterCall
}

func (f *fakeLimiter) Check(ctx context.Context, identifier, endpoint string, limit config.RateLimit) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, limiterCall{identifier, endpoint, limit})
	return f.allowed, f.err
}

func (f *fakeLimiter) last() limiterCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}
