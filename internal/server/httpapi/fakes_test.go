package httpapi

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
)

type fakeSessions struct {
	registerResp *models.User
	registerErr  error

	loginResp *services.LoginResult
	loginErr  error

	refreshResp *services.TokenPair
	refreshErr  error
	gotRefresh  string

	logoutErr    error
	logoutCalled bool
	logoutID     services.Identity
	logoutJTI    string

	forgotResp *services.ResetTicket
	forgotErr  error

	resetErr error

	identity    *services.Identity
	validateErr error

	changeErr error

	profileResp *models.User
	profileErr  error

	updateResp     *models.User
	updateErr      error
	updateUsername string
	updateEmail    string
}

func (f *fakeSessions) Register(context.Context, string, string, string) (*models.User, error) {
	return f.registerResp, f.registerErr
}

func (f *fakeSessions) Login(context.Context, string, string, bool) (*services.LoginResult, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeSessions) Refresh(_ context.Context, raw string) (*services.TokenPair, error) {
	f.gotRefresh = raw
	return f.refreshResp, f.refreshErr
}

func (f *fakeSessions) Logout(_ context.Context, id services.Identity, jti string) error {
	f.logoutCalled, f.logoutID, f.logoutJTI = true, id, jti
	return f.logoutErr
}

func (f *fakeSessions) ForgotPassword(context.Context, string) (*services.ResetTicket, error) {
	return f.forgotResp, f.forgotErr
}

func (f *fakeSessions) ResetPassword(context.Context, string, string) error { return f.resetErr }

func (f *fakeSessions) ValidateAccessToken(context.Context, string) (*services.Identity, error) {
	return f.identity, f.validateErr
}

func (f *fakeSessions) ChangePassword(context.Context, services.Identity, string, string) error {
	return f.changeErr
}

func (f *fakeSessions) Profile(context.Context, services.Identity) (*models.User, error) {
	return f.profileResp, f.profileErr
}

func (f *fakeSessions) UpdateProfile(_ context.Context, _ services.Identity, username, email string) (*models.User, error) {
	f.updateUsername, f.updateEmail = username, email
	return f.updateResp, f.updateErr
}

type limiterCall struct {
	identifier string
	endpoint   string
}

type fakeLimiter struct {
	mu      sync.Mutex
	allowed bool
	err     error
	calls   []limiterCall
}

func (f *fakeLimiter) Check(_ context.Context, identifier, endpoint string, _ config.RateLimit) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, limiterCall{identifier, endpoint})
	return f.allowed, f.err
}
