// Package services contains server-side business logic: the session
// orchestrator (registration, login, remember-token rotation, logout and
// password recovery), account lockout, the persisted rate limiter, and
// the expiry sweeper.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

const (
	tokenTypeBearer = "Bearer"
	resetTokenBytes = 32

	// bcrypt ignores input past 72 bytes; the same bound applies to argon2id
	// so switching hashers never rejects an existing password.
	passwordRules = "required,max=72"
	usernameRules = "required,min=3,max=50"
	emailRules    = "required,email,max=255"
)

var (
	errAlreadyRotated = errors.New("remember token already rotated")
	errResetRedeemed  = errors.New("reset token already redeemed")
)

// Identity is the authenticated caller, passed explicitly to every
// operation that acts on behalf of a user.
type Identity struct {
	UserID   int64
	PublicID string
}

type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	User        *models.User
	// RememberToken is empty unless remember-me was requested.
	RememberToken string
}

type TokenPair struct {
	AccessToken   string
	RememberToken string
	TokenType     string
	ExpiresIn     int64
}

// ResetTicket is handed to the caller of ForgotPassword. Delivering it to
// the account owner is outside this service.
type ResetTicket struct {
	Token     string
	ExpiresIn int64
}

type SessionConfig struct {
	PasswordResetValidity time.Duration
}

// SessionService orchestrates credentials and the remember-token family
// lifecycle on top of the token codec, the repositories and Lockout.
type SessionService struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      cryptox.PasswordHasher
	lockout     *Lockout
	resetTTL    time.Duration
	logger      logging.Logger
	now         func() time.Time

	// dummyHash is verified against when the email is unknown so both
	// login failure paths cost one hash verification.
	dummyHash string
}

func NewSessionService(
	db dbx.Transactor,
	m repomanager.RepositoryManager,
	codec *auth.Codec,
	hasher cryptox.PasswordHasher,
	lockout *Lockout,
	cfg SessionConfig,
	l logging.Logger,
	opts ...Option,
) (*SessionService, error) {
	o := applyOptions(opts)

	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("error preparing dummy hash: %w", err)
	}

	return &SessionService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		lockout:     lockout,
		resetTTL:    cfg.PasswordResetValidity,
		logger:      l.With("module", "session_service"),
		now:         o.now,
		dummyHash:   dummy,
	}, nil
}

// Register creates an account. Email is lower-cased and trimmed.
func (s *SessionService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if err := validateFields(
		fieldCheck{"username", username, usernameRules},
		fieldCheck{"email", email, emailRules},
		fieldCheck{"password", password, passwordRules},
	); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if err := s.checkIdentityFree(ctx, repo, 0, username, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.internal(ctx, "error hashing password", err)
	}

	user := &models.User{PublicID: uuid.NewString(), UserName: username, Email: email, PasswordHash: hash}
	u, err := repo.Create(ctx, user)
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: email or username already in use", common.ErrConflict)
		}
		return nil, s.internal(ctx, "error creating user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login checks the lock before the password, so a locked account reports
// *common.LockedError even for the right password.
func (s *SessionService) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	email = normalizeEmail(email)

	if err := validateFields(
		fieldCheck{"email", email, "required,email"},
		fieldCheck{"password", password, "required"},
	); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = s.hasher.Verify(s.dummyHash, password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "error looking up user", err)
	}

	if s.lockout.IsLocked(user) {
		return nil, &common.LockedError{RetryAfter: s.lockout.RetryAfter(user)}
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, s.internal(ctx, "error verifying password", err)
	}
	if !ok {
		if _, err := s.lockout.OnFailure(ctx, user.ID); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidCredentials
	}

	if err := s.lockout.OnSuccess(ctx, user.ID); err != nil {
		return nil, err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	access, err := s.codec.IssueAccess(user.ID, user.PublicID)
	if err != nil {
		return nil, s.internal(ctx, "error issuing access token", err)
	}

	result := &LoginResult{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   s.accessExpiresIn(),
		User:        user,
	}

	if rememberMe {
		remember, err := s.issueRemember(ctx, s.db, user, "")
		if err != nil {
			return nil, s.internal(ctx, "error issuing remember token", err)
		}
		result.RememberToken = remember.Token
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "remember_me", rememberMe)
	return result, nil
}

// Refresh rotates a remember token: the presented token is revoked and a new
// access token plus a remember token of the same family are returned.
//
// Presenting a token that was already rotated revokes its whole family and
// yields common.ErrTokenReuseDetected. Calls that overlap on the same token
// are settled by the conditional revoke; losers get common.ErrTokenInvalid.
func (s *SessionService) Refresh(ctx context.Context, rawRememberToken string) (*TokenPair, error) {
	claims, err := s.codec.ValidateRemember(rawRememberToken)
	if err != nil {
		return nil, common.ErrTokenInvalid
	}

	tokens := s.repomanager.RememberTokens(s.db)

	stored, err := tokens.FindByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenInvalid
		}
		return nil, s.internal(ctx, "error looking up remember token", err)
	}

	if stored.Revoked {
		n, err := tokens.RevokeFamily(ctx, stored.FamilyID)
		if err != nil {
			return nil, s.internal(ctx, "error revoking token family", err)
		}
		s.logger.Warn(ctx, "remember token reuse detected, family revoked",
			"user_id", stored.UserID, "family_id", stored.FamilyID, "revoked", n)
		return nil, common.ErrTokenReuseDetected
	}

	if !cryptox.EqualHash(stored.TokenHash, cryptox.HashToken(rawRememberToken)) ||
		stored.UserID != claims.UserID || stored.FamilyID != claims.FamilyID {
		return nil, common.ErrTokenInvalid
	}

	if !stored.ExpiresAt.After(s.now()) {
		if _, err := tokens.RevokeByJTI(ctx, stored.JTI); err != nil {
			s.logger.Error(ctx, "error revoking expired remember token", "user_id", stored.UserID, "error", err)
		}
		return nil, common.ErrTokenInvalid
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenInvalid
		}
		return nil, s.internal(ctx, "error looking up user", err)
	}

	var pair *TokenPair
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		revoked, err := s.repomanager.RememberTokens(tx).RevokeByJTI(ctx, stored.JTI)
		if err != nil {
			return err
		}
		if !revoked {
			return errAlreadyRotated
		}

		access, err := s.codec.IssueAccess(user.ID, user.PublicID)
		if err != nil {
			return err
		}
		remember, err := s.issueRemember(ctx, tx, user, stored.FamilyID)
		if err != nil {
			return err
		}

		pair = &TokenPair{
			AccessToken:   access.Token,
			RememberToken: remember.Token,
			TokenType:     tokenTypeBearer,
			ExpiresIn:     s.accessExpiresIn(),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyRotated) {
			s.logger.Info(ctx, "concurrent refresh lost the rotation", "user_id", user.ID, "family_id", stored.FamilyID)
			return nil, common.ErrTokenInvalid
		}
		return nil, s.internal(ctx, "error rotating remember token", err)
	}

	return pair, nil
}

// Logout revokes one remember token of the user, or all of them when jti
// is empty.
func (s *SessionService) Logout(ctx context.Context, id Identity, jti string) error {
	tokens := s.repomanager.RememberTokens(s.db)

	if jti != "" {
		if err := tokens.RevokeByJTIForUser(ctx, id.UserID, jti); err != nil {
			return s.internal(ctx, "error revoking remember token", err)
		}
		s.logger.Info(ctx, "user logged out", "user_id", id.UserID, "scope", "token")
		return nil
	}

	n, err := tokens.RevokeAllForUser(ctx, id.UserID)
	if err != nil {
		return s.internal(ctx, "error revoking remember tokens", err)
	}
	s.logger.Info(ctx, "user logged out", "user_id", id.UserID, "scope", "all", "revoked", n)
	return nil
}

// ForgotPassword always succeeds for a well-formed email. For unknown
// addresses the ticket is a decoy that was never stored.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) (*ResetTicket, error) {
	email = normalizeEmail(email)

	if err := validateFields(fieldCheck{"email", email, "required,email"}); err != nil {
		return nil, err
	}

	raw, err := common.MakeRandHexString(resetTokenBytes)
	if err != nil {
		return nil, s.internal(ctx, "error generating reset token", err)
	}
	ticket := &ResetTicket{Token: raw, ExpiresIn: int64(s.resetTTL / time.Second)}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return ticket, nil
		}
		return nil, s.internal(ctx, "error looking up user", err)
	}

	expiresAt := s.now().Add(s.resetTTL)
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		resets := s.repomanager.PasswordResets(tx)
		if _, err := resets.InvalidateForUser(ctx, user.ID); err != nil {
			return err
		}
		_, err := resets.Create(ctx, user.ID, cryptox.HashToken(raw), expiresAt)
		return err
	})
	if err != nil {
		return nil, s.internal(ctx, "error storing reset token", err)
	}

	s.logger.Info(ctx, "password reset requested", "user_id", user.ID)
	return ticket, nil
}

// ResetPassword redeems a reset token once. On success every remember token
// of the user is revoked and the lockout state is cleared.
func (s *SessionService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validateFields(
		fieldCheck{"token", rawToken, "required"},
		fieldCheck{"password", newPassword, passwordRules},
	); err != nil {
		return err
	}

	reset, err := s.repomanager.PasswordResets(s.db).FindValidByHash(ctx, cryptox.HashToken(rawToken), s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrResetTokenInvalid
		}
		return s.internal(ctx, "error looking up reset token", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "error hashing password", err)
	}

	var revoked int64
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		used, err := s.repomanager.PasswordResets(tx).MarkUsed(ctx, reset.ID)
		if err != nil {
			return err
		}
		if !used {
			return errResetRedeemed
		}

		users := s.repomanager.Users(tx)
		if err := users.UpdatePassword(ctx, reset.UserID, hash); err != nil {
			return err
		}
		if revoked, err = s.repomanager.RememberTokens(tx).RevokeAllForUser(ctx, reset.UserID); err != nil {
			return err
		}
		return users.ResetFailedLogins(ctx, reset.UserID)
	})
	if err != nil {
		if errors.Is(err, errResetRedeemed) {
			return common.ErrResetTokenInvalid
		}
		return s.internal(ctx, "error resetting password", err)
	}

	s.logger.Info(ctx, "password reset", "user_id", reset.UserID, "revoked_remember_tokens", revoked)
	return nil
}

// ValidateAccessToken parses an Authorization header value. The scheme is
// matched case-insensitively.
func (s *SessionService) ValidateAccessToken(ctx context.Context, header string) (*Identity, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) || token == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.codec.ValidateAccess(token)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	return &Identity{UserID: claims.UserID, PublicID: claims.Subject}, nil
}

// ChangePassword replaces the password after re-checking the current one.
// Existing sessions stay valid.
func (s *SessionService) ChangePassword(ctx context.Context, id Identity, currentPassword, newPassword string) error {
	if err := validateFields(
		fieldCheck{"current_password", currentPassword, "required"},
		fieldCheck{"new_password", newPassword, passwordRules},
	); err != nil {
		return err
	}

	users := s.repomanager.Users(s.db)

	user, err := users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "error looking up user", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, currentPassword)
	if err != nil {
		return s.internal(ctx, "error verifying password", err)
	}
	if !ok {
		return common.ErrWrongCurrentPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "error hashing password", err)
	}

	if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return s.internal(ctx, "error updating password", err)
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// UpdateProfile changes the caller's username and email. Values already
// held by the caller are accepted unchanged.
func (s *SessionService) UpdateProfile(ctx context.Context, id Identity, username, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if err := validateFields(
		fieldCheck{"username", username, usernameRules},
		fieldCheck{"email", email, emailRules},
	); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if err := s.checkIdentityFree(ctx, repo, id.UserID, username, email); err != nil {
		return nil, err
	}

	u, err := repo.UpdateProfile(ctx, id.UserID, username, email)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrorNotFound
		case errors.Is(err, common.ErrConflict):
			return nil, fmt.Errorf("%w: email or username already in use", common.ErrConflict)
		}
		return nil, s.internal(ctx, "error updating profile", err)
	}

	s.logger.Info(ctx, "profile updated", "user_id", u.ID)
	return u, nil
}

func (s *SessionService) Profile(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "error looking up user", err)
	}
	return user, nil
}

// --- helpers below ---

func (s *SessionService) issueRemember(ctx context.Context, db dbx.DBTX, user *models.User, familyID string) (*auth.IssuedToken, error) {
	tok, err := s.codec.IssueRemember(user.ID, user.PublicID, familyID)
	if err != nil {
		return nil, err
	}

	record := &models.RememberToken{
		UserID:    user.ID,
		JTI:       tok.JTI,
		TokenHash: cryptox.HashToken(tok.Token),
		FamilyID:  tok.FamilyID,
		ExpiresAt: tok.ExpiresAt,
	}
	if err := s.repomanager.RememberTokens(db).Create(ctx, record); err != nil {
		return nil, err
	}

	return tok, nil
}

// checkIdentityFree fails with ErrConflict when email or username belongs to
// an account other than self. Pass self = 0 for a new account.
func (s *SessionService) checkIdentityFree(ctx context.Context, repo usersrepo.Repository, self int64, username, email string) error {
	if u, err := repo.GetByEmail(ctx, email); err == nil {
		if u.ID != self {
			return fmt.Errorf("%w: email already in use", common.ErrConflict)
		}
	} else if !errors.Is(err, common.ErrorNotFound) {
		return s.internal(ctx, "error looking up email", err)
	}

	if u, err := repo.GetByUserName(ctx, username); err == nil {
		if u.ID != self {
			return fmt.Errorf("%w: username already taken", common.ErrConflict)
		}
	} else if !errors.Is(err, common.ErrorNotFound) {
		return s.internal(ctx, "error looking up username", err)
	}

	return nil
}

func (s *SessionService) accessExpiresIn() int64 {
	return int64(s.codec.AccessTTL() / time.Second)
}

func (s *SessionService) internal(ctx context.Context, msg string, err error) error {
	s.logger.Error(ctx, msg, "error", err)
	return common.ErrorInternal
}
