package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
)

// Lockout turns consecutive failed logins into a temporary account freeze.
type Lockout struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	threshold   int
	duration    time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewLockout(db dbx.DBTX, m repomanager.RepositoryManager, threshold int, duration time.Duration, l logging.Logger, opts ...Option) *Lockout {
	o := applyOptions(opts)
	return &Lockout{
		db:          db,
		repomanager: m,
		threshold:   threshold,
		duration:    duration,
		logger:      l.With("module", "lockout"),
		now:         o.now,
	}
}

// OnFailure records one failed attempt. The counter and the lock are
// updated by a single statement; the returned bool reports whether the
// account is locked afterwards.
func (l *Lockout) OnFailure(ctx context.Context, userID int64) (bool, error) {
	now := l.now()

	attempts, lockedUntil, err := l.repomanager.Users(l.db).RegisterFailedLogin(ctx, userID, l.threshold, now.Add(l.duration))
	if err != nil {
		l.logger.Error(ctx, "failed to record login failure", "user_id", userID, "error", err)
		return false, common.ErrorInternal
	}

	locked := lockedUntil != nil && lockedUntil.After(now)
	if locked && attempts >= l.threshold {
		l.logger.Warn(ctx, "account locked", "user_id", userID, "failed_attempts", attempts, "locked_until", *lockedUntil)
	}

	return locked, nil
}

// OnSuccess clears the counter and any lock.
func (l *Lockout) OnSuccess(ctx context.Context, userID int64) error {
	if err := l.repomanager.Users(l.db).ResetFailedLogins(ctx, userID); err != nil {
		l.logger.Error(ctx, "failed to reset login failures", "user_id", userID, "error", err)
		return common.ErrorInternal
	}
	return nil
}

func (l *Lockout) IsLocked(user *models.User) bool {
	return user.IsLocked(l.now())
}

// RetryAfter is how long the user must wait before the next attempt.
func (l *Lockout) RetryAfter(user *models.User) time.Duration {
	return user.LockRemaining(l.now())
}
