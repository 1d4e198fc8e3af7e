package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
)

type SweepResult struct {
	RememberTokens int64
	PasswordResets int64
	RateLimits     int64
}

// Sweeper removes rows that are past their logical validity. It is safe to
// run next to live traffic and is triggered externally.
type Sweeper struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	rateWindow  time.Duration
	logger      logging.Logger
	now         func() time.Time
}

// NewSweeper takes the widest configured rate-limit window; rate-limit rows
// older than that are dead for every endpoint class.
func NewSweeper(db dbx.DBTX, m repomanager.RepositoryManager, rateWindow time.Duration, l logging.Logger, opts ...Option) *Sweeper {
	o := applyOptions(opts)
	return &Sweeper{
		db:          db,
		repomanager: m,
		rateWindow:  rateWindow,
		logger:      l.With("module", "sweeper"),
		now:         o.now,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	res := &SweepResult{}

	var err error
	if res.RememberTokens, err = s.repomanager.RememberTokens(s.db).DeleteExpired(ctx, now); err != nil {
		s.logger.Error(ctx, "error sweeping remember tokens", "error", err)
		return nil, common.ErrorInternal
	}
	if res.PasswordResets, err = s.repomanager.PasswordResets(s.db).DeleteExpired(ctx, now); err != nil {
		s.logger.Error(ctx, "error sweeping password resets", "error", err)
		return nil, common.ErrorInternal
	}
	if res.RateLimits, err = s.repomanager.RateLimits(s.db).DeleteOlderThan(ctx, now.Add(-s.rateWindow)); err != nil {
		s.logger.Error(ctx, "error sweeping rate limits", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "sweep finished",
		"remember_tokens", res.RememberTokens, "password_resets", res.PasswordResets, "rate_limits", res.RateLimits)
	return res, nil
}
