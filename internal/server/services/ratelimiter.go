package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
)

// RateLimiter is a persisted fixed-window counter keyed by
// (identifier, endpoint). Bursts straddling a window boundary may see up
// to twice the limit.
type RateLimiter struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewRateLimiter(db dbx.Transactor, m repomanager.RepositoryManager, l logging.Logger, opts ...Option) *RateLimiter {
	o := applyOptions(opts)
	return &RateLimiter{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "rate_limiter"),
		now:         o.now,
	}
}

// Check counts one request and reports whether it fits the limit. A denied
// request leaves the counter unchanged.
func (r *RateLimiter) Check(ctx context.Context, identifier, endpoint string, limit config.RateLimit) (bool, error) {
	if limit.Window <= 0 {
		r.logger.Error(ctx, "rate limit window must be positive", "endpoint", endpoint, "window", limit.Window)
		return false, common.ErrorInternal
	}

	now := r.now()
	cutoff := now.Add(-limit.Window)

	var allowed bool
	err := r.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repomanager.RateLimits(tx)

		if _, err := repo.PurgeStale(ctx, endpoint, cutoff); err != nil {
			return err
		}

		var err error
		_, allowed, err = repo.Hit(ctx, identifier, endpoint, limit.MaxHits, now, cutoff)
		return err
	})
	if err != nil {
		r.logger.Error(ctx, "rate limit check failed", "endpoint", endpoint, "error", err)
		return false, common.ErrorInternal
	}

	if !allowed {
		r.logger.Debug(ctx, "rate limit exceeded", "endpoint", endpoint, "identifier", identifier)
	}

	return allowed, nil
}
