package ratelimits

import (
	"context"
	"time"
)

type Repository interface {
	// PurgeStale drops windows of endpoint that started before cutoff.
	PurgeStale(ctx context.Context, endpoint string, cutoff time.Time) (int64, error)
	// Hit records one request in a single statement. A window that started
	// before cutoff is restarted at now. allowed is false when the window
	// already holds maxHits requests; the counter is then left untouched.
	Hit(ctx context.Context, identifier, endpoint string, maxHits int, now, cutoff time.Time) (hits int, allowed bool, err error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
