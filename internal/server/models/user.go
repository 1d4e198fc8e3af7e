// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account record. PasswordHash is never serialised to clients.
type User struct {
	ID                  int64
	PublicID            string
	UserName            string
	Email               string
	PasswordHash        string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// LockRemaining is the time left on an active lock, zero otherwise.
func (u *User) LockRemaining(now time.Time) time.Duration {
	if !u.IsLocked(now) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}
