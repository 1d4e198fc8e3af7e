package models

import "time"

// RememberToken is the server-side record of one issued remember-me token.
// Only the SHA-256 of the raw token is stored.
type RememberToken struct {
	ID        int64
	UserID    int64
	JTI       string
	TokenHash string
	FamilyID  string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}
