package models

import "time"

// RateLimit is one fixed counting window for an (identifier, endpoint) pair.
type RateLimit struct {
	ID          int64
	Identifier  string
	Endpoint    string
	Hits        int
	WindowStart time.Time
}
