package models

import "time"

// RefreshToken is a single-use credential redeemed for a new token pair.
type RefreshToken struct {
	ID      string
	UserID  string
	Token   string
	Expires time.Time
}

// Expired reports whether the token can no longer be redeemed at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}
