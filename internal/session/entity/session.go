package entity

import "time"

// Session is a persisted opaque-token row. Validity is always re-derived
// from expires_at; nothing about a session is cached between requests.
type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// ExpiredAt reports whether the session is past its expiry at the given
// instant. A session is valid strictly before expires_at.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
