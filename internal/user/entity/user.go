package entity

import "time"

// Roles recognized by the access-control layer. Anything else is treated
// as a plain user.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account row in the `users` table. The bookmark and
// category tables reference users.id but never touch these columns.
type User struct {
	ID            int64      `db:"id" json:"id"`
	Username      string     `db:"username" json:"username"`
	Email         *string    `db:"email" json:"email,omitempty"`
	Role          string     `db:"role" json:"role"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	LoginAttempts int        `db:"login_attempts" json:"-"`
	LockedUntil   *time.Time `db:"locked_until" json:"-"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"-"`
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
