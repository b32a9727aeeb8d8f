package entity

import "time"

// Setting is one key/value row in the settings table.
type Setting struct {
	ID        string    `db:"id" json:"id"`
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Keys consumed by the auth subsystem.
const (
	KeyRequireLogin     = "require_login"
	KeySessionTimeout   = "session_timeout"
	KeyMaxLoginAttempts = "max_login_attempts"
	KeyLockoutDuration  = "lockout_duration"
	KeyAdminPath        = "admin_path"
	KeyHomePath         = "home_path"
	KeyEnableHomePath   = "enable_home_path"
)

// Bounds for the numeric settings, in seconds/attempts.
const (
	MinSessionTimeout  = 300
	MaxSessionTimeout  = 604800
	MinLoginAttempts   = 3
	MaxAttemptsCeiling = 20
	MinLockoutDuration = 300
	MaxLockoutDuration = 86400
)

// Security is the per-request snapshot of every security setting, loaded
// once from the store and passed explicitly into the gates. Initialized is
// false while no settings rows exist at all; a fresh deployment therefore
// passes open until an administrator configures it.
type Security struct {
	RequireLogin     bool   `json:"require_login"`
	SessionTimeout   int    `json:"session_timeout"`
	MaxLoginAttempts int    `json:"max_login_attempts"`
	LockoutDuration  int    `json:"lockout_duration"`
	AdminPath        string `json:"admin_path"`
	HomePath         string `json:"home_path"`
	EnableHomePath   bool   `json:"enable_home_path"`
	Initialized      bool   `json:"-"`
}

// DefaultSecurity returns the values used for keys absent from the store.
func DefaultSecurity() Security {
	return Security{
		RequireLogin:     true,
		SessionTimeout:   86400,
		MaxLoginAttempts: 5,
		LockoutDuration:  1800,
	}
}
