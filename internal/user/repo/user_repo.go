package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/user/entity"
)

// UserRepo provides data access for the users and login_failures tables
// using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users and login_failures tables if not exists
// (idempotent). This is a convenience for early development; prefer
// migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGINT PRIMARY KEY,
  username TEXT UNIQUE NOT NULL,
  email TEXT,
  role TEXT NOT NULL DEFAULT 'user',
  password_hash TEXT NOT NULL,
  login_attempts INT NOT NULL DEFAULT 0,
  locked_until TIMESTAMPTZ,
  last_login TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE TABLE IF NOT EXISTS login_failures (
  username TEXT PRIMARY KEY,
  attempts INT NOT NULL DEFAULT 0,
  last_attempt TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, username, email, role, password_hash, login_attempts, locked_until, last_login, created_at, updated_at`

// Create inserts a new user row. The caller supplies the ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, username, email, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Username, u.Email, u.Role, u.PasswordHash)
	return err
}

// GetByUsername fetches by username or sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, username); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// IncrementAttempts increments the failure counter in a single UPDATE and
// returns the new value. Concurrent failed logins therefore never lose an
// increment to a stale read.
func (r *UserRepo) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	const q = `UPDATE users SET login_attempts = login_attempts + 1, updated_at=NOW() WHERE id=$1 RETURNING login_attempts`
	var v int
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		return 0, err
	}
	return v, nil
}

// LockIfThreshold sets locked_until when the stored counter has reached the
// threshold. Returns whether a lock was applied.
func (r *UserRepo) LockIfThreshold(ctx context.Context, id int64, threshold int, d time.Duration) (bool, error) {
	const q = `UPDATE users SET locked_until = NOW() + make_interval(secs => $2), updated_at=NOW()
		WHERE id=$1 AND login_attempts >= $3 RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id, d.Seconds(), threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ResetLoginSuccess clears failure state on successful authentication.
func (r *UserRepo) ResetLoginSuccess(ctx context.Context, id int64) error {
	const q = `UPDATE users SET login_attempts=0, locked_until=NULL, last_login=NOW(), updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// RecordUnknownFailure bumps the best-effort counter for a username with no
// account. Upsert keeps the increment atomic.
func (r *UserRepo) RecordUnknownFailure(ctx context.Context, username string) error {
	const q = `INSERT INTO login_failures (username, attempts, last_attempt) VALUES ($1, 1, NOW())
		ON CONFLICT (username) DO UPDATE SET attempts = login_failures.attempts + 1, last_attempt = NOW()`
	_, err := r.db.ExecContext(ctx, q, username)
	return err
}

// UpdatePassword replaces the stored digest.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	const q = `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, hash)
	return err
}

// UpdateEmail sets the account email.
func (r *UserRepo) UpdateEmail(ctx context.Context, id int64, email *string) error {
	const q = `UPDATE users SET email=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, email)
	return err
}
