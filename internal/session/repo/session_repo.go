package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/session/entity"
	userentity "github.com/ovaphlow/linkhoard/service-auth-go/internal/user/entity"
)

// SessionRepo persists opaque session tokens in the sessions table.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo { return &SessionRepo{db: db} }

// EnsureTable creates the sessions table if not exists (idempotent).
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id BIGINT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Save inserts a session row.
func (r *SessionRepo) Save(ctx context.Context, s *entity.Session) error {
	const q = `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.UserID, s.CreatedAt, s.ExpiresAt)
	return err
}

// GetWithUser returns the session and its owning user, or sql.ErrNoRows.
// Expiry is not checked here; the service decides validity.
func (r *SessionRepo) GetWithUser(ctx context.Context, token string) (*entity.Session, *userentity.User, error) {
	const q = `SELECT s.id AS sid, s.user_id, s.created_at AS s_created, s.expires_at,
		u.id, u.username, u.email, u.role, u.password_hash, u.login_attempts,
		u.locked_until, u.last_login, u.created_at, u.updated_at
	  FROM sessions s JOIN users u ON u.id = s.user_id WHERE s.id=$1`
	var row struct {
		SID      string    `db:"sid"`
		SUserID  int64     `db:"user_id"`
		SCreated time.Time `db:"s_created"`
		SExpires time.Time `db:"expires_at"`
		userentity.User
	}
	if err := r.db.GetContext(ctx, &row, q, token); err != nil {
		return nil, nil, err
	}
	s := &entity.Session{ID: row.SID, UserID: row.SUserID, CreatedAt: row.SCreated, ExpiresAt: row.SExpires}
	u := row.User
	return s, &u, nil
}

// Delete removes a session row; deleting an absent token is not an error.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, token)
	return err
}

// DeleteExpired bulk-deletes rows past their expiry and reports how many
// were removed.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
