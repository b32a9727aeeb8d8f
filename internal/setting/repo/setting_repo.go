package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/setting/entity"
	"github.com/ovaphlow/linkhoard/service-auth-go/pkg/utilities"
)

// SettingRepo is the repository for settings backed by PostgreSQL.
type SettingRepo struct {
	db *sqlx.DB
}

// NewSettingRepo constructs a SettingRepo with an existing *sqlx.DB.
func NewSettingRepo(db *sqlx.DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// EnsureTable ensures the settings table and its index exist.
func (r *SettingRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS settings (
  id varchar(32) PRIMARY KEY,
  key TEXT UNIQUE NOT NULL,
  value TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_settings_key ON settings (key);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// List returns every settings row.
func (r *SettingRepo) List(ctx context.Context) ([]entity.Setting, error) {
	const q = `SELECT id, key, value, updated_at FROM settings ORDER BY key`
	var rows []entity.Setting
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertAll writes a batch of key/value pairs in one transaction so a
// multi-key update applies all-or-nothing.
func (r *SettingRepo) UpsertAll(ctx context.Context, pairs map[string]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const q = `INSERT INTO settings (id, key, value, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	for key, value := range pairs {
		if _, err := tx.ExecContext(ctx, q, utilities.NewKSUID(), key, value); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
