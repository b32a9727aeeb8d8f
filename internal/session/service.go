package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/session/entity"
	userentity "github.com/ovaphlow/linkhoard/service-auth-go/internal/user/entity"
)

// ErrNoSession covers both an unknown token and an expired one. Callers
// treat it as "not authenticated"; any other error from Validate is a
// backing-store failure and must surface as a server error, never as an
// auth failure.
var ErrNoSession = errors.New("no valid session")

// Repo is the storage surface the service needs. *repo.SessionRepo
// satisfies it; tests supply fakes.
type Repo interface {
	Save(ctx context.Context, s *entity.Session) error
	GetWithUser(ctx context.Context, token string) (*entity.Session, *userentity.User, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Service issues, validates and revokes opaque session tokens.
type Service struct {
	repo Repo
	now  func() time.Time
}

func NewService(r Repo) *Service {
	return &Service{repo: r, now: time.Now}
}

// newToken returns a base64url string of 32 random bytes (256 bits).
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create issues a fresh token for the user with the given TTL and persists
// the row.
func (s *Service) Create(ctx context.Context, userID int64, ttl time.Duration) (*entity.Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &entity.Session{
		ID:        token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate resolves a token to its owning user. Missing or expired tokens
// yield ErrNoSession; expired rows are left in place for the sweep.
func (s *Service) Validate(ctx context.Context, token string) (*userentity.User, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	sess, u, err := s.repo.GetWithUser(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if sess.ExpiredAt(s.now()) {
		return nil, ErrNoSession
	}
	return u, nil
}

// Delete revokes a token. Idempotent; revoking an absent token succeeds.
func (s *Service) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.Delete(ctx, token)
}

// CleanupExpired purges expired rows. Purely maintenance; validity never
// depends on it running.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
