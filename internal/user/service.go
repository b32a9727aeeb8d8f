package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/user/entity"
	"github.com/ovaphlow/linkhoard/service-auth-go/pkg/utilities"
)

// Repo is the storage surface the service needs. *repo.UserRepo satisfies
// it; tests supply fakes.
type Repo interface {
	Create(ctx context.Context, u *entity.User) error
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	LockIfThreshold(ctx context.Context, id int64, threshold int, d time.Duration) (bool, error)
	ResetLoginSuccess(ctx context.Context, id int64) error
	RecordUnknownFailure(ctx context.Context, username string) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateEmail(ctx context.Context, id int64, email *string) error
}

var (
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrLocked           = errors.New("account locked")
	ErrUsernameTaken    = errors.New("username taken")
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordTooShort = errors.New("password too short")
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 8

// unknownUserDigest is a throwaway bcrypt digest compared against when the
// username has no account, so that path pays the same hashing cost as a
// wrong password on a real one. The plaintext behind it is never accepted
// anywhere; the comparison result is discarded.
const unknownUserDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// LockoutPolicy is the per-request snapshot of the lockout knobs, loaded
// from settings by the caller.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// LockedAt reports whether a lock timestamp is still in force. Expiry is
// evaluated lazily against now on every check; the stored attempts counter
// is untouched by expiry.
func LockedAt(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && now.Before(*lockedUntil)
}

// Service orchestrates credential checks and the lockout state machine.
type Service struct {
	repo   Repo
	hasher PasswordHasher
	now    func() time.Time
}

func NewService(r Repo, hasher PasswordHasher) *Service {
	return &Service{repo: r, hasher: hasher, now: time.Now}
}

// Authenticate verifies a username/password pair under the given lockout
// policy. Unknown usernames and wrong passwords fail identically with
// ErrBadCredentials; an unknown username still records a failure so the
// two cases are indistinguishable from outside.
func (s *Service) Authenticate(ctx context.Context, username, password string, policy LockoutPolicy) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrBadCredentials
	}

	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// burn a digest check so the miss costs the same as a wrong
			// password on a real account, then track the attempted name
			_ = s.hasher.Verify(unknownUserDigest, password)
			_ = s.repo.RecordUnknownFailure(ctx, username)
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	if LockedAt(u.LockedUntil, s.now()) {
		return nil, ErrLocked
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		attempts, incErr := s.repo.IncrementAttempts(ctx, u.ID)
		if incErr == nil && attempts >= policy.MaxAttempts {
			_, _ = s.repo.LockIfThreshold(ctx, u.ID, policy.MaxAttempts, policy.Duration)
		}
		return nil, ErrBadCredentials
	}

	if err := s.repo.ResetLoginSuccess(ctx, u.ID); err != nil {
		return nil, err
	}
	now := s.now()
	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.LastLogin = &now
	return u, nil
}

// IsLocked reports the lockout state for a username. Unknown usernames
// report false rather than an error, to avoid leaking account existence.
func (s *Service) IsLocked(ctx context.Context, username string) (bool, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return LockedAt(u.LockedUntil, s.now()), nil
}

// Register creates a user with the plain `user` role.
func (s *Service) Register(ctx context.Context, username, password string, email *string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrBadCredentials
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	id, err := utilities.NewUserID()
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		ID:           id,
		Username:     username,
		Email:        email,
		Role:         entity.RoleUser,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// GetByID retrieves an account, translating absence to ErrUserNotFound.
func (s *Service) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateEmail sets the account email.
func (s *Service) UpdateEmail(ctx context.Context, id int64, email *string) error {
	return s.repo.UpdateEmail(ctx, id, email)
}

// ChangePassword verifies the current password before storing a new digest.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if !s.hasher.Verify(u.PasswordHash, current) {
		return ErrBadCredentials
	}
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}
