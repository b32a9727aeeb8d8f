package setting

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/setting/entity"
)

// ErrOutOfBounds rejects a security update whose fields violate the
// documented bounds. The whole update is refused; nothing is written.
var ErrOutOfBounds = errors.New("setting out of bounds")

// Repo is the storage surface the service needs. *repo.SettingRepo
// satisfies it; tests supply fakes.
type Repo interface {
	List(ctx context.Context) ([]entity.Setting, error)
	UpsertAll(ctx context.Context, pairs map[string]string) error
}

// Service loads and updates the persisted security settings.
type Service struct {
	repo Repo
}

func NewService(r Repo) *Service {
	return &Service{repo: r}
}

// LoadSecurity reads every settings row and folds it into a snapshot.
// Absent keys take defaults; Initialized reflects whether any row exists.
// Load once per request and pass the snapshot down; never cache across
// requests.
func (s *Service) LoadSecurity(ctx context.Context) (entity.Security, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return entity.Security{}, err
	}
	sec := entity.DefaultSecurity()
	sec.Initialized = len(rows) > 0
	for _, row := range rows {
		switch row.Key {
		case entity.KeyRequireLogin:
			sec.RequireLogin = row.Value == "true"
		case entity.KeySessionTimeout:
			if n, err := strconv.Atoi(row.Value); err == nil {
				sec.SessionTimeout = n
			}
		case entity.KeyMaxLoginAttempts:
			if n, err := strconv.Atoi(row.Value); err == nil {
				sec.MaxLoginAttempts = n
			}
		case entity.KeyLockoutDuration:
			if n, err := strconv.Atoi(row.Value); err == nil {
				sec.LockoutDuration = n
			}
		case entity.KeyAdminPath:
			sec.AdminPath = row.Value
		case entity.KeyHomePath:
			sec.HomePath = row.Value
		case entity.KeyEnableHomePath:
			sec.EnableHomePath = row.Value == "true"
		}
	}
	return sec, nil
}

// ValidateSecurity checks the bounded fields and reports the first
// violation. Any violation rejects the whole update.
func ValidateSecurity(sec entity.Security) error {
	if sec.SessionTimeout < entity.MinSessionTimeout || sec.SessionTimeout > entity.MaxSessionTimeout {
		return fmt.Errorf("%w: session_timeout must be %d-%d", ErrOutOfBounds, entity.MinSessionTimeout, entity.MaxSessionTimeout)
	}
	if sec.MaxLoginAttempts < entity.MinLoginAttempts || sec.MaxLoginAttempts > entity.MaxAttemptsCeiling {
		return fmt.Errorf("%w: max_login_attempts must be %d-%d", ErrOutOfBounds, entity.MinLoginAttempts, entity.MaxAttemptsCeiling)
	}
	if sec.LockoutDuration < entity.MinLockoutDuration || sec.LockoutDuration > entity.MaxLockoutDuration {
		return fmt.Errorf("%w: lockout_duration must be %d-%d", ErrOutOfBounds, entity.MinLockoutDuration, entity.MaxLockoutDuration)
	}
	return nil
}

// UpdateSecurity validates the snapshot then persists every key in one
// transaction.
func (s *Service) UpdateSecurity(ctx context.Context, sec entity.Security) error {
	if err := ValidateSecurity(sec); err != nil {
		return err
	}
	pairs := map[string]string{
		entity.KeyRequireLogin:     strconv.FormatBool(sec.RequireLogin),
		entity.KeySessionTimeout:   strconv.Itoa(sec.SessionTimeout),
		entity.KeyMaxLoginAttempts: strconv.Itoa(sec.MaxLoginAttempts),
		entity.KeyLockoutDuration:  strconv.Itoa(sec.LockoutDuration),
		entity.KeyAdminPath:        sec.AdminPath,
		entity.KeyHomePath:         sec.HomePath,
		entity.KeyEnableHomePath:   strconv.FormatBool(sec.EnableHomePath),
	}
	return s.repo.UpsertAll(ctx, pairs)
}
