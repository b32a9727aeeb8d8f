package user

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/user/entity"
)

// fakeRepo is an in-memory Repo with the same atomicity characteristics
// the SQL statements guarantee.
type fakeRepo struct {
	users          map[string]*entity.User
	unknownCounts  map[string]int
	now            func() time.Time
	failGet        error
	incrementCalls int
}

func newFakeRepo(now func() time.Time) *fakeRepo {
	return &fakeRepo{
		users:         map[string]*entity.User{},
		unknownCounts: map[string]int{},
		now:           now,
	}
}

func (f *fakeRepo) add(u *entity.User) { f.users[u.Username] = u }

func (f *fakeRepo) Create(_ context.Context, u *entity.User) error {
	if _, ok := f.users[u.Username]; ok {
		return sql.ErrTxDone // any non-nil error; uniqueness path is covered in repo SQL
	}
	f.users[u.Username] = u
	return nil
}

func (f *fakeRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	u, ok := f.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*entity.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRepo) IncrementAttempts(_ context.Context, id int64) (int, error) {
	f.incrementCalls++
	for _, u := range f.users {
		if u.ID == id {
			u.LoginAttempts++
			return u.LoginAttempts, nil
		}
	}
	return 0, sql.ErrNoRows
}

func (f *fakeRepo) LockIfThreshold(_ context.Context, id int64, threshold int, d time.Duration) (bool, error) {
	for _, u := range f.users {
		if u.ID == id && u.LoginAttempts >= threshold {
			until := f.now().Add(d)
			u.LockedUntil = &until
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ResetLoginSuccess(_ context.Context, id int64) error {
	for _, u := range f.users {
		if u.ID == id {
			u.LoginAttempts = 0
			u.LockedUntil = nil
			now := f.now()
			u.LastLogin = &now
		}
	}
	return nil
}

func (f *fakeRepo) RecordUnknownFailure(_ context.Context, username string) error {
	f.unknownCounts[username]++
	return nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	for _, u := range f.users {
		if u.ID == id {
			u.PasswordHash = hash
		}
	}
	return nil
}

func (f *fakeRepo) UpdateEmail(_ context.Context, id int64, email *string) error {
	for _, u := range f.users {
		if u.ID == id {
			u.Email = email
		}
	}
	return nil
}

func testService(t *testing.T, now time.Time) (*Service, *fakeRepo, *entity.User) {
	t.Helper()
	clock := func() time.Time { return now }
	repo := newFakeRepo(clock)
	svc := NewService(repo, NewHasher("test-secret"))
	svc.now = clock
	repo.now = clock

	hash, err := NewHasher("test-secret").Hash("right password")
	require.NoError(t, err)
	alice := &entity.User{ID: 1, Username: "alice", Role: entity.RoleUser, PasswordHash: hash}
	repo.add(alice)
	return svc, repo, alice
}

var testPolicy = LockoutPolicy{MaxAttempts: 3, Duration: 1800 * time.Second}

func TestAuthenticateSuccessResetsState(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, alice := testService(t, now)
	alice.LoginAttempts = 2

	u, err := svc.Authenticate(context.Background(), "alice", "right password", testPolicy)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Zero(t, u.LoginAttempts)
	assert.Nil(t, u.LockedUntil)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, now, *u.LastLogin)
	assert.Zero(t, repo.users["alice"].LoginAttempts)
}

func TestAuthenticateMonotonicLockout(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, _ := testService(t, now)

	// max-1 failures leave the account open
	for i := 0; i < testPolicy.MaxAttempts-1; i++ {
		_, err := svc.Authenticate(context.Background(), "alice", "wrong", testPolicy)
		assert.ErrorIs(t, err, ErrBadCredentials)
		locked, lockErr := svc.IsLocked(context.Background(), "alice")
		require.NoError(t, lockErr)
		assert.False(t, locked, "attempt %d must not lock", i+1)
	}

	// the max-th failure locks
	_, err := svc.Authenticate(context.Background(), "alice", "wrong", testPolicy)
	assert.ErrorIs(t, err, ErrBadCredentials)
	locked, err := svc.IsLocked(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, locked)
	require.NotNil(t, repo.users["alice"].LockedUntil)
	assert.Equal(t, now.Add(testPolicy.Duration), *repo.users["alice"].LockedUntil)

	// further attempts, even with the correct password, are refused
	_, err = svc.Authenticate(context.Background(), "alice", "right password", testPolicy)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAuthenticateLazyUnlock(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, alice := testService(t, now)
	past := now.Add(-time.Second)
	alice.LoginAttempts = testPolicy.MaxAttempts
	alice.LockedUntil = &past

	// no stored transition happened, yet the lock no longer holds
	locked, err := svc.IsLocked(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, locked)
	assert.Equal(t, testPolicy.MaxAttempts, repo.users["alice"].LoginAttempts,
		"expiry must not reset the stored counter")

	u, err := svc.Authenticate(context.Background(), "alice", "right password", testPolicy)
	require.NoError(t, err)
	assert.Zero(t, u.LoginAttempts)
}

func TestLockedAt(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, LockedAt(nil, now))
	assert.True(t, LockedAt(&future, now))
	assert.False(t, LockedAt(&past, now))
	// boundary: a lock expiring exactly now no longer holds
	assert.False(t, LockedAt(&now, now))
}

func TestAuthenticateUnknownUsername(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, _ := testService(t, now)

	_, errUnknown := svc.Authenticate(context.Background(), "nobody", "whatever", testPolicy)
	_, errWrongPw := svc.Authenticate(context.Background(), "alice", "wrong", testPolicy)

	// identical error for unknown user and wrong password
	assert.ErrorIs(t, errUnknown, ErrBadCredentials)
	assert.Equal(t, errWrongPw, errUnknown)

	// the attempt is still tracked, keyed by the attempted name
	assert.Equal(t, 1, repo.unknownCounts["nobody"])

	// unknown username reports unlocked, not an error
	locked, err := svc.IsLocked(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, locked)
}

// countingHasher wraps a real hasher and counts Verify calls.
type countingHasher struct {
	PasswordHasher
	verifies int
}

func (c *countingHasher) Verify(digest, pw string) bool {
	c.verifies++
	return c.PasswordHasher.Verify(digest, pw)
}

func TestAuthenticateFailurePathsCostOneVerify(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo := newFakeRepo(clock)
	ch := &countingHasher{PasswordHasher: NewHasher("test-secret")}
	svc := NewService(repo, ch)
	svc.now = clock

	hash, err := NewHasher("test-secret").Hash("right password")
	require.NoError(t, err)
	repo.add(&entity.User{ID: 1, Username: "alice", Role: entity.RoleUser, PasswordHash: hash})

	// wrong password on a real account: one digest check
	_, err = svc.Authenticate(context.Background(), "alice", "wrong", testPolicy)
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, 1, ch.verifies)

	// unknown username: also exactly one digest check, so timing does not
	// reveal whether the account exists
	_, err = svc.Authenticate(context.Background(), "nobody", "wrong", testPolicy)
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, 2, ch.verifies)
}

func TestAuthenticateStoreFailureIsNotUnauthenticated(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, _ := testService(t, now)
	repo.failGet = sql.ErrConnDone

	_, err := svc.Authenticate(context.Background(), "alice", "right password", testPolicy)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadCredentials)
	assert.NotErrorIs(t, err, ErrLocked)
}

func TestRegisterValidation(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := testService(t, now)

	_, err := svc.Register(context.Background(), "bob", "short", nil)
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	u, err := svc.Register(context.Background(), "bob", "long enough", nil)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, u.Role)
	assert.NotZero(t, u.ID)
	assert.NotEqual(t, "long enough", u.PasswordHash)
}

func TestChangePassword(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, alice := testService(t, now)

	err := svc.ChangePassword(context.Background(), alice.ID, "wrong current", "new password1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	err = svc.ChangePassword(context.Background(), alice.ID, "right password", "tiny")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	err = svc.ChangePassword(context.Background(), alice.ID, "right password", "new password1")
	require.NoError(t, err)
	assert.True(t, NewHasher("test-secret").Verify(repo.users["alice"].PasswordHash, "new password1"))
}
