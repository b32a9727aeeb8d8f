package session

import (
	"context"
	"database/sql"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/session/entity"
	userentity "github.com/ovaphlow/linkhoard/service-auth-go/internal/user/entity"
)

type fakeRepo struct {
	sessions map[string]*entity.Session
	users    map[int64]*userentity.User
	failGet  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: map[string]*entity.Session{}, users: map[int64]*userentity.User{}}
}

func (f *fakeRepo) Save(_ context.Context, s *entity.Session) error {
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeRepo) GetWithUser(_ context.Context, token string) (*entity.Session, *userentity.User, error) {
	if f.failGet != nil {
		return nil, nil, f.failGet
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	u, ok := f.users[s.UserID]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	scp, ucp := *s, *u
	return &scp, &ucp, nil
}

func (f *fakeRepo) Delete(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeRepo) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	for id, s := range f.sessions {
		if s.ExpiredAt(time.Now()) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func testService(repo *fakeRepo, now time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCreateIssuesHighEntropyToken(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(repo, now)

	s1, err := svc.Create(context.Background(), 7, time.Hour)
	require.NoError(t, err)
	s2, err := svc.Create(context.Background(), 7, time.Hour)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(s1.ID)
	require.NoError(t, err)
	assert.Len(t, raw, 32, "256 bits of randomness")
	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, now.Add(time.Hour), s1.ExpiresAt)
	assert.Contains(t, repo.sessions, s1.ID)
}

func TestValidateTTLBoundary(t *testing.T) {
	repo := newFakeRepo()
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo.users[7] = &userentity.User{ID: 7, Username: "alice", Role: userentity.RoleUser}

	const T = 600 * time.Second
	svc := testService(repo, created)
	sess, err := svc.Create(context.Background(), 7, T)
	require.NoError(t, err)

	// valid one second before expiry
	svc.now = func() time.Time { return created.Add(T - time.Second) }
	u, err := svc.Validate(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	// invalid exactly at expiry and after
	svc.now = func() time.Time { return created.Add(T) }
	_, err = svc.Validate(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	svc.now = func() time.Time { return created.Add(T + time.Second) }
	_, err = svc.Validate(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	// the expired row was not deleted on read
	assert.Contains(t, repo.sessions, sess.ID)
}

func TestValidateMissingOrEmptyToken(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, time.Now())

	_, err := svc.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = svc.Validate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestValidateStoreFailurePropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.failGet = sql.ErrConnDone
	svc := testService(repo, time.Now())

	_, err := svc.Validate(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession, "a store failure is not an auth failure")
}

func TestDeleteIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, time.Now())

	require.NoError(t, svc.Delete(context.Background(), "gone"))
	require.NoError(t, svc.Delete(context.Background(), "gone"))
	require.NoError(t, svc.Delete(context.Background(), ""))
}

func TestCleanupExpired(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	repo.sessions["live"] = &entity.Session{ID: "live", UserID: 1, ExpiresAt: now.Add(time.Hour)}
	repo.sessions["dead"] = &entity.Session{ID: "dead", UserID: 1, ExpiresAt: now.Add(-time.Hour)}
	svc := testService(repo, now)

	n, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, repo.sessions, "live")
	assert.NotContains(t, repo.sessions, "dead")
}

func TestExtractTokenPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", ExtractToken(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", ExtractToken(r), "cookie wins when both are present")
}

func TestFromBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, FromBearer(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	assert.Empty(t, FromBearer(r))

	r.Header.Set("Authorization", "bearer lowercase-scheme")
	assert.Equal(t, "lowercase-scheme", FromBearer(r))
}
