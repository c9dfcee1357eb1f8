package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/session/repo"
	userentity "github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/database/databasetest"
)

func newTestService(t *testing.T) (*Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(repo.NewSessionRepo(databasetest.New(t)), clock, time.Hour)
	require.NoError(t, svc.EnsureTable(context.Background()))
	return svc, clock
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	sess, err := svc.Issue(ctx, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, clock.Now().Add(time.Hour), sess.ExpiresAt)

	got, err := svc.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)

	_, err = svc.Validate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = svc.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestValidateExpired(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	sess, err := svc.Issue(ctx, 7)
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)
	_, err = svc.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNoSession)

	// the expired row was removed on sight
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	b, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	c, err := svc.Issue(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, a.Token))
	_, err = svc.Validate(ctx, a.Token)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, svc.RevokeUser(ctx, 1))
	_, err = svc.Validate(ctx, b.Token)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = svc.Validate(ctx, c.Token)
	assert.NoError(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req, "sid"))

	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", TokenFromRequest(req, "sid"))

	req.AddCookie(&http.Cookie{Name: "sid", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(req, "sid"))
}

func TestLoggedInAndCan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	users := map[int64]*userentity.SanitizedUser{
		1: {ID: 1, Username: "admin@example.com", Activities: []string{"view-users"}},
	}
	load := func(_ context.Context, id int64) (*userentity.SanitizedUser, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		if id == 99 {
			return nil, errors.New("db down")
		}
		return nil, ErrUnknownUser
	}

	var seen *userentity.SanitizedUser
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	guard := func(activity string) http.Handler {
		return LoggedIn(svc, load, "sid", zap.NewNop().Sugar())(Can(activity)(final))
	}

	call := func(token, activity string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: "sid", Value: token})
		}
		rec := httptest.NewRecorder()
		guard(activity).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call("", "view-users"))

	good, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, call(good.Token, "view-users"))
	require.NotNil(t, seen)
	assert.Equal(t, int64(1), seen.ID)
	assert.Equal(t, http.StatusForbidden, call(good.Token, "delete-users"))

	gone, err := svc.Issue(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(gone.Token, "view-users"))
	_, err = svc.Validate(ctx, gone.Token)
	assert.ErrorIs(t, err, ErrNoSession, "session of a deleted user is revoked")

	broken, err := svc.Issue(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, call(broken.Token, "view-users"))
}

func TestLoggedInStoreFailure(t *testing.T) {
	ctx := context.Background()
	db := databasetest.New(t)
	svc := NewService(repo.NewSessionRepo(db), clockwork.NewFakeClock(), time.Hour)
	require.NoError(t, svc.EnsureTable(ctx))

	sess, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = svc.Validate(ctx, sess.Token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)

	load := func(context.Context, int64) (*userentity.SanitizedUser, error) {
		t.Fatal("user loaded without a session")
		return nil, nil
	}
	h := LoggedIn(svc, load, "sid", zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "sid", &Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, true)
	ClearCookie(rec, "sid", true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
