package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd"
	apdrepo "github.com/ovaphlow/pitchfork/service-apd/internal/apd/repo"
	"github.com/ovaphlow/pitchfork/service-apd/internal/auth"
	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole"
	rolerepo "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/repo"
	"github.com/ovaphlow/pitchfork/service-apd/internal/config"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-apd/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-apd/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/database/databasetest"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/utilities"
)

const adminPassword = "Tr0ub4dor&3-hiking-maple-lantern"

type testServer struct {
	handler http.Handler
	users   *user.UserService
	clock   *clockwork.FakeClock
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	ctx := context.Background()
	db := databasetest.New(t)
	logger := zap.NewNop().Sugar()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC))
	ids, err := utilities.NewIDGenerator(2)
	require.NoError(t, err)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	roles := authrole.NewService(rolerepo.NewRepo(db))
	users := user.NewUserService(userrepo.NewUserRepo(db), roles, hasher, ids, logger)
	sessions := session.NewService(sessionrepo.NewSessionRepo(db), clock, time.Hour)
	apds := apd.NewService(apdrepo.NewAPDRepo(db), ids, clock, logger)
	require.NoError(t, roles.EnsureTable(ctx))
	require.NoError(t, users.EnsureTable(ctx))
	require.NoError(t, sessions.EnsureTable(ctx))
	require.NoError(t, apds.EnsureTable(ctx))

	secret, err := auth.NewRandomSecret()
	require.NoError(t, err)
	nonces, err := auth.NewNonceSigner(secret, 3*time.Second, clock)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	authenticator := auth.NewAuthenticator(nonces, users, hasher,
		auth.WithClock(clock),
		auth.WithMetrics(auth.NewMetrics(reg)),
		auth.WithPolicy(func() config.LockoutPolicy { return config.DefaultLockoutPolicy }),
	)

	email, pw, role, state := "admin@example.com", adminPassword, "admin", "ak"
	_, err = users.CreateUser(ctx, userentity.Changes{Email: &email, Password: &pw, AuthRole: &role, StateID: &state})
	require.NoError(t, err)

	h := New(Deps{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Clock:    clock,
		Users:    users,
		Roles:    roles,
		Sessions: sessions,
		Auth:     authenticator,
		APDs:     apds,
		Ping:     db.PingContext,
	})
	return &testServer{handler: h, users: users, clock: clock}
}

func defaultConfig() config.Config {
	return config.Config{
		CORSOrigins:        "*",
		SessionCookie:      "apd_session",
		LoginRatePerMinute: 600,
		LoginBurst:         100,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login/nonce", `{"username":"`+username+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var n struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	require.NotEmpty(t, n.Nonce)

	body, err := json.Marshal(map[string]string{"nonce": n.Nonce, "password": password})
	require.NoError(t, err)
	return s.do(t, http.MethodPost, "/auth/login", string(body))
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "apd_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, defaultConfig())

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apd_http_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, defaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t, defaultConfig())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/me", "").Code)

	rec := s.login(t, "Admin@Example.com", adminPassword)
	require.Equal(t, http.StatusOK, rec.Code)
	var u map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "admin@example.com", u["username"])
	assert.NotContains(t, u, "password")
	assert.NotContains(t, u, "failed_logons")
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	rec = s.do(t, http.MethodGet, "/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin@example.com")

	rec = s.do(t, http.MethodGet, "/users", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/roles", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/me", "", cookie).Code)
}

func TestLoginRejectionIsGeneric(t *testing.T) {
	s := newTestServer(t, defaultConfig())

	wrong := s.login(t, "admin@example.com", "nope")
	unknown := s.login(t, "ghost@example.com", "nope")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	rec := s.do(t, http.MethodPost, "/auth/login", `{"nonce":"forged","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateUserOverHTTP(t *testing.T) {
	s := newTestServer(t, defaultConfig())
	cookie := sessionCookie(t, s.login(t, "admin@example.com", adminPassword))

	rec := s.do(t, http.MethodPost, "/users", `{"email":"a@b.com"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"add-account.invalid"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/users", `{"email":"staff@ak.gov","password":"`+adminPassword+`","role":"state-staff","state":"ak","ignored":"x"}`, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/users", `{"email":"STAFF@ak.gov","password":"`+adminPassword+`"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"add-account.email-exists"}`, rec.Body.String())

	staff := sessionCookie(t, s.login(t, "staff@ak.gov", adminPassword))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/users", "", staff).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/apds", "", staff).Code)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	cfg := defaultConfig()
	cfg.LoginRatePerMinute = 1
	cfg.LoginBurst = 2
	s := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, s.do(t, http.MethodPost, "/auth/login/nonce", `{"username":"x@example.com"}`).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// other routes are not throttled
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)

	s.clock.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/login/nonce", `{"username":"x@example.com"}`).Code)
}

func TestClientLimiterSweepsIdleClients(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := newClientLimiter(60, 1, clock)
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))

	clock.Advance(11 * time.Minute)
	assert.True(t, l.allow("10.0.0.2"))
	l.mu.Lock()
	_, kept := l.limiters["10.0.0.1"]
	l.mu.Unlock()
	assert.False(t, kept)
}
