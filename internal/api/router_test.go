package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"usersvc/internal/api"
	"usersvc/internal/api/handler"
	"usersvc/internal/app/service"
	"usersvc/internal/common"
	"usersvc/internal/domain/repository"
	"usersvc/internal/domain/repository/repotest"
	"usersvc/internal/platform/metrics"
)

type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	AuthToken string          `json:"auth_token"`
	Data      json.RawMessage `json:"data"`
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	handler http.Handler
	users   *repotest.Users
	revoked *repository.MemoryRevocationStore
	metrics *metrics.Metrics
	clock   *clock
}

func newTestServer(t *testing.T, ttl time.Duration, checks ...handler.ReadinessCheck) *testServer {
	t.Helper()
	s := &testServer{
		users:   repotest.NewUsers(),
		revoked: repository.NewMemoryRevocationStore(),
		metrics: metrics.New(),
		clock:   &clock{now: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)},
	}
	authService, err := service.NewAuthService(
		service.AuthConfig{SecretKey: []byte("my_precious"), BcryptCost: bcrypt.MinCost, TokenTTL: ttl},
		s.users, s.revoked,
		service.WithClock(s.clock.Now),
	)
	require.NoError(t, err)
	userService := service.NewUserService(s.users, authService.Hasher(), service.WithClock(s.clock.Now))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.handler = api.NewRouter(authService, userService, checks, logger, s.metrics)
	return s
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (s *testServer) register(t *testing.T, username, email, password string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/auth/register",
		`{"username":"`+username+`","email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusCreated, code, env.Message)
	require.NotEmpty(t, env.AuthToken)
	return env.AuthToken
}

func TestPing(t *testing.T) {
	s := newTestServer(t, time.Hour)
	code, env := s.do(t, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, common.StatusSuccess, env.Status)
	assert.Equal(t, "pong!", env.Message)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, time.Hour)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	ok := handler.ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }}
	down := handler.ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }}

	s := newTestServer(t, time.Hour, ok)
	code, env := s.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"database":"ok"}`, string(env.Data))

	s = newTestServer(t, time.Hour, ok, down)
	code, env = s.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, common.StatusFail, env.Status)
	assert.Equal(t, common.MsgServiceUnavailable, env.Message)
	assert.JSONEq(t, `{"database":"ok","redis":"unavailable"}`, string(env.Data))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, time.Hour)
	s.do(t, http.MethodGet, "/ping", "", "")
	s.do(t, http.MethodGet, "/users/42", "", "")

	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("GET", "/ping", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("GET", "/users/{id}", "404")), 0)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "usersvc_http_requests_total")
}

func TestAddUser(t *testing.T) {
	s := newTestServer(t, time.Hour)

	code, env := s.do(t, http.MethodPost, "/users", `{"username":"michael","email":"michael@mherman.org"}`, "")
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, common.StatusSuccess, env.Status)
	assert.Equal(t, "michael@mherman.org was added!", env.Message)
}

func TestAddUser_Failures(t *testing.T) {
	s := newTestServer(t, time.Hour)
	s.do(t, http.MethodPost, "/users", `{"username":"michael","email":"michael@mherman.org"}`, "")

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty json", body: `{}`, message: common.MsgInvalidPayload},
		{name: "no body", body: "", message: common.MsgInvalidPayload},
		{name: "malformed", body: `{"username":`, message: common.MsgInvalidPayload},
		{name: "no username", body: `{"email":"a@b.c"}`, message: common.MsgInvalidPayload},
		{name: "wrong type", body: `{"username":1,"email":"a@b.c"}`, message: common.MsgInvalidPayload},
		{name: "duplicate email", body: `{"username":"other","email":"michael@mherman.org"}`, message: common.MsgDuplicateEmail},
		{name: "duplicate username", body: `{"username":"michael","email":"other@mherman.org"}`, message: common.MsgDuplicateUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/users", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, common.StatusFail, env.Status)
			assert.Equal(t, tt.message, env.Message)
		})
	}
	assert.Equal(t, 1, s.users.Len())
}

func TestGetUser(t *testing.T) {
	s := newTestServer(t, time.Hour)
	s.do(t, http.MethodPost, "/users", `{"username":"michael","email":"michael@mherman.org"}`, "")

	code, env := s.do(t, http.MethodGet, "/users/1", "", "")
	require.Equal(t, http.StatusOK, code)
	var detail struct {
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "michael", detail.Username)
	assert.Equal(t, "michael@mherman.org", detail.Email)
	assert.False(t, detail.CreatedAt.IsZero())
	assert.NotContains(t, string(env.Data), "password")

	for _, path := range []string{"/users/blah", "/users/999"} {
		code, env := s.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.Equal(t, common.MsgUserNotFoundByID, env.Message, path)
	}
}

func TestListUsers(t *testing.T) {
	s := newTestServer(t, time.Hour)

	code, env := s.do(t, http.MethodGet, "/users", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"users":[]}`, string(env.Data))

	s.do(t, http.MethodPost, "/users", `{"username":"michael","email":"michael@mherman.org"}`, "")
	s.clock.Advance(time.Minute)
	s.do(t, http.MethodPost, "/users", `{"username":"fletcher","email":"fletcher@notreal.com"}`, "")

	code, env = s.do(t, http.MethodGet, "/users", "", "")
	require.Equal(t, http.StatusOK, code)
	var data struct {
		Users []struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Users, 2)
	assert.Equal(t, "fletcher", data.Users[0].Username)
	assert.Equal(t, int64(2), data.Users[0].ID)
	assert.Equal(t, "michael", data.Users[1].Username)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, time.Hour)
	token := s.register(t, "justatest", "test@test.com", "123456")

	code, env := s.do(t, http.MethodGet, "/auth/status", "", token)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"username":"justatest","email":"test@test.com","active":true}`, string(env.Data))

	code, env = s.do(t, http.MethodPost, "/auth/login", `{"email":"test@test.com","password":"123456"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Successfully logged in.", env.Message)
	loginToken := env.AuthToken
	require.NotEmpty(t, loginToken)

	code, env = s.do(t, http.MethodGet, "/auth/logout", "", token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, common.StatusSuccess, env.Status)
	assert.Equal(t, "Successfully logged out.", env.Message)

	code, env = s.do(t, http.MethodGet, "/auth/status", "", token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.MsgTokenInvalid, env.Message)

	code, env = s.do(t, http.MethodGet, "/auth/logout", "", token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.MsgTokenInvalid, env.Message)

	code, _ = s.do(t, http.MethodGet, "/auth/status", "", loginToken)
	assert.Equal(t, http.StatusOK, code)

	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.AuthOperations.WithLabelValues("logout", metrics.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.AuthOperations.WithLabelValues("logout", metrics.OutcomeFailure)), 0)
}

func TestRegister_Failures(t *testing.T) {
	s := newTestServer(t, time.Hour)
	s.register(t, "test", "test@test.com", "test")

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty json", body: `{}`, message: common.MsgInvalidPayload},
		{name: "no username", body: `{"email":"a@b.c","password":"pw"}`, message: common.MsgInvalidPayload},
		{name: "no email", body: `{"username":"a","password":"pw"}`, message: common.MsgInvalidPayload},
		{name: "no password", body: `{"username":"a","email":"a@b.c"}`, message: common.MsgInvalidPayload},
		{name: "duplicate email", body: `{"username":"other","email":"test@test.com","password":"pw"}`, message: common.MsgDuplicateUser},
		{name: "duplicate username", body: `{"username":"test","email":"other@test.com","password":"pw"}`, message: common.MsgDuplicateUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, common.StatusFail, env.Status)
			assert.Equal(t, tt.message, env.Message)
			assert.Empty(t, env.AuthToken)
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t, time.Hour)
	s.register(t, "test", "test@test.com", "test")

	tests := []struct {
		name    string
		body    string
		code    int
		message string
	}{
		{name: "unknown user", body: `{"email":"nobody@test.com","password":"test"}`, code: http.StatusNotFound, message: common.MsgUserNotFound},
		{name: "wrong password", body: `{"email":"test@test.com","password":"wrong"}`, code: http.StatusBadRequest, message: common.MsgInvalidCredentials},
		{name: "empty json", body: `{}`, code: http.StatusBadRequest, message: common.MsgInvalidPayload},
		{name: "malformed", body: `nope`, code: http.StatusBadRequest, message: common.MsgInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/auth/login", tt.body, "")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

func TestMissingBearer(t *testing.T) {
	s := newTestServer(t, time.Hour)

	code, env := s.do(t, http.MethodGet, "/auth/logout", "", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, common.MsgTokenMissing, env.Message)

	code, env = s.do(t, http.MethodGet, "/auth/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.MsgTokenMissing, env.Message)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidAndExpiredTokens(t *testing.T) {
	s := newTestServer(t, time.Hour)
	token := s.register(t, "test", "test@test.com", "test")

	code, env := s.do(t, http.MethodGet, "/auth/status", "", "invalid")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.MsgTokenInvalid, env.Message)

	s.clock.Advance(2 * time.Hour)
	for _, path := range []string{"/auth/status", "/auth/logout"} {
		code, env := s.do(t, http.MethodGet, path, "", token)
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, common.MsgTokenExpired, env.Message, path)
	}
}

func TestNegativeTTL(t *testing.T) {
	s := newTestServer(t, -time.Second)
	token := s.register(t, "test", "test@test.com", "test")

	code, env := s.do(t, http.MethodGet, "/auth/logout", "", token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.MsgTokenExpired, env.Message)
}

func TestStorageFailures(t *testing.T) {
	s := newTestServer(t, time.Hour)

	s.users.Err = common.StorageError("List", errors.New("connection refused"))
	code, env := s.do(t, http.MethodGet, "/users", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, common.MsgServiceUnavailable, env.Message)

	s.users.Err = errors.New("boom")
	code, env = s.do(t, http.MethodPost, "/auth/register", `{"username":"a","email":"a@b.c","password":"pw"}`, "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, common.MsgInternalServerError, env.Message)
	assert.NotContains(t, env.Message, "boom")
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.AuthOperations.WithLabelValues("register", metrics.OutcomeError)), 0)
}
