package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	_ "github.com/meridian-crm/meridian-crm/testing"
)

type stubRepo struct {
	user  *auth.User
	roles []string

	createdSessions []string
	deletedSessions []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	return s.roles, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.createdSessions = append(s.createdSessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deletedSessions = append(s.deletedSessions, id)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessionManager)
	return handler, sessionManager
}

func loginRequest(t *testing.T, sessionManager *shared.SessionManager, body string) (*http.Request, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestLoginSuccess(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{
		user:  &auth.User{ID: 7, Email: "agent@meridian.local", Name: "Agent", PasswordHash: string(hashed), IsActive: true},
		roles: []string{"sales_agent"},
	}
	handler, sessionManager := newAuthHandler(t, repo)

	req, sess := loginRequest(t, sessionManager, `{"email":"agent@meridian.local","password":"correct-password"}`)
	res := httptest.NewRecorder()
	handler.LoginForTest(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var payload struct {
		UserID int64    `json:"user_id"`
		Roles  []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.EqualValues(t, 7, payload.UserID)
	assert.Equal(t, []string{"sales_agent"}, payload.Roles)

	// The session now carries the identity the authorization engine trusts.
	assert.Equal(t, "7", sess.User())
	assert.Equal(t, []string{"sales_agent"}, sess.Roles())
	assert.Equal(t, []string{sess.ID}, repo.createdSessions)
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{
		user: &auth.User{ID: 7, Email: "agent@meridian.local", PasswordHash: string(hashed), IsActive: true},
	}
	handler, sessionManager := newAuthHandler(t, repo)

	req, sess := loginRequest(t, sessionManager, `{"email":"agent@meridian.local","password":"wrong-password"}`)
	res := httptest.NewRecorder()
	handler.LoginForTest(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, sess.User())
}

func TestLoginInactiveAccount(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{
		user: &auth.User{ID: 7, Email: "agent@meridian.local", PasswordHash: string(hashed), IsActive: false},
	}
	handler, sessionManager := newAuthHandler(t, repo)

	req, _ := loginRequest(t, sessionManager, `{"email":"agent@meridian.local","password":"correct-password"}`)
	res := httptest.NewRecorder()
	handler.LoginForTest(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginMalformedBody(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	req, _ := loginRequest(t, sessionManager, `{"email":`)
	res := httptest.NewRecorder()
	handler.LoginForTest(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutRemovesSession(t *testing.T) {
	repo := &stubRepo{}
	handler, sessionManager := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("7")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.LogoutForTest(res, req)

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, []string{sess.ID}, repo.deletedSessions)
}
