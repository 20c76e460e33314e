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

	"github.com/vertice-erp/vertice-erp/internal/auth"
	"github.com/vertice-erp/vertice-erp/internal/shared"
)

type stubRepo struct {
	user            *auth.User
	sessionsCreated int
	sessionsDeleted int
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessionsCreated++
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.sessionsDeleted++
	return nil
}

func (s *stubRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := discardLogger()
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func seededUser(t *testing.T) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           42,
		CompanyID:    7,
		Email:        "maria@empresa.com.br",
		Name:         "Maria",
		PasswordHash: string(hash),
		Role:         "admin",
		IsActive:     true,
	}
}

func TestLoginSuccessPopulatesSessionPrincipal(t *testing.T) {
	repo := &stubRepo{user: seededUser(t)}
	handler, sm := newAuthHandler(t, repo)

	body := strings.NewReader(`{"email":"maria@empresa.com.br","password":"correct-horse"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req, sess := withSession(t, sm, req)

	res := httptest.NewRecorder()
	routerFor(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var resp struct {
		User struct {
			ID        int64  `json:"id"`
			CompanyID int64  `json:"company_id"`
			Role      string `json:"role"`
		} `json:"user"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.User.ID)
	assert.Equal(t, int64(7), resp.User.CompanyID)
	assert.Equal(t, "admin", resp.User.Role)
	assert.NotEmpty(t, resp.CSRFToken)

	assert.Equal(t, "42", sess.User())
	assert.Equal(t, "7", sess.Get(shared.SessionKeyCompanyID))
	assert.Equal(t, "admin", sess.Get(shared.SessionKeyRole))
	assert.Equal(t, 1, repo.sessionsCreated)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: seededUser(t)}
	handler, sm := newAuthHandler(t, repo)

	body := strings.NewReader(`{"email":"maria@empresa.com.br","password":"wrong-password"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req, sess := withSession(t, sm, req)

	res := httptest.NewRecorder()
	routerFor(handler).ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, sess.User())
	assert.Equal(t, 0, repo.sessionsCreated)
}

func TestLoginInactiveUserRejected(t *testing.T) {
	user := seededUser(t)
	user.IsActive = false
	handler, sm := newAuthHandler(t, &stubRepo{user: user})

	body := strings.NewReader(`{"email":"maria@empresa.com.br","password":"correct-horse"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	routerFor(handler).ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidationRejectsShortPassword(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})

	body := strings.NewReader(`{"email":"maria@empresa.com.br","password":"curta"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	routerFor(handler).ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{user: seededUser(t)}
	handler, sm := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req, sess := withSession(t, sm, req)
	sess.SetUser("42")

	res := httptest.NewRecorder()
	routerFor(handler).ServeHTTP(res, req)

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, 1, repo.sessionsDeleted)
}
