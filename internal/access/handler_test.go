package access_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertice-erp/vertice-erp/internal/access"
	"github.com/vertice-erp/vertice-erp/internal/shared"
)

type staticRepo struct {
	role      access.Role
	profile   *access.AccessProfile
	grants    []access.ModulePermission
	modules   []access.Module
	tabs      []access.SubModule
	tabGrants []int64
}

func (s *staticRepo) FetchRole(ctx context.Context, userID int64) (access.Role, error) {
	return s.role, nil
}

func (s *staticRepo) FetchProfile(ctx context.Context, userID int64) (*access.AccessProfile, error) {
	return s.profile, nil
}

func (s *staticRepo) FetchProfileModulePermissions(ctx context.Context, profileID int64) ([]access.ModulePermission, error) {
	return s.grants, nil
}

func (s *staticRepo) FetchActiveModules(ctx context.Context) ([]access.Module, error) {
	return s.modules, nil
}

func (s *staticRepo) FetchActiveSubModules(ctx context.Context) ([]access.SubModule, error) {
	return s.tabs, nil
}

func (s *staticRepo) FetchUserTabPermissions(ctx context.Context, userID int64) ([]int64, error) {
	return s.tabGrants, nil
}

func newTestRouter(t *testing.T, repo access.Repository) (*chi.Mux, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	store := access.NewSnapshotStore(repo, client, nil, nil, time.Minute, time.Second)
	evaluator := access.NewEvaluator(store, nil, nil)
	handler := access.NewHandler(nil, evaluator)

	r := chi.NewRouter()
	r.Route("/access", handler.MountRoutes)
	return r, sessions
}

func requestAs(t *testing.T, sessions *shared.SessionManager, method, target string, principal *access.Principal) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if principal != nil {
		sess.SetUser(strconv.FormatInt(principal.ID, 10))
		sess.Set(shared.SessionKeyCompanyID, strconv.FormatInt(principal.CompanyID, 10))
		sess.Set(shared.SessionKeyRole, string(principal.Role))
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestAllowedRoutesEndpoint(t *testing.T) {
	router, sessions := newTestRouter(t, &staticRepo{
		role: access.RoleUser,
		modules: []access.Module{
			{ID: 1, RoutePath: "/pedidos", IsActive: true},
			{ID: 2, RoutePath: "/financeiro", IsActive: true},
		},
		profile: &access.AccessProfile{ID: 5, CompanyID: 1, Name: "Operacional", IsActive: true},
		grants:  []access.ModulePermission{{ModuleID: 1, CanView: true}},
	})

	principal := &access.Principal{ID: 3, CompanyID: 1, Role: access.RoleUser}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, requestAs(t, sessions, http.MethodGet, "/access/routes", principal))

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Routes []string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, []string{"/", "/configuracoes", "/pedidos"}, body.Routes)
}

func TestAllowedRoutesUnauthenticatedReturnsBaseline(t *testing.T) {
	router, sessions := newTestRouter(t, &staticRepo{role: access.RoleUser})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, requestAs(t, sessions, http.MethodGet, "/access/routes", nil))

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Routes []string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, []string{"/", "/configuracoes"}, body.Routes)
}

func TestCheckEndpoint(t *testing.T) {
	router, sessions := newTestRouter(t, &staticRepo{
		role:    access.RoleUser,
		modules: []access.Module{{ID: 1, RoutePath: "/pedidos", IsActive: true}},
		profile: &access.AccessProfile{ID: 5, CompanyID: 1, Name: "Operacional", IsActive: true},
		grants:  []access.ModulePermission{{ModuleID: 1, CanView: true}},
	})
	principal := &access.Principal{ID: 3, CompanyID: 1, Role: access.RoleUser}

	for route, want := range map[string]bool{"/pedidos": true, "/financeiro": false} {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, requestAs(t, sessions, http.MethodGet, "/access/check?route="+route, principal))
		require.Equal(t, http.StatusOK, res.Code)
		var body struct {
			Allowed bool `json:"allowed"`
		}
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
		assert.Equal(t, want, body.Allowed, "route %s", route)
	}
}

func TestCheckEndpointRequiresRouteParam(t *testing.T) {
	router, sessions := newTestRouter(t, &staticRepo{role: access.RoleUser})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, requestAs(t, sessions, http.MethodGet, "/access/check", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestTabsEndpoint(t *testing.T) {
	router, sessions := newTestRouter(t, &staticRepo{
		role:    access.RoleUser,
		modules: []access.Module{{ID: 1, RoutePath: "/pedidos", IsActive: true}},
		tabs: []access.SubModule{
			{ID: 10, ModuleID: 1, TabKey: "aguardando", SortOrder: 1, IsActive: true},
			{ID: 11, ModuleID: 1, TabKey: "em_producao", SortOrder: 2, IsActive: true},
		},
		profile:   &access.AccessProfile{ID: 5, CompanyID: 1, Name: "Operacional", IsActive: true},
		grants:    []access.ModulePermission{{ModuleID: 1, CanView: true}},
		tabGrants: []int64{11},
	})
	principal := &access.Principal{ID: 3, CompanyID: 1, Role: access.RoleUser}

	res := httptest.NewRecorder()
	router.ServeHTTP(res, requestAs(t, sessions, http.MethodGet, "/access/tabs?module=/pedidos", principal))

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Tabs []struct {
			Key string `json:"key"`
		} `json:"tabs"`
		First *string `json:"first"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Tabs, 1)
	assert.Equal(t, "em_producao", body.Tabs[0].Key)
	require.NotNil(t, body.First)
	assert.Equal(t, "em_producao", *body.First)
}

func TestRefreshEndpoint(t *testing.T) {
	router, sessions := newTestRouter(t, &staticRepo{role: access.RoleUser})
	principal := &access.Principal{ID: 3, CompanyID: 1, Role: access.RoleUser}

	res := httptest.NewRecorder()
	router.ServeHTTP(res, requestAs(t, sessions, http.MethodPost, "/access/refresh", principal))
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, requestAs(t, sessions, http.MethodPost, "/access/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
