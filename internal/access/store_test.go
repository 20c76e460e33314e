package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertice-erp/vertice-erp/internal/observability"
)

func newCachedStore(t *testing.T, repo Repository) *SnapshotStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSnapshotStore(repo, client, nil, nil, time.Minute, time.Second)
}

func TestSnapshotIsCachedUntilInvalidated(t *testing.T) {
	modules, tabs := catalogFixture()
	repo := &mockRepository{
		role:    RoleUser,
		modules: modules,
		tabs:    tabs,
		profile: &AccessProfile{ID: 5, CompanyID: 1, Name: "Operacional", IsActive: true},
		grants:  []ModulePermission{{ModuleID: 1, CanView: true}},
	}
	store := newCachedStore(t, repo)
	principal := Principal{ID: 3, CompanyID: 1, Role: RoleUser}

	snap, err := store.Get(context.Background(), principal)
	require.NoError(t, err)
	assert.True(t, snap.HasRoute("/pedidos"))
	loads := repo.loadCount.Load()

	// Permission revoked in the repository, but the cached snapshot keeps
	// answering until the explicit refresh.
	repo.grants = nil
	snap, err = store.Get(context.Background(), principal)
	require.NoError(t, err)
	assert.True(t, snap.HasRoute("/pedidos"))
	assert.Equal(t, loads, repo.loadCount.Load())

	require.NoError(t, store.Invalidate(context.Background(), principal.ID))
	snap, err = store.Get(context.Background(), principal)
	require.NoError(t, err)
	assert.False(t, snap.HasRoute("/pedidos"))
	assert.Greater(t, repo.loadCount.Load(), loads)
}

func TestBumpInvalidatesAllSnapshots(t *testing.T) {
	modules, tabs := catalogFixture()
	repo := &mockRepository{role: RoleAdmin, modules: modules, tabs: tabs}
	store := newCachedStore(t, repo)

	alice := Principal{ID: 1, CompanyID: 1, Role: RoleAdmin}
	bob := Principal{ID: 2, CompanyID: 1, Role: RoleAdmin}
	_, err := store.Get(context.Background(), alice)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), bob)
	require.NoError(t, err)
	loads := repo.loadCount.Load()

	require.NoError(t, store.Bump(context.Background()))

	_, err = store.Get(context.Background(), alice)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), bob)
	require.NoError(t, err)
	assert.Greater(t, repo.loadCount.Load(), loads)
}

func TestSnapshotSurvivesCacheRoundTrip(t *testing.T) {
	modules, tabs := catalogFixture()
	repo := &mockRepository{
		role:      RoleUser,
		modules:   modules,
		tabs:      tabs,
		profile:   &AccessProfile{ID: 5, CompanyID: 1, Name: "Operacional", IsActive: true},
		grants:    []ModulePermission{{ModuleID: 1, CanView: true}},
		tabGrants: []int64{10},
	}
	store := newCachedStore(t, repo)
	principal := Principal{ID: 3, CompanyID: 1, Role: RoleUser}

	_, err := store.Get(context.Background(), principal)
	require.NoError(t, err)

	// Second read decodes from Redis; derived indexes must rebuild.
	snap, err := store.Get(context.Background(), principal)
	require.NoError(t, err)
	assert.True(t, snap.HasRoute("/pedidos"))
	assert.True(t, snap.HasTab("/pedidos", "aguardando"))
	assert.False(t, snap.HasTab("/pedidos", "em_producao"))
	first, ok := snap.FirstAllowedTab("/pedidos")
	require.True(t, ok)
	assert.Equal(t, "aguardando", first)
}

func TestStoreWorksWithoutRedis(t *testing.T) {
	modules, tabs := catalogFixture()
	repo := &mockRepository{role: RoleAdmin, modules: modules, tabs: tabs}
	store := NewSnapshotStore(repo, nil, nil, nil, time.Minute, time.Second)

	snap, err := store.Get(context.Background(), Principal{ID: 1, CompanyID: 1, Role: RoleAdmin})
	require.NoError(t, err)
	assert.True(t, snap.HasRoute("/financeiro"))
	require.NoError(t, store.Invalidate(context.Background(), 1))
	require.NoError(t, store.Bump(context.Background()))
}

// A published snapshot is shared by every waiter of a collapsed load, so
// evaluating it from many goroutines at once must be safe under -race.
func TestConcurrentEvaluationOnSharedSnapshot(t *testing.T) {
	modules, tabs := catalogFixture()
	repo := &mockRepository{
		role:      RoleUser,
		modules:   modules,
		tabs:      tabs,
		profile:   &AccessProfile{ID: 5, CompanyID: 1, Name: "Operacional", IsActive: true},
		grants:    []ModulePermission{{ModuleID: 1, CanView: true}},
		tabGrants: []int64{10},
	}
	store := NewSnapshotStore(repo, nil, nil, nil, time.Minute, time.Second)
	ev := NewEvaluator(store, nil, nil)
	principal := Principal{ID: 3, CompanyID: 1, Role: RoleUser}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx := context.Background()
			switch n % 3 {
			case 0:
				assert.True(t, ev.HasAccess(ctx, principal, "/pedidos"))
			case 1:
				assert.Equal(t, []string{"/", "/configuracoes", "/pedidos"}, ev.AllowedRoutes(ctx, principal))
			default:
				first, ok := ev.FirstAllowedTab(ctx, principal, "/pedidos")
				assert.True(t, ok)
				assert.Equal(t, "aguardando", first)
			}
		}(i)
	}
	wg.Wait()
}

func TestSnapshotLoadCountsOneMissPerLoad(t *testing.T) {
	modules, tabs := catalogFixture()
	repo := &mockRepository{role: RoleAdmin, modules: modules, tabs: tabs}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	metrics := observability.NewMetrics()
	store := NewSnapshotStore(repo, client, nil, metrics, time.Minute, time.Second)
	principal := Principal{ID: 1, CompanyID: 1, Role: RoleAdmin}

	_, err := store.Get(context.Background(), principal)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), principal)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `vertice_access_snapshot_loads_total{result="miss"} 1`)
	assert.Contains(t, body, `vertice_access_snapshot_loads_total{result="hit"} 1`)
}

// The request that triggers a load may be cancelled the moment the load
// resolves; the snapshot must still reach the cache.
type cancellingRepo struct {
	*mockRepository
	cancel context.CancelFunc
}

func (r *cancellingRepo) FetchRole(ctx context.Context, userID int64) (Role, error) {
	r.cancel()
	return r.mockRepository.FetchRole(ctx, userID)
}

func TestSnapshotCachedDespiteCallerCancellation(t *testing.T) {
	modules, tabs := catalogFixture()
	inner := &mockRepository{role: RoleAdmin, modules: modules, tabs: tabs}
	ctx, cancel := context.WithCancel(context.Background())
	repo := &cancellingRepo{mockRepository: inner, cancel: cancel}
	store := newCachedStore(t, repo)
	principal := Principal{ID: 1, CompanyID: 1, Role: RoleAdmin}

	snap, err := store.Get(ctx, principal)
	require.NoError(t, err)
	assert.True(t, snap.HasRoute("/pedidos"))
	loads := inner.loadCount.Load()

	snap, err = store.Get(context.Background(), principal)
	require.NoError(t, err)
	assert.True(t, snap.HasRoute("/pedidos"))
	assert.Equal(t, loads, inner.loadCount.Load())
}
