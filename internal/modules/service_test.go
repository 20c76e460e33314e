package modules

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	modules map[int64]Module
	tabs    map[int64]SubModule
	nextID  int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{modules: map[int64]Module{}, tabs: map[int64]SubModule{}, nextID: 1}
}

func (m *mockRepo) ListModules(context.Context) ([]Module, error) {
	var out []Module
	for _, mod := range m.modules {
		out = append(out, mod)
	}
	return out, nil
}

func (m *mockRepo) ListSubModules(context.Context) ([]SubModule, error) {
	var out []SubModule
	for _, t := range m.tabs {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepo) GetModule(_ context.Context, id int64) (Module, error) {
	mod, ok := m.modules[id]
	if !ok {
		return Module{}, ErrNotFound
	}
	return mod, nil
}

func (m *mockRepo) CreateModule(_ context.Context, mod Module) (Module, error) {
	for _, existing := range m.modules {
		if existing.RoutePath == mod.RoutePath {
			return Module{}, ErrDuplicateRoute
		}
	}
	mod.ID = m.nextID
	mod.IsActive = true
	m.modules[mod.ID] = mod
	m.nextID++
	return mod, nil
}

func (m *mockRepo) UpdateModule(_ context.Context, id int64, name, category string, isActive bool) (Module, error) {
	mod, ok := m.modules[id]
	if !ok {
		return Module{}, ErrNotFound
	}
	mod.Name = name
	mod.Category = category
	mod.IsActive = isActive
	m.modules[id] = mod
	return mod, nil
}

func (m *mockRepo) UpdateSubModule(_ context.Context, id int64, name string, sortOrder int, isActive bool) (SubModule, error) {
	t, ok := m.tabs[id]
	if !ok {
		return SubModule{}, ErrNotFound
	}
	t.Name = name
	t.SortOrder = sortOrder
	t.IsActive = isActive
	m.tabs[id] = t
	return t, nil
}

type countingBumper struct{ calls int }

func (b *countingBumper) Bump(context.Context) error {
	b.calls++
	return nil
}

func newTestService(repo *mockRepo, bumper *countingBumper) *Service {
	return NewService(repo, nil, bumper, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListCollatesPortugueseNames(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &countingBumper{})

	for _, name := range []string{"Vendas", "Águas", "Producao", "Estoque"} {
		_, err := svc.Create(context.Background(), 1, "/"+name, name, "", false)
		require.NoError(t, err)
	}

	catalog, err := svc.List(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(catalog))
	for _, entry := range catalog {
		names = append(names, entry.Module.Name)
	}
	// Byte order would push "Águas" after "Vendas".
	assert.Equal(t, []string{"Águas", "Estoque", "Producao", "Vendas"}, names)
}

func TestListGroupsTabsUnderModules(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &countingBumper{})

	mod, err := svc.Create(context.Background(), 1, "/pedidos", "Pedidos", "vendas", false)
	require.NoError(t, err)
	repo.tabs[10] = SubModule{ID: 10, ModuleID: mod.ID, TabKey: "aguardando", Name: "Aguardando", SortOrder: 1, IsActive: true}
	repo.tabs[11] = SubModule{ID: 11, ModuleID: mod.ID, TabKey: "em_producao", Name: "Em Producao", SortOrder: 2, IsActive: true}

	catalog, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Len(t, catalog[0].Tabs, 2)
}

func TestCreateNormalisesRoute(t *testing.T) {
	repo := newMockRepo()
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	m, err := svc.Create(context.Background(), 1, "Financeiro/", "Financeiro", "", false)
	require.NoError(t, err)
	assert.Equal(t, "/financeiro", m.RoutePath)
	assert.Equal(t, 1, bumper.calls)
}

func TestUpdateCoreModuleCannotDeactivate(t *testing.T) {
	repo := newMockRepo()
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	m, err := svc.Create(context.Background(), 1, "/configuracoes", "Configuracoes", "", true)
	require.NoError(t, err)
	bumper.calls = 0

	_, err = svc.Update(context.Background(), 1, m.ID, "Configuracoes", "", false)
	assert.ErrorIs(t, err, ErrCoreImmutable)
	assert.Zero(t, bumper.calls)
}

func TestUpdateTabBumpsSnapshots(t *testing.T) {
	repo := newMockRepo()
	repo.tabs[10] = SubModule{ID: 10, ModuleID: 1, TabKey: "aguardando", Name: "Aguardando", SortOrder: 1, IsActive: true}
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	sm, err := svc.UpdateTab(context.Background(), 1, 10, "Aguardando", 5, false)
	require.NoError(t, err)
	assert.False(t, sm.IsActive)
	assert.Equal(t, 5, sm.SortOrder)
	assert.Equal(t, 1, bumper.calls)
}
