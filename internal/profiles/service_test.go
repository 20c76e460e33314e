package profiles

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	profiles map[int64]Profile
	grants   map[int64][]ModuleGrant
	refs     []ModuleRef
	assigned map[int64]int64
	nextID   int64

	replaceErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		profiles: map[int64]Profile{},
		grants:   map[int64][]ModuleGrant{},
		assigned: map[int64]int64{},
		nextID:   1,
	}
}

func (m *mockRepo) List(_ context.Context, companyID int64) ([]Profile, error) {
	var out []Profile
	for _, p := range m.profiles {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) Get(_ context.Context, companyID, id int64) (Profile, error) {
	p, ok := m.profiles[id]
	if !ok || p.CompanyID != companyID {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Create(_ context.Context, companyID int64, name string, isAdmin bool) (Profile, error) {
	for _, p := range m.profiles {
		if p.CompanyID == companyID && p.Name == name {
			return Profile{}, ErrDuplicateName
		}
	}
	p := Profile{ID: m.nextID, CompanyID: companyID, Name: name, IsAdmin: isAdmin, IsActive: true}
	m.profiles[p.ID] = p
	m.nextID++
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, companyID, id int64, name string, isAdmin, isActive bool) (Profile, error) {
	p, ok := m.profiles[id]
	if !ok || p.CompanyID != companyID {
		return Profile{}, ErrNotFound
	}
	p.Name = name
	p.IsAdmin = isAdmin
	p.IsActive = isActive
	m.profiles[id] = p
	return p, nil
}

func (m *mockRepo) Delete(_ context.Context, companyID, id int64) error {
	p, ok := m.profiles[id]
	if !ok || p.CompanyID != companyID {
		return ErrNotFound
	}
	delete(m.profiles, id)
	delete(m.grants, id)
	return nil
}

func (m *mockRepo) AssignedUserCount(_ context.Context, id int64) (int64, error) {
	return m.assigned[id], nil
}

func (m *mockRepo) ListGrants(_ context.Context, profileID int64) ([]ModuleGrant, error) {
	return m.grants[profileID], nil
}

func (m *mockRepo) ReplaceGrants(_ context.Context, profileID int64, grants []ModuleGrant) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.grants[profileID] = grants
	return nil
}

func (m *mockRepo) ListModuleRefs(_ context.Context) ([]ModuleRef, error) {
	return m.refs, nil
}

type countingBumper struct{ calls int }

func (b *countingBumper) Bump(context.Context) error {
	b.calls++
	return nil
}

func newTestService(repo *mockRepo, bumper *countingBumper) *Service {
	return NewService(repo, nil, bumper, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateAndGetProfile(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &countingBumper{})

	created, err := svc.Create(context.Background(), 1, 10, "Vendas", false)
	require.NoError(t, err)
	assert.Equal(t, "Vendas", created.Name)
	assert.True(t, created.IsActive)

	got, grants, err := svc.Get(context.Background(), 10, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Empty(t, grants)
}

func TestGetProfileScopedToCompany(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &countingBumper{})

	created, err := svc.Create(context.Background(), 1, 10, "Vendas", false)
	require.NoError(t, err)

	_, _, err = svc.Get(context.Background(), 99, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAssignedProfileRejected(t *testing.T) {
	repo := newMockRepo()
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	created, err := svc.Create(context.Background(), 1, 10, "Financeiro", false)
	require.NoError(t, err)
	repo.assigned[created.ID] = 3

	err = svc.Delete(context.Background(), 1, 10, created.ID)
	assert.ErrorIs(t, err, ErrInUse)
	assert.Zero(t, bumper.calls)

	_, _, err = svc.Get(context.Background(), 10, created.ID)
	assert.NoError(t, err)
}

func TestDeleteUnassignedProfileBumpsSnapshots(t *testing.T) {
	repo := newMockRepo()
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	created, err := svc.Create(context.Background(), 1, 10, "Temporario", false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 1, 10, created.ID))
	assert.Equal(t, 1, bumper.calls)
}

func TestSetModuleGrantsForcesCoreModules(t *testing.T) {
	repo := newMockRepo()
	repo.refs = []ModuleRef{
		{ID: 1, IsCore: true, IsActive: true},
		{ID: 2, IsCore: false, IsActive: true},
		{ID: 3, IsCore: true, IsActive: false},
	}
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	created, err := svc.Create(context.Background(), 1, 10, "Operacional", false)
	require.NoError(t, err)

	final, err := svc.SetModuleGrants(context.Background(), 1, 10, created.ID, []ModuleGrant{
		{ModuleID: 2, CanView: true, CanEdit: true},
	})
	require.NoError(t, err)

	byID := map[int64]ModuleGrant{}
	for _, g := range final {
		byID[g.ModuleID] = g
	}
	require.Contains(t, byID, int64(1), "active core module must keep a view grant")
	assert.True(t, byID[1].CanView)
	assert.True(t, byID[2].CanEdit)
	assert.NotContains(t, byID, int64(3), "inactive core module is not forced in")
	assert.Equal(t, 1, bumper.calls)
}

func TestSetModuleGrantsUnknownModule(t *testing.T) {
	repo := newMockRepo()
	repo.refs = []ModuleRef{{ID: 1, IsCore: false, IsActive: true}}
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	created, err := svc.Create(context.Background(), 1, 10, "Operacional", false)
	require.NoError(t, err)

	_, err = svc.SetModuleGrants(context.Background(), 1, 10, created.ID, []ModuleGrant{{ModuleID: 42, CanView: true}})
	assert.ErrorIs(t, err, ErrUnknownModule)
	assert.Zero(t, bumper.calls)
}

func TestUpdateProfileBumpsSnapshots(t *testing.T) {
	repo := newMockRepo()
	bumper := &countingBumper{}
	svc := newTestService(repo, bumper)

	created, err := svc.Create(context.Background(), 1, 10, "Vendas", false)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), 1, 10, created.ID, "Vendas", false, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 1, bumper.calls)
}
