package users

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockRepo struct {
	users     map[int64]User
	passwords map[int64]string
	tabGrants map[int64][]int64
	tabRefs   []TabRef
	profiles  map[int64]int64 // profile id -> company id
	nextID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		users:     map[int64]User{},
		passwords: map[int64]string{},
		tabGrants: map[int64][]int64{},
		profiles:  map[int64]int64{},
		nextID:    1,
	}
}

func (m *mockRepo) List(_ context.Context, companyID int64) ([]User, error) {
	var out []User
	for _, u := range m.users {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockRepo) Get(_ context.Context, companyID, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok || u.CompanyID != companyID {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) Create(_ context.Context, user User, passwordHash string) (User, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	user.ID = m.nextID
	user.IsActive = true
	m.users[user.ID] = user
	m.passwords[user.ID] = passwordHash
	m.nextID++
	return user, nil
}

func (m *mockRepo) AssignProfile(_ context.Context, companyID, id int64, profileID *int64) error {
	u, ok := m.users[id]
	if !ok || u.CompanyID != companyID {
		return ErrNotFound
	}
	u.ProfileID = profileID
	m.users[id] = u
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, companyID, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok || u.CompanyID != companyID {
		return ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

func (m *mockRepo) SetRole(_ context.Context, companyID, id int64, role string) error {
	u, ok := m.users[id]
	if !ok || u.CompanyID != companyID {
		return ErrNotFound
	}
	u.Role = role
	m.users[id] = u
	return nil
}

func (m *mockRepo) ProfileBelongsToCompany(_ context.Context, companyID, profileID int64) (bool, error) {
	return m.profiles[profileID] == companyID, nil
}

func (m *mockRepo) ListTabGrants(_ context.Context, userID int64) ([]int64, error) {
	return m.tabGrants[userID], nil
}

func (m *mockRepo) ReplaceTabGrants(_ context.Context, userID int64, subModuleIDs []int64) error {
	m.tabGrants[userID] = subModuleIDs
	return nil
}

func (m *mockRepo) ListTabRefs(_ context.Context) ([]TabRef, error) {
	return m.tabRefs, nil
}

type recordingInvalidator struct{ userIDs []int64 }

func (r *recordingInvalidator) Invalidate(_ context.Context, userID int64) error {
	r.userIDs = append(r.userIDs, userID)
	return nil
}

type recordingMailer struct {
	email        string
	tempPassword string
}

func (r *recordingMailer) EnqueueInviteEmail(_ context.Context, email, _, tempPassword string) error {
	r.email = email
	r.tempPassword = tempPassword
	return nil
}

func newTestService(repo *mockRepo, inv *recordingInvalidator, mailer *recordingMailer) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, nil, inv, mailer, logger)
}

func TestInviteCreatesAccountAndQueuesEmail(t *testing.T) {
	repo := newMockRepo()
	mailer := &recordingMailer{}
	svc := newTestService(repo, &recordingInvalidator{}, mailer)

	user, err := svc.Invite(context.Background(), 1, 10, "Maria@Empresa.com.br", "Maria Souza", "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, "maria@empresa.com.br", user.Email)
	assert.Equal(t, "admin", user.Role)
	assert.True(t, user.IsActive)

	assert.Equal(t, "maria@empresa.com.br", mailer.email)
	require.NotEmpty(t, mailer.tempPassword)
	hash := repo.passwords[user.ID]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(mailer.tempPassword)))
}

func TestInviteUnknownRoleDowngrades(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &recordingInvalidator{}, &recordingMailer{})

	user, err := svc.Invite(context.Background(), 1, 10, "joao@empresa.com.br", "Joao", "superuser", nil)
	require.NoError(t, err)
	assert.Equal(t, "user", user.Role)
}

func TestInviteRejectsForeignProfile(t *testing.T) {
	repo := newMockRepo()
	repo.profiles[7] = 99
	svc := newTestService(repo, &recordingInvalidator{}, &recordingMailer{})

	profileID := int64(7)
	_, err := svc.Invite(context.Background(), 1, 10, "ana@empresa.com.br", "Ana", "user", &profileID)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestAssignProfileInvalidatesSnapshot(t *testing.T) {
	repo := newMockRepo()
	repo.profiles[7] = 10
	inv := &recordingInvalidator{}
	svc := newTestService(repo, inv, &recordingMailer{})

	user, err := svc.Invite(context.Background(), 1, 10, "ana@empresa.com.br", "Ana", "user", nil)
	require.NoError(t, err)

	profileID := int64(7)
	require.NoError(t, svc.AssignProfile(context.Background(), 1, 10, user.ID, &profileID))
	assert.Equal(t, []int64{user.ID}, inv.userIDs)

	got, _, err := svc.Get(context.Background(), 10, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProfileID)
	assert.Equal(t, profileID, *got.ProfileID)
}

func TestSetTabGrantsValidatesCatalog(t *testing.T) {
	repo := newMockRepo()
	repo.tabRefs = []TabRef{
		{ID: 10, ModuleID: 1, IsActive: true},
		{ID: 11, ModuleID: 1, IsActive: false},
	}
	inv := &recordingInvalidator{}
	svc := newTestService(repo, inv, &recordingMailer{})

	user, err := svc.Invite(context.Background(), 1, 10, "ana@empresa.com.br", "Ana", "user", nil)
	require.NoError(t, err)
	inv.userIDs = nil

	err = svc.SetTabGrants(context.Background(), 1, 10, user.ID, []int64{10, 11})
	assert.ErrorIs(t, err, ErrUnknownTab)
	assert.Empty(t, inv.userIDs)

	require.NoError(t, svc.SetTabGrants(context.Background(), 1, 10, user.ID, []int64{10, 10}))
	assert.Equal(t, []int64{10}, repo.tabGrants[user.ID], "duplicate ids collapse")
	assert.Equal(t, []int64{user.ID}, inv.userIDs)
}

func TestDeactivateInvalidatesSnapshot(t *testing.T) {
	repo := newMockRepo()
	inv := &recordingInvalidator{}
	svc := newTestService(repo, inv, &recordingMailer{})

	user, err := svc.Invite(context.Background(), 1, 10, "ana@empresa.com.br", "Ana", "user", nil)
	require.NoError(t, err)
	inv.userIDs = nil

	require.NoError(t, svc.SetActive(context.Background(), 1, 10, user.ID, false))
	got, _, err := svc.Get(context.Background(), 10, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, []int64{user.ID}, inv.userIDs)
}

func TestSetRoleNormalises(t *testing.T) {
	repo := newMockRepo()
	inv := &recordingInvalidator{}
	svc := newTestService(repo, inv, &recordingMailer{})

	user, err := svc.Invite(context.Background(), 1, 10, "ana@empresa.com.br", "Ana", "user", nil)
	require.NoError(t, err)

	require.NoError(t, svc.SetRole(context.Background(), 1, 10, user.ID, "MASTER"))
	got, _, err := svc.Get(context.Background(), 10, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "user", got.Role, "role values are case sensitive, unknown input downgrades")
}
