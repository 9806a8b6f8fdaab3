package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

type memUserRepo struct {
	users    map[int64]User
	sessions map[string]int64
	nextID   int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int64]User{}, sessions: map[string]int64{}, nextID: 1}
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memUserRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (m *memUserRepo) ListByOrganization(ctx context.Context, orgScope int64) ([]User, error) {
	out := []User{}
	if orgScope == shared.ScopeNone {
		return out, nil
	}
	for _, u := range m.users {
		if orgScope == shared.ScopeAll || u.OrganizationID == orgScope {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUserRepo) Create(ctx context.Context, u User) (*User, error) {
	if _, err := m.FindByEmail(ctx, u.Email); err == nil {
		return nil, ErrEmailTaken
	}
	u.ID = m.nextID
	m.nextID++
	u.IsActive = true
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return &u, nil
}

func (m *memUserRepo) Update(ctx context.Context, u User) error {
	stored, ok := m.users[u.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.Name, stored.Role, stored.OrganizationID = u.Name, u.Role, u.OrganizationID
	m.users[u.ID] = stored
	return nil
}

func (m *memUserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memUserRepo) Deactivate(ctx context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = false
	m.users[id] = u
	return nil
}

func (m *memUserRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	m.sessions[id] = userID
	return nil
}

func (m *memUserRepo) DeleteSession(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memUserRepo) DeleteUserSessions(ctx context.Context, userID int64) error {
	for id, uid := range m.sessions {
		if uid == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func seedUser(t *testing.T, repo *memUserRepo, email, password string, role shared.Role, orgID int64) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := repo.Create(context.Background(), User{
		OrganizationID: orgID, Email: email, Name: "Test User",
		Role: role, PasswordHash: string(hash),
	})
	require.NoError(t, err)
	return u
}

func TestAuthenticate(t *testing.T) {
	repo := newMemUserRepo()
	user := seedUser(t, repo, "owner@shop.test", "hunter2hunter2", shared.RoleOwner, 1)
	svc := NewService(repo, nil)

	got, err := svc.Authenticate(context.Background(), "owner@shop.test", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "owner@shop.test", "wrong-password")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@shop.test", "hunter2hunter2")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newMemUserRepo()
	user := seedUser(t, repo, "gone@shop.test", "hunter2hunter2", shared.RoleMechanic, 1)
	require.NoError(t, repo.Deactivate(context.Background(), user.ID))

	svc := NewService(repo, nil)
	_, err := svc.Authenticate(context.Background(), "gone@shop.test", "hunter2hunter2")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestResolveCaller(t *testing.T) {
	repo := newMemUserRepo()
	user := seedUser(t, repo, "mech@shop.test", "hunter2hunter2", shared.RoleMechanic, 42)
	svc := NewService(repo, nil)

	caller, err := svc.ResolveCaller(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, caller.UserID)
	assert.Equal(t, shared.RoleMechanic, caller.Role)
	assert.Equal(t, int64(42), caller.OrganizationID)

	require.NoError(t, repo.Deactivate(context.Background(), user.ID))
	_, err = svc.ResolveCaller(context.Background(), user.ID)
	require.Error(t, err)
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(newMemUserRepo(), nil)

	_, err := svc.CreateUser(context.Background(), "x@shop.test", "X", "longenough", "janitor", 1)
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.CreateUser(context.Background(), "x@shop.test", "X", "short", shared.RoleMechanic, 1)
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMemUserRepo()
	seedUser(t, repo, "dup@shop.test", "hunter2hunter2", shared.RoleOwner, 1)

	svc := NewService(repo, nil)
	_, err := svc.CreateUser(context.Background(), "dup@shop.test", "Dup", "hunter2hunter2", shared.RoleOwner, 1)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateUserRevokesSessions(t *testing.T) {
	repo := newMemUserRepo()
	user := seedUser(t, repo, "mech@shop.test", "hunter2hunter2", shared.RoleMechanic, 1)
	repo.sessions["sess-1"] = user.ID
	repo.sessions["sess-2"] = user.ID

	svc := NewService(repo, nil)
	require.NoError(t, svc.UpdateUser(context.Background(), user.ID, "Promoted", shared.RoleManager, 1))
	assert.Equal(t, shared.RoleManager, repo.users[user.ID].Role)
	assert.Empty(t, repo.sessions)
}

func TestDeleteUserDeactivates(t *testing.T) {
	repo := newMemUserRepo()
	user := seedUser(t, repo, "mech@shop.test", "hunter2hunter2", shared.RoleMechanic, 1)
	repo.sessions["sess-1"] = user.ID

	svc := NewService(repo, nil)
	require.NoError(t, svc.DeleteUser(context.Background(), user.ID))
	assert.False(t, repo.users[user.ID].IsActive)
	assert.Empty(t, repo.sessions)
}

func TestChangePassword(t *testing.T) {
	repo := newMemUserRepo()
	user := seedUser(t, repo, "owner@shop.test", "hunter2hunter2", shared.RoleOwner, 1)
	svc := NewService(repo, nil)
	caller := user.Caller()

	err := svc.ChangePassword(context.Background(), caller, "wrong", "new-password-1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(context.Background(), caller, "hunter2hunter2", "new-password-1"))
	_, err = svc.Authenticate(context.Background(), "owner@shop.test", "new-password-1")
	require.NoError(t, err)
}

func TestListUsersScoped(t *testing.T) {
	repo := newMemUserRepo()
	seedUser(t, repo, "a@one.test", "hunter2hunter2", shared.RoleManager, 1)
	seedUser(t, repo, "b@two.test", "hunter2hunter2", shared.RoleManager, 2)
	svc := NewService(repo, nil)

	mine, err := svc.ListUsers(context.Background(), &shared.Caller{UserID: 9, Role: shared.RoleManager, OrganizationID: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "a@one.test", mine[0].Email)

	all, err := svc.ListUsers(context.Background(), &shared.Caller{UserID: 1, Role: shared.RoleSuperadmin})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
