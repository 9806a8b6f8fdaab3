package orgs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

type memOrgRepo struct {
	orgs       map[int64]Organization
	subs       map[int64]Subscription
	members    map[int64]int
	nextID  int64
}

func newMemOrgRepo() *memOrgRepo {
	return &memOrgRepo{
		orgs:    map[int64]Organization{},
		subs:    map[int64]Subscription{},
		members: map[int64]int{},
		nextID:  1,
	}
}

func (m *memOrgRepo) List(ctx context.Context) ([]Organization, error) {
	out := make([]Organization, 0, len(m.orgs))
	for _, o := range m.orgs {
		out = append(out, o)
	}
	return out, nil
}

func (m *memOrgRepo) Get(ctx context.Context, id int64) (*Organization, error) {
	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memOrgRepo) Create(ctx context.Context, o Organization) (*Organization, error) {
	o.ID = m.nextID
	m.nextID++
	if o.Currency == "" {
		o.Currency = "USD"
	}
	m.orgs[o.ID] = o
	return &o, nil
}

func (m *memOrgRepo) Update(ctx context.Context, o Organization) (*Organization, error) {
	if _, ok := m.orgs[o.ID]; !ok {
		return nil, ErrNotFound
	}
	m.orgs[o.ID] = o
	return &o, nil
}

func (m *memOrgRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.orgs[id]; !ok {
		return ErrNotFound
	}
	delete(m.orgs, id)
	return nil
}

func (m *memOrgRepo) MemberCount(ctx context.Context, id int64) (int, error) {
	return m.members[id], nil
}

func (m *memOrgRepo) GetSubscription(ctx context.Context, orgID int64) (*Subscription, error) {
	s, ok := m.subs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memOrgRepo) UpsertSubscription(ctx context.Context, s Subscription) (*Subscription, error) {
	m.subs[s.OrganizationID] = s
	return &s, nil
}

func (m *memOrgRepo) ExpireSubscriptions(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	for id, s := range m.subs {
		if s.Status != SubCancelled && s.Status != SubExpired && s.PeriodEnd.Before(asOf) {
			s.Status = SubExpired
			m.subs[id] = s
			n++
		}
	}
	return n, nil
}

type memUserAdmin struct {
	created []string
	updated []int64
	deleted []int64
}

func (m *memUserAdmin) CreateUser(ctx context.Context, email, name, password string, role shared.Role, orgID int64) (int64, error) {
	m.created = append(m.created, email)
	return int64(len(m.created)), nil
}

func (m *memUserAdmin) UpdateUser(ctx context.Context, userID int64, name string, role shared.Role, orgID int64) error {
	m.updated = append(m.updated, userID)
	return nil
}

func (m *memUserAdmin) DeleteUser(ctx context.Context, userID int64) error {
	m.deleted = append(m.deleted, userID)
	return nil
}

func superadmin() *shared.Caller {
	return &shared.Caller{UserID: 1, Role: shared.RoleSuperadmin}
}

func owner(orgID int64) *shared.Caller {
	return &shared.Caller{UserID: 2, Role: shared.RoleOwner, OrganizationID: orgID}
}

func rpc(t *testing.T, action string, data any) RPCRequest {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return RPCRequest{Action: action, Data: raw}
}

func TestDispatchOrganizationLifecycle(t *testing.T) {
	repo := newMemOrgRepo()
	svc := NewService(repo, &memUserAdmin{}, nil)
	ctx := context.Background()

	created, err := svc.Dispatch(ctx, superadmin(), rpc(t, "create_organization", map[string]any{
		"name": "Joe's Garage", "currency": "EUR", "default_tax_rate": 19.0,
	}))
	require.NoError(t, err)
	org := created.(*Organization)
	assert.Equal(t, "Joe's Garage", org.Name)
	assert.Equal(t, "EUR", org.Currency)

	_, err = svc.Dispatch(ctx, superadmin(), rpc(t, "update_organization", map[string]any{
		"id": org.ID, "name": "Joe's Garage & Sons", "currency": "EUR",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Joe's Garage & Sons", repo.orgs[org.ID].Name)

	listed, err := svc.Dispatch(ctx, superadmin(), rpc(t, "list_organizations", nil))
	require.NoError(t, err)
	assert.Len(t, listed.([]Organization), 1)

	_, err = svc.Dispatch(ctx, superadmin(), rpc(t, "delete_organization", map[string]any{"id": org.ID}))
	require.NoError(t, err)
	assert.Empty(t, repo.orgs)
}

func TestDispatchDeleteBlockedByMembers(t *testing.T) {
	repo := newMemOrgRepo()
	org, err := repo.Create(context.Background(), Organization{Name: "Busy Shop"})
	require.NoError(t, err)
	repo.members[org.ID] = 3

	svc := NewService(repo, nil, nil)
	_, err = svc.Dispatch(context.Background(), superadmin(), rpc(t, "delete_organization", map[string]any{"id": org.ID}))
	require.ErrorIs(t, err, ErrHasMembers)
	assert.Contains(t, repo.orgs, org.ID)
}

func TestDispatchUserActions(t *testing.T) {
	repo := newMemOrgRepo()
	users := &memUserAdmin{}
	svc := NewService(repo, users, nil)
	ctx := context.Background()

	res, err := svc.Dispatch(ctx, superadmin(), rpc(t, "create_user", map[string]any{
		"email": "mech@shop.test", "name": "Mechanic", "password": "secret123",
		"role": "mechanic", "organization_id": 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"id": 1}, res)
	assert.Equal(t, []string{"mech@shop.test"}, users.created)

	_, err = svc.Dispatch(ctx, superadmin(), rpc(t, "update_user", map[string]any{
		"id": 1, "name": "Senior Mechanic", "role": "mechanic", "organization_id": 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, users.updated)

	_, err = svc.Dispatch(ctx, superadmin(), rpc(t, "delete_user", map[string]any{"id": 1}))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, users.deleted)
}

func TestDispatchUserActionsWithoutPort(t *testing.T) {
	svc := NewService(newMemOrgRepo(), nil, nil)
	_, err := svc.Dispatch(context.Background(), superadmin(), rpc(t, "create_user", map[string]any{}))
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestDispatchUnknownAction(t *testing.T) {
	svc := NewService(newMemOrgRepo(), nil, nil)
	_, err := svc.Dispatch(context.Background(), superadmin(), RPCRequest{Action: "drop_everything"})
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestDispatchMalformedData(t *testing.T) {
	svc := NewService(newMemOrgRepo(), nil, nil)
	_, err := svc.Dispatch(context.Background(), superadmin(), RPCRequest{
		Action: "create_organization",
		Data:   json.RawMessage(`{"name":`),
	})
	require.Error(t, err)
}

func TestDispatchUpdateSubscription(t *testing.T) {
	repo := newMemOrgRepo()
	svc := NewService(repo, nil, nil)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	res, err := svc.Dispatch(context.Background(), superadmin(), rpc(t, "update_subscription", map[string]any{
		"organization_id": 7, "plan": "pro", "status": "active",
		"period_start": start, "period_end": end,
	}))
	require.NoError(t, err)
	sub := res.(*Subscription)
	assert.Equal(t, SubActive, sub.Status)
	assert.Equal(t, "pro", sub.Plan)
	assert.Equal(t, *sub, repo.subs[7])
}

func TestUpdateSettingsScopedToCaller(t *testing.T) {
	repo := newMemOrgRepo()
	org, err := repo.Create(context.Background(), Organization{Name: "Shop", Currency: "USD"})
	require.NoError(t, err)

	svc := NewService(repo, nil, nil)
	updated, err := svc.UpdateSettings(context.Background(), owner(org.ID), Organization{
		ID: 999, Name: "Renamed Shop", Currency: "GBP", TaxRate: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, org.ID, updated.ID)
	assert.Equal(t, "GBP", updated.Currency)
}

func TestSubscriptionExpirySweep(t *testing.T) {
	repo := newMemOrgRepo()
	repo.subs[1] = Subscription{OrganizationID: 1, Status: SubActive, PeriodEnd: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)}
	repo.subs[2] = Subscription{OrganizationID: 2, Status: SubActive, PeriodEnd: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}

	restore := now
	now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = restore }()

	svc := NewService(repo, nil, nil)
	n, err := svc.ExpireSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, SubExpired, repo.subs[1].Status)
	assert.Equal(t, SubActive, repo.subs[2].Status)
}

func TestFormatterCachedUntilSettingsChange(t *testing.T) {
	repo := newMemOrgRepo()
	org, err := repo.Create(context.Background(), Organization{Name: "Shop", Currency: "USD"})
	require.NoError(t, err)

	svc := NewService(repo, nil, nil)
	f1, err := svc.Formatter(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Contains(t, f1.Format(100), "100.00")
	assert.Equal(t, "USD", f1.Code())

	_, err = svc.UpdateSettings(context.Background(), owner(org.ID), Organization{Name: "Shop", Currency: "EUR"})
	require.NoError(t, err)

	f2, err := svc.Formatter(context.Background(), org.ID)
	require.NoError(t, err)
	assert.NotEqual(t, f1.Format(100), f2.Format(100))
}
