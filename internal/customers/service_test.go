package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

type mockRepo struct {
	customers map[int64]*Customer
	vehicles  map[int64]*Vehicle
	nextID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{customers: make(map[int64]*Customer), vehicles: make(map[int64]*Vehicle)}
}

func (m *mockRepo) List(_ context.Context, orgScope int64, search string) ([]Customer, error) {
	if orgScope == shared.ScopeNone {
		return []Customer{}, nil
	}
	var out []Customer
	for _, c := range m.customers {
		if orgScope == shared.ScopeAll || c.OrganizationID == orgScope {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, c Customer) (*Customer, error) {
	m.nextID++
	c.ID = m.nextID
	m.customers[c.ID] = &c
	cp := c
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, c Customer) (*Customer, error) {
	if _, ok := m.customers[c.ID]; !ok {
		return nil, ErrNotFound
	}
	m.customers[c.ID] = &c
	cp := c
	return &cp, nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	for _, v := range m.vehicles {
		if v.CustomerID == id {
			return ErrHasVehicles
		}
	}
	if _, ok := m.customers[id]; !ok {
		return ErrNotFound
	}
	delete(m.customers, id)
	return nil
}

func (m *mockRepo) ListVehicles(_ context.Context, orgScope int64, customerID int64) ([]Vehicle, error) {
	var out []Vehicle
	for _, v := range m.vehicles {
		if customerID != 0 && v.CustomerID != customerID {
			continue
		}
		if orgScope == shared.ScopeAll || v.OrganizationID == orgScope {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *mockRepo) GetVehicle(_ context.Context, id int64) (*Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockRepo) CreateVehicle(_ context.Context, v Vehicle) (*Vehicle, error) {
	m.nextID++
	v.ID = m.nextID
	m.vehicles[v.ID] = &v
	cp := v
	return &cp, nil
}

func (m *mockRepo) UpdateVehicle(_ context.Context, v Vehicle) (*Vehicle, error) {
	if _, ok := m.vehicles[v.ID]; !ok {
		return nil, ErrNotFound
	}
	m.vehicles[v.ID] = &v
	cp := v
	return &cp, nil
}

func (m *mockRepo) DeleteVehicle(_ context.Context, id int64) error {
	if _, ok := m.vehicles[id]; !ok {
		return ErrNotFound
	}
	delete(m.vehicles, id)
	return nil
}

func mechanicCaller(orgID int64) *shared.Caller {
	return &shared.Caller{UserID: 1, Role: shared.RoleMechanic, OrganizationID: orgID}
}

func TestServiceTenantIsolation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	mine, err := svc.Create(ctx, mechanicCaller(1), Customer{Name: "Ada"})
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, mechanicCaller(2), Customer{Name: "Bob"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, mechanicCaller(1), theirs.ID)
	assert.ErrorIs(t, err, ErrNotFound, "cross-tenant reads look like missing rows")

	got, err := svc.Get(ctx, mechanicCaller(1), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
}

func TestServiceSuperadminSeesAllTenants(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, mechanicCaller(1), Customer{Name: "Ada"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, mechanicCaller(2), Customer{Name: "Bob"})
	require.NoError(t, err)

	admin := &shared.Caller{UserID: 9, Role: shared.RoleSuperadmin}
	all, err := svc.List(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestServiceNoOrganizationSeesNothing(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, mechanicCaller(1), Customer{Name: "Ada"})
	require.NoError(t, err)

	orphan := &shared.Caller{UserID: 5, Role: shared.RoleMechanic, OrganizationID: 0}
	rows, err := svc.List(ctx, orphan, "")
	require.NoError(t, err)
	assert.Empty(t, rows, "a caller with no organization gets an empty set, not an error")
}

func TestServiceVehicleInheritsCustomerOrg(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, mechanicCaller(3), Customer{Name: "Ada"})
	require.NoError(t, err)

	v, err := svc.CreateVehicle(ctx, mechanicCaller(3), Vehicle{CustomerID: c.ID, Make: "Toyota", Model: "Corolla"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.OrganizationID)

	// another tenant cannot hang a vehicle off this customer
	_, err = svc.CreateVehicle(ctx, mechanicCaller(4), Vehicle{CustomerID: c.ID, Make: "Honda", Model: "Civic"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteCustomerWithVehiclesBlocked(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, mechanicCaller(1), Customer{Name: "Ada"})
	require.NoError(t, err)
	_, err = svc.CreateVehicle(ctx, mechanicCaller(1), Vehicle{CustomerID: c.ID, Make: "VW", Model: "Golf"})
	require.NoError(t, err)

	err = svc.Delete(ctx, mechanicCaller(1), c.ID)
	assert.ErrorIs(t, err, ErrHasVehicles)
}
