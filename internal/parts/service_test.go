package parts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

type memPartRepo struct {
	parts  map[int64]Part
	nextID int64
}

func newMemPartRepo() *memPartRepo {
	return &memPartRepo{parts: map[int64]Part{}, nextID: 1}
}

func (m *memPartRepo) List(_ context.Context, orgScope int64, search string) ([]Part, error) {
	if orgScope == shared.ScopeNone {
		return []Part{}, nil
	}
	var out []Part
	for _, p := range m.parts {
		if orgScope != shared.ScopeAll && p.OrganizationID != orgScope {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memPartRepo) Get(_ context.Context, id int64) (*Part, error) {
	p, ok := m.parts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memPartRepo) Create(_ context.Context, p Part) (int64, error) {
	p.ID = m.nextID
	m.nextID++
	m.parts[p.ID] = p
	return p.ID, nil
}

func (m *memPartRepo) Update(_ context.Context, p Part) error {
	existing, ok := m.parts[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = p.Name
	existing.SKU = p.SKU
	existing.Price = p.Price
	existing.MinStock = p.MinStock
	m.parts[p.ID] = existing
	return nil
}

func (m *memPartRepo) Delete(_ context.Context, id int64) error {
	p, ok := m.parts[id]
	if !ok || len(p.InvoiceIDs) > 0 {
		return ErrNotFound
	}
	delete(m.parts, id)
	return nil
}

func (m *memPartRepo) AdjustQuantity(_ context.Context, id int64, delta float64) (float64, error) {
	p, ok := m.parts[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.Quantity += delta
	if p.Quantity < 0 {
		p.Quantity = 0
	}
	m.parts[id] = p
	return p.Quantity, nil
}

func (m *memPartRepo) ListLowStock(_ context.Context, orgScope int64) ([]Part, error) {
	all, _ := m.List(context.Background(), orgScope, "")
	var out []Part
	for _, p := range all {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

type recordingFeed struct {
	events []string
}

func (f *recordingFeed) Publish(_ context.Context, table string, _ int64, kind string, _ any) {
	f.events = append(f.events, table+":"+kind)
}

func manager(orgID int64) *shared.Caller {
	return &shared.Caller{UserID: 1, Role: shared.RoleManager, OrganizationID: orgID}
}

func TestCreatePartDefaultsAndPublishes(t *testing.T) {
	repo := newMemPartRepo()
	feed := &recordingFeed{}
	svc := NewService(repo, feed, nil)

	created, err := svc.Create(context.Background(), manager(3), Part{Name: "  Brake Pad  ", Quantity: 10, Price: 25})
	require.NoError(t, err)
	assert.Equal(t, "Brake Pad", created.Name)
	assert.Equal(t, int64(3), created.OrganizationID)
	assert.NotNil(t, created.InvoiceIDs)
	assert.Equal(t, []string{"parts:INSERT"}, feed.events)
}

func TestCreatePartRejectsBadInput(t *testing.T) {
	svc := NewService(newMemPartRepo(), nil, nil)

	_, err := svc.Create(context.Background(), manager(3), Part{Name: "Oil", Quantity: -1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(context.Background(), manager(3), Part{Name: "Oil", Price: -5})
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestAdjustFloorsAtZero(t *testing.T) {
	repo := newMemPartRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.Create(context.Background(), manager(3), Part{Name: "Filter", Quantity: 2})
	require.NoError(t, err)

	updated, err := svc.Adjust(context.Background(), manager(3), created.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.Quantity)

	updated, err = svc.Adjust(context.Background(), manager(3), created.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, updated.Quantity)
}

func TestGetPartEnforcesTenancy(t *testing.T) {
	repo := newMemPartRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.Create(context.Background(), manager(3), Part{Name: "Spark Plug"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), manager(9), created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(context.Background(), &shared.Caller{UserID: 2, Role: shared.RoleSuperadmin}, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestDeleteReferencedPartFails(t *testing.T) {
	repo := newMemPartRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.Create(context.Background(), manager(3), Part{Name: "Clutch", InvoiceIDs: []int64{12}})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), manager(3), created.ID), ErrNotFound)
	_, err = svc.Get(context.Background(), manager(3), created.ID)
	require.NoError(t, err)
}

func TestLowStockListing(t *testing.T) {
	repo := newMemPartRepo()
	svc := NewService(repo, nil, nil)
	_, err := svc.Create(context.Background(), manager(3), Part{Name: "Pad", Quantity: 1, MinStock: 3})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), manager(3), Part{Name: "Disc", Quantity: 10, MinStock: 3})
	require.NoError(t, err)

	low, err := svc.LowStock(context.Background(), manager(3))
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Pad", low[0].Name)
}

func TestGetPartRejectsOrglessCaller(t *testing.T) {
	repo := newMemPartRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.Create(context.Background(), manager(3), Part{Name: "Gasket"})
	require.NoError(t, err)

	orgless := &shared.Caller{UserID: 8, Role: shared.RoleMechanic}
	_, err = svc.Get(context.Background(), orgless, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

type flakyPartRepo struct {
	*memPartRepo
	failures int
}

func (f *flakyPartRepo) List(ctx context.Context, orgScope int64, search string) ([]Part, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.memPartRepo.List(ctx, orgScope, search)
}

func TestListPartsRetriesThroughLoader(t *testing.T) {
	repo := newMemPartRepo()
	seeded := NewService(repo, nil, nil)
	_, err := seeded.Create(context.Background(), manager(3), Part{Name: "Pad"})
	require.NoError(t, err)

	flaky := &flakyPartRepo{memPartRepo: repo, failures: 1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ld := loader.New[Part](loader.Options{Retries: 3, Backoff: time.Millisecond}, logger, nil)
	svc := NewService(flaky, nil, ld)

	got, err := svc.List(context.Background(), manager(3), "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Pad", got[0].Name)

	// A search reads the repository directly, so a failure surfaces as-is.
	flaky.failures = 1
	_, err = svc.List(context.Background(), manager(3), "pad")
	require.Error(t, err)
}
