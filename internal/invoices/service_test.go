package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// memInvoiceRepo backs the service with maps and doubles as its own
// transaction: WithTx hands the repo back to the callback. The embedded
// stores cover the part and task sides of the bridge.
type memInvoiceRepo struct {
	*memPartStore
	*memTaskStore

	invoices map[int64]*Invoice
	invNext  int64
	itemNext int64
	payNext  int64

	seq            int
	createFailures int
	listFailures   int
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		memPartStore: newMemPartStore(),
		memTaskStore: newMemTaskStore(),
		invoices:     map[int64]*Invoice{},
		invNext:      1,
		itemNext:     1,
		payNext:      1,
	}
}

func (m *memInvoiceRepo) Get(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceRepo) List(_ context.Context, orgScope int64, _ ListFilter) ([]Invoice, int, error) {
	if m.listFailures > 0 {
		m.listFailures--
		return nil, 0, errors.New("connection reset")
	}
	if orgScope == shared.ScopeNone {
		return []Invoice{}, 0, nil
	}
	var out []Invoice
	for _, inv := range m.invoices {
		if orgScope != shared.ScopeAll && inv.OrganizationID != orgScope {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *memInvoiceRepo) GenerateNumber(_ context.Context, _ int64, date time.Time) (string, error) {
	m.seq++
	return fmt.Sprintf("INV-%s-%04d", date.Format("0601"), m.seq), nil
}

func (m *memInvoiceRepo) MarkOverdue(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for _, inv := range m.invoices {
		if inv.Status == StatusOpen && inv.DueDate != nil && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			n++
		}
	}
	return n, nil
}

func (m *memInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memInvoiceRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	return m.Get(ctx, id)
}

func (m *memInvoiceRepo) CreateInvoice(_ context.Context, inv Invoice, _ Totals) (int64, error) {
	if m.createFailures > 0 {
		m.createFailures--
		return 0, ErrNumberTaken
	}
	inv.ID = m.invNext
	m.invNext++
	m.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (m *memInvoiceRepo) UpdateInvoice(_ context.Context, inv Invoice, _ Totals) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	m.invoices[inv.ID] = &inv
	return nil
}

func (m *memInvoiceRepo) UpdateStatus(_ context.Context, id int64, status Status, _ float64) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	return nil
}

func (m *memInvoiceRepo) DeleteInvoice(_ context.Context, id int64) error {
	delete(m.invoices, id)
	return nil
}

func (m *memInvoiceRepo) InsertItem(_ context.Context, _ Item) (int64, error) {
	id := m.itemNext
	m.itemNext++
	return id, nil
}

func (m *memInvoiceRepo) DeleteItems(_ context.Context, _ int64) error { return nil }

func (m *memInvoiceRepo) DeleteItem(_ context.Context, _ int64) error { return nil }

func (m *memInvoiceRepo) InsertPayment(_ context.Context, _ Payment) (int64, error) {
	id := m.payNext
	m.payNext++
	return id, nil
}

func (m *memInvoiceRepo) DeletePayment(_ context.Context, _ int64) error { return nil }

func accountant(orgID int64) *shared.Caller {
	return &shared.Caller{UserID: 1, Role: shared.RoleAccountant, OrganizationID: orgID}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateRetriesAfterNumberCollision(t *testing.T) {
	repo := newMemInvoiceRepo()
	repo.createFailures = 1
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.Create(context.Background(), accountant(3), CreateInput{
		CustomerID: 7,
		Date:       time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Items: []ItemInput{
			{Type: ItemPart, Description: "Air filter", Quantity: 1, Price: 30, CreatesPart: true},
		},
	})
	require.NoError(t, err)

	// The first number was lost to the collision; the retry claims the next.
	assert.Equal(t, "INV-2608-0002", created.Number)
	assert.Equal(t, 2, repo.seq)

	// The spawn directive fires exactly once even though the item list is
	// rebuilt for the retry.
	require.Len(t, repo.memPartStore.parts, 1)
	require.Len(t, created.Items, 1)
	require.NotNil(t, created.Items[0].PartID)
	assert.False(t, created.Items[0].CreatesPart)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newMemInvoiceRepo()
	repo.createFailures = 5
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), accountant(3), CreateInput{
		CustomerID: 7,
		Date:       time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrNumberTaken)
	assert.Equal(t, 3, repo.seq)
	assert.Empty(t, repo.invoices)
}

func TestListDefaultPageRetriesThroughLoader(t *testing.T) {
	repo := newMemInvoiceRepo()
	repo.invoices[1] = &Invoice{
		ID:             1,
		OrganizationID: 3,
		Number:         "INV-2608-0001",
		CustomerID:     7,
		Date:           time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:         StatusOpen,
	}
	ld := loader.New[ListPage](loader.Options{Retries: 3, Backoff: time.Millisecond}, testLogger(), nil)
	svc := NewService(repo, nil, nil, ld)

	repo.listFailures = 1
	views, total, err := svc.List(context.Background(), accountant(3), ListFilter{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, views, 1)
	assert.Equal(t, "INV-2608-0001", views[0].Number)

	// Narrowed listings read the repository directly, so a failure
	// surfaces as-is.
	repo.listFailures = 1
	_, _, err = svc.List(context.Background(), accountant(3), ListFilter{Status: StatusOpen, Limit: 20})
	require.Error(t, err)
}
