package tasks

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

type memTaskRepo struct {
	tasks  map[int64]Task
	nextID int64
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: map[int64]Task{}, nextID: 1}
}

func (m *memTaskRepo) List(_ context.Context, orgScope int64, filter ListFilter) ([]Task, error) {
	if orgScope == shared.ScopeNone {
		return []Task{}, nil
	}
	var out []Task
	for _, t := range m.tasks {
		if orgScope != shared.ScopeAll && t.OrganizationID != orgScope {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.MechanicID != 0 && (t.MechanicID == nil || *t.MechanicID != filter.MechanicID) {
			continue
		}
		if filter.Unbilled && t.InvoiceID != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memTaskRepo) Get(_ context.Context, id int64) (*Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memTaskRepo) Create(_ context.Context, t Task) (int64, error) {
	t.ID = m.nextID
	m.nextID++
	m.tasks[t.ID] = t
	return t.ID, nil
}

func (m *memTaskRepo) Update(_ context.Context, t Task) error {
	if _, ok := m.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *memTaskRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func owner(orgID int64) *shared.Caller {
	return &shared.Caller{UserID: 1, Role: shared.RoleOwner, OrganizationID: orgID}
}

func TestCreateTaskDefaultsToPending(t *testing.T) {
	svc := NewService(newMemTaskRepo(), nil, nil)

	created, err := svc.Create(context.Background(), owner(4), Task{Title: " Replace brakes "})
	require.NoError(t, err)
	assert.Equal(t, "Replace brakes", created.Title)
	assert.Equal(t, StatusPending, created.Status)
	assert.Nil(t, created.CompletedAt)
	assert.Equal(t, int64(4), created.OrganizationID)
}

func TestCreateCompletedTaskStampsCompletion(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	svc := NewService(newMemTaskRepo(), nil, nil)
	created, err := svc.Create(context.Background(), owner(4), Task{Title: "Oil change", Status: StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, created.CompletedAt)
	assert.Equal(t, fixed, *created.CompletedAt)
}

func TestCreateTaskRejectsUnknownStatus(t *testing.T) {
	svc := NewService(newMemTaskRepo(), nil, nil)
	_, err := svc.Create(context.Background(), owner(4), Task{Title: "x", Status: Status("paused")})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStampsCompletionOnceOnTransition(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	svc := NewService(newMemTaskRepo(), nil, nil)
	created, err := svc.Create(context.Background(), owner(4), Task{Title: "Align wheels", Status: StatusInProgress})
	require.NoError(t, err)

	created.Status = StatusCompleted
	updated, err := svc.Update(context.Background(), owner(4), *created)
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, fixed, *updated.CompletedAt)

	// A later edit of an already-completed task keeps the original stamp.
	now = func() time.Time { return fixed.Add(48 * time.Hour) }
	updated.Title = "Align wheels and rotate"
	again, err := svc.Update(context.Background(), owner(4), *updated)
	require.NoError(t, err)
	assert.Equal(t, fixed, *again.CompletedAt)
}

func TestAssignMechanicMovesPendingToInProgress(t *testing.T) {
	svc := NewService(newMemTaskRepo(), nil, nil)
	created, err := svc.Create(context.Background(), owner(4), Task{Title: "Diagnose noise"})
	require.NoError(t, err)

	slot := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	assigned, err := svc.AssignMechanic(context.Background(), owner(4), created.ID, 42, &slot)
	require.NoError(t, err)
	require.NotNil(t, assigned.MechanicID)
	assert.Equal(t, int64(42), *assigned.MechanicID)
	require.NotNil(t, assigned.ScheduledFor)
	assert.Equal(t, slot, *assigned.ScheduledFor)
	assert.Equal(t, StatusInProgress, assigned.Status)
}

func TestAssignMechanicKeepsCompletedStatus(t *testing.T) {
	svc := NewService(newMemTaskRepo(), nil, nil)
	created, err := svc.Create(context.Background(), owner(4), Task{Title: "Done work", Status: StatusCompleted})
	require.NoError(t, err)

	assigned, err := svc.AssignMechanic(context.Background(), owner(4), created.ID, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, assigned.Status)
}

func TestDeleteBilledTaskBlocked(t *testing.T) {
	repo := newMemTaskRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.Create(context.Background(), owner(4), Task{Title: "Billed job", Status: StatusCompleted})
	require.NoError(t, err)

	invID := int64(99)
	stored := repo.tasks[created.ID]
	stored.InvoiceID = &invID
	repo.tasks[created.ID] = stored

	require.ErrorIs(t, svc.Delete(context.Background(), owner(4), created.ID), ErrAlreadyBilled)
}

func TestListFiltersByMechanicAndUnbilled(t *testing.T) {
	repo := newMemTaskRepo()
	svc := NewService(repo, nil, nil)

	mech := int64(5)
	_, err := svc.Create(context.Background(), owner(4), Task{Title: "a", MechanicID: &mech})
	require.NoError(t, err)
	billed, err := svc.Create(context.Background(), owner(4), Task{Title: "b", MechanicID: &mech})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), owner(4), Task{Title: "c"})
	require.NoError(t, err)

	invID := int64(11)
	stored := repo.tasks[billed.ID]
	stored.InvoiceID = &invID
	repo.tasks[billed.ID] = stored

	got, err := svc.List(context.Background(), owner(4), ListFilter{MechanicID: mech, Unbilled: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Title)
}

func TestGetTaskRejectsOrglessCaller(t *testing.T) {
	repo := newMemTaskRepo()
	svc := NewService(repo, nil, nil)
	created, err := svc.Create(context.Background(), owner(4), Task{Title: "Replace belt"})
	require.NoError(t, err)

	orgless := &shared.Caller{UserID: 8, Role: shared.RoleReceptionist}
	_, err = svc.Get(context.Background(), orgless, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

type flakyTaskRepo struct {
	*memTaskRepo
	failures int
}

func (f *flakyTaskRepo) List(ctx context.Context, orgScope int64, filter ListFilter) ([]Task, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.memTaskRepo.List(ctx, orgScope, filter)
}

func TestListTasksRetriesThroughLoader(t *testing.T) {
	repo := newMemTaskRepo()
	seeded := NewService(repo, nil, nil)
	_, err := seeded.Create(context.Background(), owner(4), Task{Title: "Inspect"})
	require.NoError(t, err)

	flaky := &flakyTaskRepo{memTaskRepo: repo, failures: 1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ld := loader.New[Task](loader.Options{Retries: 3, Backoff: time.Millisecond}, logger, nil)
	svc := NewService(flaky, nil, ld)

	got, err := svc.List(context.Background(), owner(4), ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Inspect", got[0].Title)

	// A narrowed listing reads the repository directly, so a failure
	// surfaces as-is.
	flaky.failures = 1
	_, err = svc.List(context.Background(), owner(4), ListFilter{Status: StatusPending})
	require.Error(t, err)
}
