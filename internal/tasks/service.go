package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// FeedPublisher pushes change events to the realtime feed after writes.
type FeedPublisher interface {
	Publish(ctx context.Context, table string, orgID int64, kind string, row any)
}

// Service coordinates task scheduling and workflow. Unfiltered list reads
// go through the resilience loader so concurrent callers share one fetch.
type Service struct {
	repo   RepositoryPort
	feed   FeedPublisher
	loader *loader.Loader[Task]
}

// NewService builds Service. ld may be nil in tests.
func NewService(repo RepositoryPort, feed FeedPublisher, ld *loader.Loader[Task]) *Service {
	return &Service{repo: repo, feed: feed, loader: ld}
}

var now = time.Now

// List returns tasks in the caller's organization scope.
func (s *Service) List(ctx context.Context, caller *shared.Caller, filter ListFilter) ([]Task, error) {
	scope := caller.OrgScope()
	if filter != (ListFilter{}) || s.loader == nil {
		return s.repo.List(ctx, scope, filter)
	}
	return s.loader.Load(ctx, "tasks", scope, func(ctx context.Context) ([]Task, error) {
		return s.repo.List(ctx, scope, ListFilter{})
	})
}

// Get fetches one task, enforcing tenancy.
func (s *Service) Get(ctx context.Context, caller *shared.Caller, id int64) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := caller.OrgScope()
	if scope == shared.ScopeNone || (scope != shared.ScopeAll && t.OrganizationID != scope) {
		return nil, ErrNotFound
	}
	return t, nil
}

// Create validates and inserts a new task.
func (s *Service) Create(ctx context.Context, caller *shared.Caller, t Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = StatusPending
	}
	if !t.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if t.Status == StatusCompleted && t.CompletedAt == nil {
		at := now()
		t.CompletedAt = &at
	}
	if caller.OrganizationID != 0 {
		t.OrganizationID = caller.OrganizationID
	}
	id, err := s.repo.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, created, "INSERT")
	return created, nil
}

// Update rewrites task fields. Billed tasks keep their invoice linkage;
// the invoice module owns that relation.
func (s *Service) Update(ctx context.Context, caller *shared.Caller, t Task) (*Task, error) {
	existing, err := s.Get(ctx, caller, t.ID)
	if err != nil {
		return nil, err
	}
	if !t.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	existing.Title = strings.TrimSpace(t.Title)
	existing.Description = t.Description
	existing.HoursEstimated = t.HoursEstimated
	existing.HoursSpent = t.HoursSpent
	existing.Price = t.Price
	existing.MechanicID = t.MechanicID
	existing.VehicleID = t.VehicleID
	existing.ScheduledFor = t.ScheduledFor
	if existing.Status != StatusCompleted && t.Status == StatusCompleted {
		at := now()
		existing.CompletedAt = &at
	}
	existing.Status = t.Status
	if err := s.repo.Update(ctx, *existing); err != nil {
		return nil, err
	}
	updated, err := s.repo.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, "UPDATE")
	return updated, nil
}

// AssignMechanic moves the task onto a mechanic's schedule.
func (s *Service) AssignMechanic(ctx context.Context, caller *shared.Caller, taskID, mechanicID int64, at *time.Time) (*Task, error) {
	existing, err := s.Get(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}
	existing.MechanicID = &mechanicID
	if at != nil {
		existing.ScheduledFor = at
	}
	if existing.Status == StatusPending {
		existing.Status = StatusInProgress
	}
	if err := s.repo.Update(ctx, *existing); err != nil {
		return nil, err
	}
	updated, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, "UPDATE")
	return updated, nil
}

// Delete removes an unbilled task.
func (s *Service) Delete(ctx context.Context, caller *shared.Caller, id int64) error {
	existing, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if existing.InvoiceID != nil {
		return ErrAlreadyBilled
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, existing, "DELETE")
	return nil
}

func (s *Service) publish(ctx context.Context, t *Task, kind string) {
	if s.feed == nil || t == nil {
		return
	}
	s.feed.Publish(ctx, "tasks", t.OrganizationID, kind, t)
}
