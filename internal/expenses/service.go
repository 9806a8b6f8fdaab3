package expenses

import (
	"context"

	"github.com/gearbox-hq/gearbox/internal/invoices"
	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// FeedPublisher pushes change events to the realtime feed after writes.
type FeedPublisher interface {
	Publish(ctx context.Context, table string, orgID int64, kind string, row any)
}

// Service implements expense logging.
type Service struct {
	repo   RepositoryPort
	feed   FeedPublisher
	loader *loader.Loader[Expense]
}

// NewService builds the service.
func NewService(repo RepositoryPort, feed FeedPublisher, ld *loader.Loader[Expense]) *Service {
	return &Service{repo: repo, feed: feed, loader: ld}
}

// List returns expenses visible to the caller.
func (s *Service) List(ctx context.Context, caller *shared.Caller, filter ListFilter) ([]Expense, error) {
	scope := caller.OrgScope()
	if filter != (ListFilter{}) || s.loader == nil {
		return s.repo.List(ctx, scope, filter)
	}
	return s.loader.Load(ctx, "expenses", scope, func(ctx context.Context) ([]Expense, error) {
		return s.repo.List(ctx, scope, ListFilter{})
	})
}

// Get fetches one expense, enforcing tenant visibility.
func (s *Service) Get(ctx context.Context, caller *shared.Caller, id int64) (*Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Elevated() && e.OrganizationID != caller.OrganizationID {
		return nil, ErrNotFound
	}
	return e, nil
}

// Create logs a new expense. Amounts are rounded at the persistence edge.
func (s *Service) Create(ctx context.Context, caller *shared.Caller, e Expense) (*Expense, error) {
	if e.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.Category == "" {
		e.Category = CategoryOther
	}
	e.OrganizationID = caller.OrganizationID
	e.Amount = invoices.Round2(e.Amount)
	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	if s.feed != nil {
		s.feed.Publish(ctx, "expenses", created.OrganizationID, "INSERT", created)
	}
	return created, nil
}

// Update edits an expense.
func (s *Service) Update(ctx context.Context, caller *shared.Caller, e Expense) (*Expense, error) {
	if e.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	existing, err := s.Get(ctx, caller, e.ID)
	if err != nil {
		return nil, err
	}
	e.OrganizationID = existing.OrganizationID
	e.Amount = invoices.Round2(e.Amount)
	updated, err := s.repo.Update(ctx, e)
	if err != nil {
		return nil, err
	}
	if s.feed != nil {
		s.feed.Publish(ctx, "expenses", updated.OrganizationID, "UPDATE", updated)
	}
	return updated, nil
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, caller *shared.Caller, id int64) error {
	existing, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.feed != nil {
		s.feed.Publish(ctx, "expenses", existing.OrganizationID, "DELETE", existing)
	}
	return nil
}
