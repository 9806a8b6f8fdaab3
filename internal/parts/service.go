package parts

import (
	"context"
	"strings"

	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// FeedPublisher pushes change events to the realtime feed after writes.
type FeedPublisher interface {
	Publish(ctx context.Context, table string, orgID int64, kind string, row any)
}

// Service coordinates part inventory operations. Unfiltered list reads go
// through the resilience loader so concurrent callers share one fetch.
type Service struct {
	repo   RepositoryPort
	feed   FeedPublisher
	loader *loader.Loader[Part]
}

// NewService builds Service. ld may be nil in tests.
func NewService(repo RepositoryPort, feed FeedPublisher, ld *loader.Loader[Part]) *Service {
	return &Service{repo: repo, feed: feed, loader: ld}
}

// List returns parts in the caller's organization scope.
func (s *Service) List(ctx context.Context, caller *shared.Caller, search string) ([]Part, error) {
	scope := caller.OrgScope()
	search = strings.TrimSpace(search)
	if search != "" || s.loader == nil {
		return s.repo.List(ctx, scope, search)
	}
	return s.loader.Load(ctx, "parts", scope, func(ctx context.Context) ([]Part, error) {
		return s.repo.List(ctx, scope, "")
	})
}

// Get fetches one part, enforcing tenancy.
func (s *Service) Get(ctx context.Context, caller *shared.Caller, id int64) (*Part, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	scope := caller.OrgScope()
	if scope == shared.ScopeNone || (scope != shared.ScopeAll && p.OrganizationID != scope) {
		return nil, ErrNotFound
	}
	return p, nil
}

// Create validates and inserts a new part.
func (s *Service) Create(ctx context.Context, caller *shared.Caller, p Part) (*Part, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if p.Price < 0 {
		return nil, ErrInvalidPrice
	}
	if p.InvoiceIDs == nil {
		p.InvoiceIDs = []int64{}
	}
	if caller.OrganizationID != 0 {
		p.OrganizationID = caller.OrganizationID
	}
	id, err := s.repo.Create(ctx, p)
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

// Update rewrites part master data (not stock; see Adjust).
func (s *Service) Update(ctx context.Context, caller *shared.Caller, p Part) (*Part, error) {
	existing, err := s.Get(ctx, caller, p.ID)
	if err != nil {
		return nil, err
	}
	if p.Price < 0 {
		return nil, ErrInvalidPrice
	}
	existing.Name = strings.TrimSpace(p.Name)
	existing.SKU = p.SKU
	existing.Price = p.Price
	existing.MinStock = p.MinStock
	if err := s.repo.Update(ctx, *existing); err != nil {
		return nil, err
	}
	updated, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, "UPDATE")
	return updated, nil
}

// Adjust applies a manual stock delta (stocktake, goods receipt).
func (s *Service) Adjust(ctx context.Context, caller *shared.Caller, id int64, delta float64) (*Part, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	if _, err := s.repo.AdjustQuantity(ctx, id, delta); err != nil {
		return nil, err
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, "UPDATE")
	return updated, nil
}

// Delete removes an unreferenced part.
func (s *Service) Delete(ctx context.Context, caller *shared.Caller, id int64) error {
	existing, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, existing, "DELETE")
	return nil
}

// LowStock lists parts at or below their reorder threshold.
func (s *Service) LowStock(ctx context.Context, caller *shared.Caller) ([]Part, error) {
	return s.repo.ListLowStock(ctx, caller.OrgScope())
}

func (s *Service) publish(ctx context.Context, p *Part, kind string) {
	if s.feed == nil || p == nil {
		return
	}
	s.feed.Publish(ctx, "parts", p.OrganizationID, kind, p)
}
