package customers

import (
	"context"

	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// FeedPublisher pushes change events to the realtime feed after writes.
type FeedPublisher interface {
	Publish(ctx context.Context, table string, orgID int64, kind string, row any)
}

// Service implements customer and vehicle business logic. List reads go
// through the resilience loader so the dashboard pages behind them share
// in-flight requests and survive transient database hiccups.
type Service struct {
	repo     RepositoryPort
	feed     FeedPublisher
	loader   *loader.Loader[Customer]
	vloader  *loader.Loader[Vehicle]
}

// NewService builds the service.
func NewService(repo RepositoryPort, feed FeedPublisher, customerLoader *loader.Loader[Customer], vehicleLoader *loader.Loader[Vehicle]) *Service {
	return &Service{repo: repo, feed: feed, loader: customerLoader, vloader: vehicleLoader}
}

// List returns customers visible to the caller, optionally filtered by a
// free-text search over name, phone and email.
func (s *Service) List(ctx context.Context, caller *shared.Caller, search string) ([]Customer, error) {
	scope := caller.OrgScope()
	if search != "" || s.loader == nil {
		// searches are not worth deduplicating; keys would rarely collide
		return s.repo.List(ctx, scope, search)
	}
	return s.loader.Load(ctx, "customers", scope, func(ctx context.Context) ([]Customer, error) {
		return s.repo.List(ctx, scope, "")
	})
}

// Get fetches one customer, enforcing tenant visibility.
func (s *Service) Get(ctx context.Context, caller *shared.Caller, id int64) (*Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Elevated() && c.OrganizationID != caller.OrganizationID {
		return nil, ErrNotFound
	}
	return c, nil
}

// Create stores a new customer in the caller's organization.
func (s *Service) Create(ctx context.Context, caller *shared.Caller, c Customer) (*Customer, error) {
	c.OrganizationID = caller.OrganizationID
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, created.OrganizationID, "customers", "INSERT", created)
	return created, nil
}

// Update edits a customer.
func (s *Service) Update(ctx context.Context, caller *shared.Caller, c Customer) (*Customer, error) {
	existing, err := s.Get(ctx, caller, c.ID)
	if err != nil {
		return nil, err
	}
	c.OrganizationID = existing.OrganizationID
	c.CreatedAt = existing.CreatedAt
	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated.OrganizationID, "customers", "UPDATE", updated)
	return updated, nil
}

// Delete removes a customer without vehicles.
func (s *Service) Delete(ctx context.Context, caller *shared.Caller, id int64) error {
	existing, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, existing.OrganizationID, "customers", "DELETE", existing)
	return nil
}

// ListVehicles returns vehicles for the caller, optionally narrowed to one
// customer.
func (s *Service) ListVehicles(ctx context.Context, caller *shared.Caller, customerID int64) ([]Vehicle, error) {
	scope := caller.OrgScope()
	if customerID != 0 || s.vloader == nil {
		return s.repo.ListVehicles(ctx, scope, customerID)
	}
	return s.vloader.Load(ctx, "vehicles", scope, func(ctx context.Context) ([]Vehicle, error) {
		return s.repo.ListVehicles(ctx, scope, 0)
	})
}

// GetVehicle fetches one vehicle, enforcing tenant visibility.
func (s *Service) GetVehicle(ctx context.Context, caller *shared.Caller, id int64) (*Vehicle, error) {
	v, err := s.repo.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Elevated() && v.OrganizationID != caller.OrganizationID {
		return nil, ErrNotFound
	}
	return v, nil
}

// CreateVehicle stores a vehicle under a customer the caller can see.
func (s *Service) CreateVehicle(ctx context.Context, caller *shared.Caller, v Vehicle) (*Vehicle, error) {
	owner, err := s.Get(ctx, caller, v.CustomerID)
	if err != nil {
		return nil, err
	}
	v.OrganizationID = owner.OrganizationID
	created, err := s.repo.CreateVehicle(ctx, v)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, created.OrganizationID, "vehicles", "INSERT", created)
	return created, nil
}

// UpdateVehicle edits a vehicle.
func (s *Service) UpdateVehicle(ctx context.Context, caller *shared.Caller, v Vehicle) (*Vehicle, error) {
	existing, err := s.GetVehicle(ctx, caller, v.ID)
	if err != nil {
		return nil, err
	}
	v.OrganizationID = existing.OrganizationID
	v.CustomerID = existing.CustomerID
	updated, err := s.repo.UpdateVehicle(ctx, v)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated.OrganizationID, "vehicles", "UPDATE", updated)
	return updated, nil
}

// DeleteVehicle removes a vehicle.
func (s *Service) DeleteVehicle(ctx context.Context, caller *shared.Caller, id int64) error {
	existing, err := s.GetVehicle(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteVehicle(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, existing.OrganizationID, "vehicles", "DELETE", existing)
	return nil
}

func (s *Service) publish(ctx context.Context, orgID int64, table, kind string, row any) {
	if s.feed != nil {
		s.feed.Publish(ctx, table, orgID, kind, row)
	}
}
