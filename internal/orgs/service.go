package orgs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gearbox-hq/gearbox/internal/invoices"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// clock is swapped by tests.
var now = time.Now

// UserAdminPort is the slice of user management the superadmin console
// drives. Implemented by the auth service; kept as an interface here to
// avoid a package cycle.
type UserAdminPort interface {
	CreateUser(ctx context.Context, email, name, password string, role shared.Role, orgID int64) (int64, error)
	UpdateUser(ctx context.Context, userID int64, name string, role shared.Role, orgID int64) error
	DeleteUser(ctx context.Context, userID int64) error
}

// Service implements organization administration, including the privileged
// superadmin console. Handlers guard superadmin operations with
// rbac.RequireSuperadmin; the service trusts its callers on that.
type Service struct {
	repo       RepositoryPort
	users      UserAdminPort
	audit      *shared.AuditLogger
	formatters sync.Map // orgID -> *invoices.MoneyFormatter
}

// NewService builds the service. users and audit may be nil in tests.
func NewService(repo RepositoryPort, users UserAdminPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, users: users, audit: audit}
}

// Get returns the caller's own organization.
func (s *Service) Get(ctx context.Context, caller *shared.Caller) (*Organization, error) {
	if caller.OrganizationID == 0 {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, caller.OrganizationID)
}

// UpdateSettings edits the caller's organization profile and currency.
func (s *Service) UpdateSettings(ctx context.Context, caller *shared.Caller, o Organization) (*Organization, error) {
	current, err := s.Get(ctx, caller)
	if err != nil {
		return nil, err
	}
	o.ID = current.ID
	updated, err := s.repo.Update(ctx, o)
	if err != nil {
		return nil, err
	}
	s.formatters.Delete(o.ID)
	return updated, nil
}

// Formatter returns the money formatter for an organization, cached until
// the currency setting changes.
func (s *Service) Formatter(ctx context.Context, orgID int64) (*invoices.MoneyFormatter, error) {
	if cached, ok := s.formatters.Load(orgID); ok {
		return cached.(*invoices.MoneyFormatter), nil
	}
	org, err := s.repo.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	f := invoices.NewMoneyFormatter(org.Currency)
	s.formatters.Store(orgID, f)
	return f, nil
}

// Subscription returns the caller's organization subscription.
func (s *Service) Subscription(ctx context.Context, caller *shared.Caller) (*Subscription, error) {
	if caller.OrganizationID == 0 {
		return nil, ErrNotFound
	}
	return s.repo.GetSubscription(ctx, caller.OrganizationID)
}

// ExpireSubscriptions is the scheduled sweep flipping lapsed subscriptions.
func (s *Service) ExpireSubscriptions(ctx context.Context) (int64, error) {
	return s.repo.ExpireSubscriptions(ctx, now())
}

// RPCRequest is the superadmin console payload: a named action plus its
// JSON arguments.
type RPCRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type createOrgData struct {
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	TaxRate  float64 `json:"default_tax_rate"`
}

type updateOrgData struct {
	ID int64 `json:"id"`
	createOrgData
}

type deleteOrgData struct {
	ID int64 `json:"id"`
}

type createUserData struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	OrganizationID int64  `json:"organization_id"`
}

type updateUserData struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	OrganizationID int64  `json:"organization_id"`
}

type deleteUserData struct {
	ID int64 `json:"id"`
}

type updateSubscriptionData struct {
	OrganizationID int64     `json:"organization_id"`
	Plan           string    `json:"plan"`
	Status         string    `json:"status"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
}

// Dispatch executes one superadmin RPC action and returns its result.
func (s *Service) Dispatch(ctx context.Context, caller *shared.Caller, req RPCRequest) (any, error) {
	var result any
	var err error

	switch req.Action {
	case "list_organizations":
		result, err = s.repo.List(ctx)

	case "create_organization":
		var data createOrgData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		result, err = s.repo.Create(ctx, Organization{
			Name: data.Name, Currency: data.Currency,
			Phone: data.Phone, Address: data.Address, TaxRate: data.TaxRate,
		})

	case "update_organization":
		var data updateOrgData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		result, err = s.repo.Update(ctx, Organization{
			ID: data.ID, Name: data.Name, Currency: data.Currency,
			Phone: data.Phone, Address: data.Address, TaxRate: data.TaxRate,
		})
		s.formatters.Delete(data.ID)

	case "delete_organization":
		var data deleteOrgData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		var members int
		if members, err = s.repo.MemberCount(ctx, data.ID); err != nil {
			return nil, err
		}
		if members > 0 {
			return nil, ErrHasMembers
		}
		err = s.repo.Delete(ctx, data.ID)

	case "create_user":
		if s.users == nil {
			return nil, fmt.Errorf("%w: user administration not wired", ErrUnknownAction)
		}
		var data createUserData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		var id int64
		id, err = s.users.CreateUser(ctx, data.Email, data.Name, data.Password, shared.Role(data.Role), data.OrganizationID)
		result = map[string]int64{"id": id}

	case "update_user":
		if s.users == nil {
			return nil, fmt.Errorf("%w: user administration not wired", ErrUnknownAction)
		}
		var data updateUserData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		err = s.users.UpdateUser(ctx, data.ID, data.Name, shared.Role(data.Role), data.OrganizationID)

	case "delete_user":
		if s.users == nil {
			return nil, fmt.Errorf("%w: user administration not wired", ErrUnknownAction)
		}
		var data deleteUserData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		err = s.users.DeleteUser(ctx, data.ID)

	case "update_subscription":
		var data updateSubscriptionData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		result, err = s.repo.UpsertSubscription(ctx, Subscription{
			OrganizationID: data.OrganizationID,
			Plan:           data.Plan,
			Status:         SubscriptionStatus(data.Status),
			PeriodStart:    data.PeriodStart,
			PeriodEnd:      data.PeriodEnd,
		})

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	if err != nil {
		return nil, err
	}
	s.record(ctx, caller, req)
	return result, nil
}

func (s *Service) record(ctx context.Context, caller *shared.Caller, req RPCRequest) {
	if s.audit == nil {
		return
	}
	var meta map[string]any
	_ = json.Unmarshal(req.Data, &meta)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  caller.UserID,
		Action:   "superadmin." + req.Action,
		Entity:   "rpc",
		EntityID: req.Action,
		Meta:     meta,
	})
}
