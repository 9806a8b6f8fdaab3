package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

var (
	// ErrInvalidRole rejects role values outside the fixed set.
	ErrInvalidRole = errors.New("auth: invalid role")
	// ErrWeakPassword rejects passwords below the minimum length.
	ErrWeakPassword = errors.New("auth: password too short")
)

const minPasswordLength = 8

// Service wraps authentication and account management rules. It also backs
// the superadmin console's user actions through orgs.UserAdminPort.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ResolveCaller turns a session user id into a request identity. Deactivated
// accounts resolve to an error so stale sessions get destroyed.
func (s *Service) ResolveCaller(ctx context.Context, userID int64) (*shared.Caller, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrNotFound
	}
	return user.Caller(), nil
}

// RegisterSession persists session metadata for auditing.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// ListUsers returns the accounts visible to the caller.
func (s *Service) ListUsers(ctx context.Context, caller *shared.Caller) ([]User, error) {
	return s.repo.ListByOrganization(ctx, caller.OrgScope())
}

// ChangePassword verifies the current password before setting a new one.
func (s *Service) ChangePassword(ctx context.Context, caller *shared.Caller, current, next string) error {
	user, err := s.repo.FindByID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.record(ctx, caller, "user.change_password", user.ID)
	return nil
}

// CreateUser provisions an account. Satisfies orgs.UserAdminPort.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, role shared.Role, orgID int64) (int64, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}
	user, err := s.repo.Create(ctx, User{
		OrganizationID: orgID,
		Email:          email,
		Name:           name,
		Role:           role,
		PasswordHash:   hash,
	})
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// UpdateUser edits an account's profile, role and tenant. Active sessions
// are revoked so the new role takes effect immediately.
func (s *Service) UpdateUser(ctx context.Context, userID int64, name string, role shared.Role, orgID int64) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := s.repo.Update(ctx, User{ID: userID, Name: name, Role: role, OrganizationID: orgID}); err != nil {
		return err
	}
	return s.repo.DeleteUserSessions(ctx, userID)
}

// DeleteUser deactivates the account and revokes its sessions.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteUserSessions(ctx, userID)
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) record(ctx context.Context, caller *shared.Caller, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:        caller.UserID,
		OrganizationID: caller.OrganizationID,
		Action:         action,
		Entity:         "user",
		EntityID:       fmt.Sprintf("%d", entityID),
	})
}
