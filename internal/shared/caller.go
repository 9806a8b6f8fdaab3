package shared

// Role enumerates the fixed roles a user account can hold. Permissions are
// derived from the role by the rbac package; there is no per-user grant table.
type Role string

const (
	RoleSuperadmin   Role = "superadmin"
	RoleOwner        Role = "owner"
	RoleManager      Role = "manager"
	RoleAccountant   Role = "accountant"
	RoleMechanic     Role = "mechanic"
	RoleReceptionist Role = "receptionist"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleOwner, RoleManager, RoleAccountant, RoleMechanic, RoleReceptionist:
		return true
	}
	return false
}

// Caller describes the authenticated actor attached to a request.
// OrganizationID is zero for superadmins, who operate across tenants.
type Caller struct {
	UserID         int64
	Email          string
	Role           Role
	OrganizationID int64
}

// Elevated reports whether the caller bypasses organization scoping.
func (c *Caller) Elevated() bool {
	return c != nil && (c.Role == RoleSuperadmin || c.Role == RoleOwner)
}

// OrgScope returns the organization filter the caller's reads must carry.
// Elevated callers read unscoped (ScopeAll); a non-elevated caller without an
// organization gets ScopeNone, which repositories answer with an empty set
// rather than an error. Everyone else is pinned to their own organization.
func (c *Caller) OrgScope() int64 {
	if c == nil {
		return ScopeNone
	}
	if c.Elevated() {
		return ScopeAll
	}
	if c.OrganizationID == 0 {
		return ScopeNone
	}
	return c.OrganizationID
}

// Sentinel scopes returned by OrgScope.
const (
	ScopeAll  int64 = 0
	ScopeNone int64 = -1
)
