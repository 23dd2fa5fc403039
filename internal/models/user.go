package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a platform-level user role.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// Tenant-scoped roles. Authorization for tenant resources is always
// evaluated against the membership role, never the platform role.
const (
	TenantRoleAdmin = "admin"
	TenantRoleUser  = "user"
)

// TenantMembership links a user to a tenant with a tenant-scoped role.
type TenantMembership struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Role     string    `json:"role"`
}

// User represents a platform user with per-tenant memberships.
type User struct {
	ID        uuid.UUID          `json:"id"`
	Email     string             `json:"email"`
	Password  string             `json:"-"`
	FullName  string             `json:"full_name"`
	Role      Role               `json:"role"`
	Tenants   []TenantMembership `json:"tenants"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID          `json:"id"`
	Email     string             `json:"email"`
	FullName  string             `json:"full_name"`
	Role      Role               `json:"role"`
	Tenants   []TenantMembership `json:"tenants"`
	CreatedAt time.Time          `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Tenants:   u.Tenants,
		CreatedAt: u.CreatedAt,
	}
}

// Principal is a verified identity attached to a request. It is produced by
// the auth layer and trusted as-is downstream.
type Principal struct {
	ID      uuid.UUID
	Email   string
	Role    Role
	Tenants []TenantMembership
}

// MembershipFor returns the principal's membership for the given tenant, if any.
func (p *Principal) MembershipFor(tenantID uuid.UUID) (TenantMembership, bool) {
	for _, m := range p.Tenants {
		if m.TenantID == tenantID {
			return m, true
		}
	}
	return TenantMembership{}, false
}
