package domain

// Role is a tenant-scoped role carried by every principal.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return true
	}
	return false
}

// Bypass reports whether the role is exempt from grant evaluation.
// Owners and admins are always permitted, for every scope and action.
func (r Role) Bypass() bool {
	return r == RoleOwner || r == RoleAdmin
}

// PrincipalContext is the resolved identity attached to every request.
// It is supplied by the upstream auth/tenant-resolution layer; the core
// trusts it and performs no token verification itself.
type PrincipalContext struct {
	UserID   string
	Role     Role
	TenantID string
}

// Validate checks that the principal is well-formed.
func (p PrincipalContext) Validate() error {
	if p.UserID == "" {
		return ErrValidation("principal user id is required")
	}
	if p.TenantID == "" {
		return ErrValidation("principal tenant id is required")
	}
	if !p.Role.Valid() {
		return ErrValidation("unknown role %q", p.Role)
	}
	return nil
}
