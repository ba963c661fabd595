package service

import (
	"context"
	"time"

	"gridgate/internal/domain"
)

// GrantService manages permission grants. Grant administration is itself a
// privileged surface: only bypass roles (owner, admin) may create or revoke
// grants, and every mutation invalidates the resolver's cached grant lists
// for the tenant.
type GrantService struct {
	grants   domain.GrantRepository
	resolver *PermissionResolver
	now      func() time.Time
}

// NewGrantService creates a GrantService.
func NewGrantService(grants domain.GrantRepository, resolver *PermissionResolver) *GrantService {
	return &GrantService{grants: grants, resolver: resolver, now: time.Now}
}

// Create validates and persists a new grant for the principal's tenant.
func (s *GrantService) Create(ctx context.Context, p domain.PrincipalContext, g *domain.PermissionGrant) (*domain.PermissionGrant, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.Role.Bypass() {
		return nil, domain.ErrAccessDenied("only owners and admins may manage grants")
	}

	g.ID = domain.NewID()
	g.TenantID = p.TenantID
	g.CreatedAt = s.now().UTC()
	actor := p.UserID
	g.GrantedBy = &actor
	if g.TargetType == domain.TargetAllMembers {
		g.TargetRef = ""
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	created, err := s.grants.Create(ctx, g)
	if err != nil {
		return nil, err
	}
	s.resolver.InvalidateTenant(p.TenantID)
	return created, nil
}

// Revoke deletes a grant by id within the principal's tenant.
func (s *GrantService) Revoke(ctx context.Context, p domain.PrincipalContext, id string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.Role.Bypass() {
		return domain.ErrAccessDenied("only owners and admins may manage grants")
	}
	if id == "" {
		return domain.ErrValidation("grant id is required")
	}

	if err := s.grants.Delete(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.resolver.InvalidateTenant(p.TenantID)
	return nil
}

// ListForTable returns all grants on a table, at every scope.
func (s *GrantService) ListForTable(ctx context.Context, p domain.PrincipalContext, tableID string, page domain.PageRequest) ([]domain.PermissionGrant, int64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	if !p.Role.Bypass() {
		return nil, 0, domain.ErrAccessDenied("only owners and admins may list grants")
	}
	if tableID == "" {
		return nil, 0, domain.ErrValidation("table id is required")
	}
	return s.grants.ListForTable(ctx, p.TenantID, tableID, page)
}
