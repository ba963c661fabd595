package service

import (
	"context"

	"gridgate/internal/domain"
)

// AuditService exposes read-only queries over the transition ledger for
// compliance and debugging. There is no mutation API: entries are written
// only inside the cell-state repository's transaction.
type AuditService struct {
	repo domain.AuditRepository
}

// NewAuditService creates an AuditService.
func NewAuditService(repo domain.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// List returns audit entries matching the filter, newest first. Exactly one
// of Cell or ActorID must be set.
func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	switch {
	case filter.Cell != nil && filter.ActorID != nil:
		return nil, 0, domain.ErrValidation("filter by cell or by actor, not both")
	case filter.Cell != nil:
		if err := filter.Cell.Validate(); err != nil {
			return nil, 0, err
		}
		return s.repo.ListForCell(ctx, *filter.Cell, filter.Page)
	case filter.ActorID != nil:
		if *filter.ActorID == "" {
			return nil, 0, domain.ErrValidation("actor id is required")
		}
		return s.repo.ListForActor(ctx, *filter.ActorID, filter.Page)
	default:
		return nil, 0, domain.ErrValidation("an audit filter is required")
	}
}
