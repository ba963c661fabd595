package domain

import "context"

// GrantRepository is the persistence port for permission grants.
type GrantRepository interface {
	Create(ctx context.Context, g *PermissionGrant) (*PermissionGrant, error)
	Delete(ctx context.Context, tenantID, id string) error
	// ListForTarget returns every grant matching the exact (scope, locator)
	// pair within a tenant, regardless of target type.
	ListForTarget(ctx context.Context, tenantID string, scope Scope, target TargetLocator) ([]PermissionGrant, error)
	ListForTable(ctx context.Context, tenantID, tableID string, page PageRequest) ([]PermissionGrant, int64, error)
}

// CellStateRepository is the persistence port for cell states. Apply runs
// the transition's conditional write and the matching audit append in one
// transaction: either both commit or neither does. The unique key on
// (resource, rowId, column) is the sole serialization point for concurrent
// transitions on the same cell.
type CellStateRepository interface {
	Get(ctx context.Context, ref CellRef) (*CellState, error)
	// Apply returns the resulting state and whether the transition mutated
	// it. A lock of an already-readonly cell returns (state, false, nil):
	// the first committer wins and no audit entry is appended.
	Apply(ctx context.Context, t CellTransition) (*CellState, bool, error)
}

// AuditRepository is the read-only query port over the audit ledger.
// Appends happen exclusively inside CellStateRepository.Apply; no mutation
// API is exposed.
type AuditRepository interface {
	// ListForCell returns entries for one cell, newest first.
	ListForCell(ctx context.Context, ref CellRef, page PageRequest) ([]AuditEntry, int64, error)
	// ListForActor returns entries recorded for one actor, newest first.
	ListForActor(ctx context.Context, actorID string, page PageRequest) ([]AuditEntry, int64, error)
}
