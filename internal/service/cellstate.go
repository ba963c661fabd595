package service

import (
	"context"
	"errors"
	"time"

	"gridgate/internal/domain"
	"gridgate/internal/metrics"
)

// CellStateService validates and applies cell mode transitions, guarded by
// the PermissionResolver at cell scope. Lock and unlock both require the
// "lock" action; hide and unhide require "hide". A rejected transition
// mutates nothing and appends nothing to the audit ledger.
type CellStateService struct {
	resolver *PermissionResolver
	cells    domain.CellStateRepository
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewCellStateService creates a CellStateService.
func NewCellStateService(resolver *PermissionResolver, cells domain.CellStateRepository, m *metrics.Metrics) *CellStateService {
	return &CellStateService{
		resolver: resolver,
		cells:    cells,
		metrics:  m,
		now:      time.Now,
	}
}

// Lock marks a cell readonly for everyone but the lock holder. Locking an
// already-locked cell is a no-op that returns the standing lock: the first
// committer wins and no second audit entry is appended.
func (s *CellStateService) Lock(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error) {
	return s.apply(ctx, p, ref, domain.TransitionLock, domain.ActionLock)
}

// Unlock returns a locked cell to editable. The cell must currently be
// readonly; unlocking anything else is a ConflictError. Any principal
// holding the cell-scope lock action may unlock, including locks held by
// someone else.
func (s *CellStateService) Unlock(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error) {
	return s.apply(ctx, p, ref, domain.TransitionUnlock, domain.ActionLock)
}

// Hide makes a cell invisible to collaborators. Re-hiding a hidden cell is
// accepted and audited again; HiddenBy/HiddenAt are refreshed each time.
func (s *CellStateService) Hide(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error) {
	return s.apply(ctx, p, ref, domain.TransitionHide, domain.ActionHide)
}

// Unhide returns a hidden (or already editable) cell to editable. A locked
// cell cannot be unhidden.
func (s *CellStateService) Unhide(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error) {
	return s.apply(ctx, p, ref, domain.TransitionUnhide, domain.ActionHide)
}

func (s *CellStateService) apply(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef, action domain.TransitionAction, required domain.Action) (*domain.CellState, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	allowed, err := s.resolver.Resolve(ctx, p, domain.ScopeCell, ref.Locator(), required)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.metrics.ObserveCellTransition(string(action), "denied")
		return nil, domain.ErrAccessDenied("principal %s may not %s cell %s/%s/%s", p.UserID, action, ref.Resource, ref.RowID, ref.Column)
	}

	state, applied, err := s.cells.Apply(ctx, domain.CellTransition{
		Ref:     ref,
		Action:  action,
		ActorID: p.UserID,
		At:      s.now().UTC(),
	})
	if err != nil {
		outcome := "error"
		if errors.As(err, new(*domain.ConflictError)) {
			outcome = "conflict"
		}
		s.metrics.ObserveCellTransition(string(action), outcome)
		return nil, err
	}

	outcome := "applied"
	if !applied {
		outcome = "noop"
	}
	s.metrics.ObserveCellTransition(string(action), outcome)
	return state, nil
}

// State returns the current state of a cell, subject to the resolver's view
// check. A never-touched cell reads as editable.
func (s *CellStateService) State(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	allowed, err := s.resolver.Resolve(ctx, p, domain.ScopeCell, ref.Locator(), domain.ActionView)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrAccessDenied("principal %s may not view cell %s/%s/%s", p.UserID, ref.Resource, ref.RowID, ref.Column)
	}
	return s.currentState(ctx, ref)
}

// CanEditCell reports whether the principal may currently edit the cell:
// the resolver must permit the edit action, the cell must not be hidden,
// and a readonly cell is editable only by the current lock holder.
func (s *CellStateService) CanEditCell(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	allowed, err := s.resolver.Resolve(ctx, p, domain.ScopeCell, ref.Locator(), domain.ActionEdit)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}

	state, err := s.currentState(ctx, ref)
	if err != nil {
		return false, err
	}
	switch state.Mode {
	case domain.CellEditable:
		return true, nil
	case domain.CellReadonly:
		return state.LockedBy != nil && *state.LockedBy == p.UserID, nil
	default:
		return false, nil
	}
}

// CanSeeCell reports whether the principal may currently see the cell:
// false only when the cell is hidden or the resolver denies the view action.
func (s *CellStateService) CanSeeCell(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	allowed, err := s.resolver.Resolve(ctx, p, domain.ScopeCell, ref.Locator(), domain.ActionView)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}

	state, err := s.currentState(ctx, ref)
	if err != nil {
		return false, err
	}
	return state.Mode != domain.CellHidden, nil
}

// currentState reads the persisted state, treating an absent row as the
// implicit editable state. State reads are never cached.
func (s *CellStateService) currentState(ctx context.Context, ref domain.CellRef) (*domain.CellState, error) {
	state, err := s.cells.Get(ctx, ref)
	if err != nil {
		if errors.As(err, new(*domain.NotFoundError)) {
			return domain.NewCellState(ref), nil
		}
		return nil, err
	}
	return state, nil
}
