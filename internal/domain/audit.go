package domain

import "time"

// AuditEntry is one immutable record of an accepted cell state transition.
// Entries are append-only: they are written inside the same transaction as
// the state change and are never mutated or deleted.
type AuditEntry struct {
	ID        string
	Resource  string
	RowID     string
	Column    string
	Action    TransitionAction
	ActorID   string
	CreatedAt time.Time
}

// AuditFilter narrows audit queries to one cell or one actor.
type AuditFilter struct {
	Cell    *CellRef
	ActorID *string
	Page    PageRequest
}
