package domain

import "time"

// CellMode is the collaborative state of a single spreadsheet cell.
type CellMode string

const (
	CellEditable CellMode = "editable"
	CellReadonly CellMode = "readonly"
	CellHidden   CellMode = "hidden"
)

// TransitionAction is a cell state transition requested by a collaborator.
type TransitionAction string

const (
	TransitionLock   TransitionAction = "lock"
	TransitionUnlock TransitionAction = "unlock"
	TransitionHide   TransitionAction = "hide"
	TransitionUnhide TransitionAction = "unhide"
)

// Valid reports whether a is a known transition action.
func (a TransitionAction) Valid() bool {
	switch a {
	case TransitionLock, TransitionUnlock, TransitionHide, TransitionUnhide:
		return true
	}
	return false
}

// CellRef addresses one cell: a resource (table) locator, a row, and a
// column. Tenancy is implicit in the resource locator; callers namespace
// resources per tenant when cross-tenant collision is possible.
type CellRef struct {
	Resource string `json:"resource"`
	RowID    string `json:"rowId"`
	Column   string `json:"column"`
}

// Validate checks that all three coordinates are present.
func (r CellRef) Validate() error {
	if r.Resource == "" {
		return ErrValidation("resource is required")
	}
	if r.RowID == "" {
		return ErrValidation("row id is required")
	}
	if r.Column == "" {
		return ErrValidation("column is required")
	}
	return nil
}

// Locator maps the cell address onto a cell-scope permission target.
func (r CellRef) Locator() TargetLocator {
	return TargetLocator{TableID: r.Resource, RecordID: r.RowID, ColumnID: r.Column}
}

// CellState is the persisted state of one cell. A row exists only once the
// cell has been locked or hidden at least once; an absent row reads as
// editable. LockedBy/LockedAt are set iff Mode is readonly; HiddenBy/HiddenAt
// are set iff Mode is hidden.
type CellState struct {
	Resource  string
	RowID     string
	Column    string
	Mode      CellMode
	LockedBy  *string
	LockedAt  *time.Time
	HiddenBy  *string
	HiddenAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ref returns the cell's address.
func (s *CellState) Ref() CellRef {
	return CellRef{Resource: s.Resource, RowID: s.RowID, Column: s.Column}
}

// NewCellState returns the implicit state of a never-touched cell.
func NewCellState(ref CellRef) *CellState {
	return &CellState{
		Resource: ref.Resource,
		RowID:    ref.RowID,
		Column:   ref.Column,
		Mode:     CellEditable,
	}
}

// CellTransition describes one requested state change.
type CellTransition struct {
	Ref     CellRef
	Action  TransitionAction
	ActorID string
	At      time.Time
}
