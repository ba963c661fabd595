package domain

import "time"

// Scope is the granularity level a permission grant applies to.
type Scope string

const (
	ScopeTable  Scope = "table"
	ScopeColumn Scope = "column"
	ScopeRecord Scope = "record"
	ScopeCell   Scope = "cell"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeTable, ScopeColumn, ScopeRecord, ScopeCell:
		return true
	}
	return false
}

// DefaultAllow is the resolution outcome when no grant matches the target.
// Table scope denies by default (a table without grants is invisible to
// non-bypass principals); finer scopes permit by default so that adding
// restrictions is opt-in rather than opt-out.
func (s Scope) DefaultAllow() bool {
	return s != ScopeTable
}

// TargetType identifies who a grant applies to.
type TargetType string

const (
	TargetSpecificUser TargetType = "specific_user"
	TargetSpecificRole TargetType = "specific_role"
	TargetAllMembers   TargetType = "all_members"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetSpecificUser, TargetSpecificRole, TargetAllMembers:
		return true
	}
	return false
}

// precedence returns the selection priority of a target type; lower wins.
func (t TargetType) precedence() int {
	switch t {
	case TargetSpecificUser:
		return 0
	case TargetSpecificRole:
		return 1
	default:
		return 2
	}
}

// Action is a permission action flag carried by a grant.
type Action string

const (
	ActionView          Action = "view"
	ActionEdit          Action = "edit"
	ActionEditStructure Action = "edit_structure"
	ActionEditData      Action = "edit_data"
	ActionAddData       Action = "add_data"
	ActionAddView       Action = "add_view"
	ActionEditView      Action = "edit_view"
	ActionLock          Action = "lock"
	ActionHide          Action = "hide"
)

// scopeActions maps each scope to its fixed set of meaningful actions.
var scopeActions = map[Scope][]Action{
	ScopeTable:  {ActionView, ActionEditStructure, ActionEditData, ActionAddData, ActionAddView, ActionEditView},
	ScopeColumn: {ActionView, ActionEdit},
	ScopeRecord: {ActionView, ActionEdit},
	ScopeCell:   {ActionView, ActionEdit, ActionLock, ActionHide},
}

// ValidActionForScope reports whether the action is meaningful at the scope.
func ValidActionForScope(s Scope, a Action) bool {
	for _, candidate := range scopeActions[s] {
		if candidate == a {
			return true
		}
	}
	return false
}

// ActionSet holds the boolean action flags of a grant.
type ActionSet map[Action]bool

// Allows reports whether the set explicitly permits the action.
// Absent flags read as false: once a grant is selected by precedence,
// its flags are authoritative and are never merged with other grants.
func (s ActionSet) Allows(a Action) bool {
	return s[a]
}

// TargetLocator identifies the concrete object a grant applies to.
// Which fields are required depends on the scope: table scope uses TableID
// alone; column scope adds ColumnID; record scope adds RecordID; cell scope
// uses all three.
type TargetLocator struct {
	TableID  string `json:"tableId"`
	RecordID string `json:"recordId,omitempty"`
	ColumnID string `json:"columnId,omitempty"`
}

// Validate checks that exactly the fields the scope requires are set.
func (l TargetLocator) Validate(scope Scope) error {
	if l.TableID == "" {
		return ErrValidation("table id is required")
	}
	switch scope {
	case ScopeTable:
		if l.RecordID != "" || l.ColumnID != "" {
			return ErrValidation("table scope takes a table id only")
		}
	case ScopeColumn:
		if l.ColumnID == "" {
			return ErrValidation("column scope requires a column id")
		}
		if l.RecordID != "" {
			return ErrValidation("column scope does not take a record id")
		}
	case ScopeRecord:
		if l.RecordID == "" {
			return ErrValidation("record scope requires a record id")
		}
		if l.ColumnID != "" {
			return ErrValidation("record scope does not take a column id")
		}
	case ScopeCell:
		if l.RecordID == "" || l.ColumnID == "" {
			return ErrValidation("cell scope requires both a record id and a column id")
		}
	default:
		return ErrValidation("unknown scope %q", scope)
	}
	return nil
}

// PermissionGrant represents one permission rule scoped to a target.
// At most one grant is effective per (principal, target) pair; when several
// match, precedence (specific_user > specific_role > all_members) picks one.
type PermissionGrant struct {
	ID         string
	TenantID   string
	Scope      Scope
	TargetType TargetType
	TargetRef  string // user id or role name; empty for all_members
	Target     TargetLocator
	Actions    ActionSet
	GrantedBy  *string
	CreatedAt  time.Time
}

// AppliesTo reports whether the grant's target type matches the principal.
func (g *PermissionGrant) AppliesTo(p PrincipalContext) bool {
	switch g.TargetType {
	case TargetSpecificUser:
		return g.TargetRef == p.UserID
	case TargetSpecificRole:
		return g.TargetRef == string(p.Role)
	case TargetAllMembers:
		return true
	}
	return false
}

// Validate checks that the grant is well-formed.
func (g *PermissionGrant) Validate() error {
	if g.TenantID == "" {
		return ErrValidation("tenant id is required")
	}
	if !g.Scope.Valid() {
		return ErrValidation("unknown scope %q", g.Scope)
	}
	if !g.TargetType.Valid() {
		return ErrValidation("unknown target type %q", g.TargetType)
	}
	switch g.TargetType {
	case TargetAllMembers:
		if g.TargetRef != "" {
			return ErrValidation("all_members grants do not take a target ref")
		}
	case TargetSpecificRole:
		if !Role(g.TargetRef).Valid() {
			return ErrValidation("unknown role %q in target ref", g.TargetRef)
		}
	case TargetSpecificUser:
		if g.TargetRef == "" {
			return ErrValidation("specific_user grants require a user id target ref")
		}
	}
	if err := g.Target.Validate(g.Scope); err != nil {
		return err
	}
	if len(g.Actions) == 0 {
		return ErrValidation("at least one action flag is required")
	}
	for a := range g.Actions {
		if !ValidActionForScope(g.Scope, a) {
			return ErrValidation("action %q is not valid at %s scope", a, g.Scope)
		}
	}
	return nil
}

// SelectEffective picks the single winning grant for a principal from the
// grants matching a target, by target-type precedence. Insertion order is
// irrelevant. Returns nil when no grant applies to the principal.
func SelectEffective(grants []PermissionGrant, p PrincipalContext) *PermissionGrant {
	var best *PermissionGrant
	for i := range grants {
		g := &grants[i]
		if !g.AppliesTo(p) {
			continue
		}
		if best == nil || g.TargetType.precedence() < best.TargetType.precedence() {
			best = g
		}
	}
	return best
}
