package repository

import (
	"context"
	"database/sql"

	"gridgate/internal/domain"
)

var _ domain.CellStateRepository = (*CellStateRepo)(nil)

// CellStateRepo implements domain.CellStateRepository using SQLite.
//
// Every transition is a single transaction on the write pool: a conditional
// upsert guarded by the current mode, followed by the audit append when the
// write took effect. The primary key on (resource, row_id, column_name) makes
// concurrent transitions on the same cell linearizable — two simultaneous
// locks of a never-touched cell produce exactly one row and one audit entry.
type CellStateRepo struct {
	db *sql.DB
}

// NewCellStateRepo creates a new CellStateRepo. db must be the write pool.
func NewCellStateRepo(db *sql.DB) *CellStateRepo {
	return &CellStateRepo{db: db}
}

const cellStateColumns = `resource, row_id, column_name, mode, locked_by, locked_at, hidden_by, hidden_at, created_at, updated_at`

// Get returns the persisted state of one cell. A cell that has never been
// locked or hidden has no row; callers treat NotFoundError as editable.
func (r *CellStateRepo) Get(ctx context.Context, ref domain.CellRef) (*domain.CellState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+cellStateColumns+`
		FROM cell_states
		WHERE resource = ? AND row_id = ? AND column_name = ?`,
		ref.Resource, ref.RowID, ref.Column,
	)
	return scanCellState(row)
}

// Apply executes one transition atomically with its audit entry.
func (r *CellStateRepo) Apply(ctx context.Context, t domain.CellTransition) (*domain.CellState, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, mapDBError(err)
	}
	defer func() { _ = tx.Rollback() }()

	applied, err := r.write(ctx, tx, t)
	if err != nil {
		return nil, false, err
	}

	if applied {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_log (id, resource, row_id, column_name, action, actor_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			domain.NewID(), t.Ref.Resource, t.Ref.RowID, t.Ref.Column,
			string(t.Action), t.ActorID, t.At,
		)
		if err != nil {
			return nil, false, mapDBError(err)
		}
	}

	state, err := scanCellState(tx.QueryRowContext(ctx, `
		SELECT `+cellStateColumns+`
		FROM cell_states
		WHERE resource = ? AND row_id = ? AND column_name = ?`,
		t.Ref.Resource, t.Ref.RowID, t.Ref.Column,
	))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, mapDBError(err)
	}
	return state, applied, nil
}

// write performs the mode-guarded state mutation for one transition and
// reports whether it took effect. Transitions the current mode forbids
// return a ConflictError; a lock of an already-locked cell is the one
// benign no-op (first committer wins).
func (r *CellStateRepo) write(ctx context.Context, tx *sql.Tx, t domain.CellTransition) (bool, error) {
	switch t.Action {
	case domain.TransitionLock:
		res, err := tx.ExecContext(ctx, `
			INSERT INTO cell_states (resource, row_id, column_name, mode, locked_by, locked_at, created_at, updated_at)
			VALUES (?, ?, ?, 'readonly', ?, ?, ?, ?)
			ON CONFLICT (resource, row_id, column_name) DO UPDATE SET
				mode = 'readonly',
				locked_by = excluded.locked_by,
				locked_at = excluded.locked_at,
				hidden_by = NULL,
				hidden_at = NULL,
				updated_at = excluded.updated_at
			WHERE cell_states.mode = 'editable'`,
			t.Ref.Resource, t.Ref.RowID, t.Ref.Column, t.ActorID, t.At, t.At, t.At,
		)
		if err != nil {
			return false, mapDBError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, mapDBError(err)
		}
		if n > 0 {
			return true, nil
		}
		// No write: the cell is already readonly (the earlier lock stands)
		// or hidden (locking a hidden cell is not a valid transition).
		mode, err := r.currentMode(ctx, tx, t.Ref)
		if err != nil {
			return false, err
		}
		if mode == domain.CellHidden {
			return false, domain.ErrConflict("cell %s/%s/%s is hidden", t.Ref.Resource, t.Ref.RowID, t.Ref.Column)
		}
		return false, nil

	case domain.TransitionUnlock:
		res, err := tx.ExecContext(ctx, `
			UPDATE cell_states SET
				mode = 'editable',
				locked_by = NULL,
				locked_at = NULL,
				hidden_by = NULL,
				hidden_at = NULL,
				updated_at = ?
			WHERE resource = ? AND row_id = ? AND column_name = ? AND mode = 'readonly'`,
			t.At, t.Ref.Resource, t.Ref.RowID, t.Ref.Column,
		)
		if err != nil {
			return false, mapDBError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, mapDBError(err)
		}
		if n == 0 {
			return false, domain.ErrConflict("cell %s/%s/%s is not locked", t.Ref.Resource, t.Ref.RowID, t.Ref.Column)
		}
		return true, nil

	case domain.TransitionHide:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cell_states (resource, row_id, column_name, mode, hidden_by, hidden_at, created_at, updated_at)
			VALUES (?, ?, ?, 'hidden', ?, ?, ?, ?)
			ON CONFLICT (resource, row_id, column_name) DO UPDATE SET
				mode = 'hidden',
				hidden_by = excluded.hidden_by,
				hidden_at = excluded.hidden_at,
				locked_by = NULL,
				locked_at = NULL,
				updated_at = excluded.updated_at`,
			t.Ref.Resource, t.Ref.RowID, t.Ref.Column, t.ActorID, t.At, t.At, t.At,
		)
		if err != nil {
			return false, mapDBError(err)
		}
		return true, nil

	case domain.TransitionUnhide:
		res, err := tx.ExecContext(ctx, `
			INSERT INTO cell_states (resource, row_id, column_name, mode, created_at, updated_at)
			VALUES (?, ?, ?, 'editable', ?, ?)
			ON CONFLICT (resource, row_id, column_name) DO UPDATE SET
				mode = 'editable',
				hidden_by = NULL,
				hidden_at = NULL,
				updated_at = excluded.updated_at
			WHERE cell_states.mode != 'readonly'`,
			t.Ref.Resource, t.Ref.RowID, t.Ref.Column, t.At, t.At,
		)
		if err != nil {
			return false, mapDBError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, mapDBError(err)
		}
		if n == 0 {
			return false, domain.ErrConflict("cell %s/%s/%s is locked", t.Ref.Resource, t.Ref.RowID, t.Ref.Column)
		}
		return true, nil

	default:
		return false, domain.ErrValidation("unknown transition action %q", t.Action)
	}
}

func (r *CellStateRepo) currentMode(ctx context.Context, tx *sql.Tx, ref domain.CellRef) (domain.CellMode, error) {
	var mode string
	err := tx.QueryRowContext(ctx, `
		SELECT mode FROM cell_states
		WHERE resource = ? AND row_id = ? AND column_name = ?`,
		ref.Resource, ref.RowID, ref.Column,
	).Scan(&mode)
	if err != nil {
		return "", mapDBError(err)
	}
	return domain.CellMode(mode), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCellState(row rowScanner) (*domain.CellState, error) {
	var (
		s                  domain.CellState
		lockedBy, hiddenBy sql.NullString
		lockedAt, hiddenAt sql.NullTime
	)
	err := row.Scan(
		&s.Resource, &s.RowID, &s.Column, &s.Mode,
		&lockedBy, &lockedAt, &hiddenBy, &hiddenAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	s.LockedBy = strPtr(lockedBy)
	s.HiddenBy = strPtr(hiddenBy)
	if lockedAt.Valid {
		t := lockedAt.Time
		s.LockedAt = &t
	}
	if hiddenAt.Valid {
		t := hiddenAt.Time
		s.HiddenAt = &t
	}
	return &s, nil
}
