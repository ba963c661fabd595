package repository

import (
	"context"
	"database/sql"

	"gridgate/internal/domain"
)

var _ domain.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implements the read-only domain.AuditRepository over the audit
// ledger. Appends happen inside CellStateRepo.Apply's transaction; this repo
// deliberately exposes no write path.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo. db may be the read pool.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

const auditColumns = `id, resource, row_id, column_name, action, actor_id, created_at`

// ListForCell returns entries for one cell, newest first.
func (r *AuditRepo) ListForCell(ctx context.Context, ref domain.CellRef, page domain.PageRequest) ([]domain.AuditEntry, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_log
		WHERE resource = ? AND row_id = ? AND column_name = ?`,
		ref.Resource, ref.RowID, ref.Column,
	).Scan(&total)
	if err != nil {
		return nil, 0, mapDBError(err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		WHERE resource = ? AND row_id = ? AND column_name = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		ref.Resource, ref.RowID, ref.Column, page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	entries, err := scanAuditEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListForActor returns entries recorded for one actor, newest first.
func (r *AuditRepo) ListForActor(ctx context.Context, actorID string, page domain.PageRequest) ([]domain.AuditEntry, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE actor_id = ?`, actorID,
	).Scan(&total)
	if err != nil {
		return nil, 0, mapDBError(err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		WHERE actor_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		actorID, page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	entries, err := scanAuditEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func scanAuditEntries(rows *sql.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		err := rows.Scan(&e.ID, &e.Resource, &e.RowID, &e.Column, &e.Action, &e.ActorID, &e.CreatedAt)
		if err != nil {
			return nil, mapDBError(err)
		}
		entries = append(entries, e)
	}
	return entries, mapDBError(rows.Err())
}
