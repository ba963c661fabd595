package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gridgate/internal/domain"
)

var _ domain.GrantRepository = (*GrantRepo)(nil)

// GrantRepo implements domain.GrantRepository using SQLite.
type GrantRepo struct {
	db *sql.DB
}

// NewGrantRepo creates a new GrantRepo.
func NewGrantRepo(db *sql.DB) *GrantRepo {
	return &GrantRepo{db: db}
}

const grantColumns = `id, tenant_id, scope, target_type, target_ref, table_id, record_id, column_id, actions, granted_by, created_at`

// Create inserts a new permission grant. A duplicate (tenant, scope, target
// type, target ref, locator) combination yields a ConflictError: at most one
// grant may exist per (principal, target) pair.
func (r *GrantRepo) Create(ctx context.Context, g *domain.PermissionGrant) (*domain.PermissionGrant, error) {
	actions, err := json.Marshal(g.Actions)
	if err != nil {
		return nil, fmt.Errorf("marshal actions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO permission_grants (`+grantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.TenantID, string(g.Scope), string(g.TargetType), g.TargetRef,
		g.Target.TableID, g.Target.RecordID, g.Target.ColumnID,
		string(actions), nullStr(g.GrantedBy), g.CreatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	return g, nil
}

// Delete removes a grant by id within a tenant.
func (r *GrantRepo) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapDBError(err)
	}
	if n == 0 {
		return domain.ErrNotFound("grant %s not found", id)
	}
	return nil
}

// ListForTarget returns every grant matching the exact (scope, locator) pair.
func (r *GrantRepo) ListForTarget(ctx context.Context, tenantID string, scope domain.Scope, target domain.TargetLocator) ([]domain.PermissionGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM permission_grants
		WHERE tenant_id = ? AND scope = ? AND table_id = ? AND record_id = ? AND column_id = ?`,
		tenantID, string(scope), target.TableID, target.RecordID, target.ColumnID,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListForTable returns a paginated list of all grants on a table, at every scope.
func (r *GrantRepo) ListForTable(ctx context.Context, tenantID, tableID string, page domain.PageRequest) ([]domain.PermissionGrant, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM permission_grants WHERE tenant_id = ? AND table_id = ?`,
		tenantID, tableID,
	).Scan(&total)
	if err != nil {
		return nil, 0, mapDBError(err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM permission_grants
		WHERE tenant_id = ? AND table_id = ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?`,
		tenantID, tableID, page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	grants, err := scanGrants(rows)
	if err != nil {
		return nil, 0, err
	}
	return grants, total, nil
}

func scanGrants(rows *sql.Rows) ([]domain.PermissionGrant, error) {
	var grants []domain.PermissionGrant
	for rows.Next() {
		var (
			g         domain.PermissionGrant
			actions   string
			grantedBy sql.NullString
		)
		err := rows.Scan(
			&g.ID, &g.TenantID, &g.Scope, &g.TargetType, &g.TargetRef,
			&g.Target.TableID, &g.Target.RecordID, &g.Target.ColumnID,
			&actions, &grantedBy, &g.CreatedAt,
		)
		if err != nil {
			return nil, mapDBError(err)
		}
		if err := json.Unmarshal([]byte(actions), &g.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal actions for grant %s: %w", g.ID, err)
		}
		g.GrantedBy = strPtr(grantedBy)
		grants = append(grants, g)
	}
	return grants, mapDBError(rows.Err())
}
