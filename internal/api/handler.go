// Package api exposes the permission-resolution and cell-state engines over
// HTTP. Handlers translate requests into service calls and typed domain
// errors into status codes; all policy lives in the service layer.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gridgate/internal/domain"
)

// cellStateService defines the cell-state operations used by the handler.
type cellStateService interface {
	Lock(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error)
	Unlock(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error)
	Hide(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error)
	Unhide(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error)
	State(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (*domain.CellState, error)
	CanEditCell(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (bool, error)
	CanSeeCell(ctx context.Context, p domain.PrincipalContext, ref domain.CellRef) (bool, error)
}

// permissionResolver defines the resolution operation used by the handler.
type permissionResolver interface {
	Resolve(ctx context.Context, p domain.PrincipalContext, scope domain.Scope, target domain.TargetLocator, action domain.Action) (bool, error)
}

// grantService defines the grant management operations used by the handler.
type grantService interface {
	Create(ctx context.Context, p domain.PrincipalContext, g *domain.PermissionGrant) (*domain.PermissionGrant, error)
	Revoke(ctx context.Context, p domain.PrincipalContext, id string) error
	ListForTable(ctx context.Context, p domain.PrincipalContext, tableID string, page domain.PageRequest) ([]domain.PermissionGrant, int64, error)
}

// auditService defines the audit query operations used by the handler.
type auditService interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error)
}

// Handler is the HTTP API handler.
type Handler struct {
	cells    cellStateService
	resolver permissionResolver
	grants   grantService
	audit    auditService
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(cells cellStateService, resolver permissionResolver, grants grantService, audit auditService, logger *slog.Logger) *Handler {
	return &Handler{
		cells:    cells,
		resolver: resolver,
		grants:   grants,
		audit:    audit,
		logger:   logger,
	}
}

// Routes mounts all endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cells", func(r chi.Router) {
		r.Post("/lock", h.transition(h.cells.Lock))
		r.Post("/unlock", h.transition(h.cells.Unlock))
		r.Post("/hide", h.transition(h.cells.Hide))
		r.Post("/unhide", h.transition(h.cells.Unhide))
		r.Get("/state", h.getCellState)
		r.Get("/access", h.getCellAccess)
	})

	r.Get("/permissions/check", h.checkPermission)

	r.Route("/grants", func(r chi.Router) {
		r.Post("/", h.createGrant)
		r.Get("/", h.listGrants)
		r.Delete("/{id}", h.revokeGrant)
	})

	r.Get("/audit", h.listAudit)
}

// principal extracts the PrincipalContext the auth middleware attached.
func principal(r *http.Request) (domain.PrincipalContext, bool) {
	return domain.PrincipalFromContext(r.Context())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}
