package api

import (
	"context"
	"net/http"
	"time"

	"gridgate/internal/domain"
)

// cellStateResponse is the JSON shape of a cell's state.
type cellStateResponse struct {
	Resource string     `json:"resource"`
	RowID    string     `json:"rowId"`
	Column   string     `json:"column"`
	Mode     string     `json:"mode"`
	LockedBy *string    `json:"lockedBy"`
	LockedAt *time.Time `json:"lockedAt"`
	HiddenBy *string    `json:"hiddenBy"`
	HiddenAt *time.Time `json:"hiddenAt"`
}

func cellStateToAPI(s *domain.CellState) cellStateResponse {
	return cellStateResponse{
		Resource: s.Resource,
		RowID:    s.RowID,
		Column:   s.Column,
		Mode:     string(s.Mode),
		LockedBy: s.LockedBy,
		LockedAt: s.LockedAt,
		HiddenBy: s.HiddenBy,
		HiddenAt: s.HiddenAt,
	}
}

// transition adapts one CellStateService transition method into a handler.
// All four transition endpoints share the same request and response shape.
func (h *Handler) transition(apply func(context.Context, domain.PrincipalContext, domain.CellRef) (*domain.CellState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(r)
		if !ok {
			writeError(w, domain.ErrAccessDenied("no principal in request context"))
			return
		}

		var ref domain.CellRef
		if err := decodeBody(r, &ref); err != nil {
			writeError(w, err)
			return
		}

		state, err := apply(r.Context(), p, ref)
		if err != nil {
			h.logError(r, err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cellStateToAPI(state))
	}
}

func (h *Handler) getCellState(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, domain.ErrAccessDenied("no principal in request context"))
		return
	}

	ref := cellRefFromQuery(r)
	state, err := h.cells.State(r.Context(), p, ref)
	if err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cellStateToAPI(state))
}

// getCellAccess is the read-side pre-filter used by the UI layer: it reports
// whether the caller can currently see and edit one cell.
func (h *Handler) getCellAccess(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, domain.ErrAccessDenied("no principal in request context"))
		return
	}

	ref := cellRefFromQuery(r)
	canSee, err := h.cells.CanSeeCell(r.Context(), p, ref)
	if err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}
	canEdit, err := h.cells.CanEditCell(r.Context(), p, ref)
	if err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"canSee":  canSee,
		"canEdit": canEdit,
	})
}

func cellRefFromQuery(r *http.Request) domain.CellRef {
	q := r.URL.Query()
	return domain.CellRef{
		Resource: q.Get("resource"),
		RowID:    q.Get("rowId"),
		Column:   q.Get("column"),
	}
}

func (h *Handler) logError(r *http.Request, err error) {
	if httpStatusFromDomainError(err) >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}
