package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gridgate/internal/domain"
)

// createGrantRequest is the JSON body for creating a permission grant.
type createGrantRequest struct {
	Scope      string               `json:"scope"`
	TargetType string               `json:"targetType"`
	TargetRef  string               `json:"targetRef,omitempty"`
	Target     domain.TargetLocator `json:"target"`
	Actions    map[string]bool      `json:"actions"`
}

// grantResponse is the JSON shape of a permission grant.
type grantResponse struct {
	ID         string               `json:"id"`
	Scope      string               `json:"scope"`
	TargetType string               `json:"targetType"`
	TargetRef  string               `json:"targetRef,omitempty"`
	Target     domain.TargetLocator `json:"target"`
	Actions    map[string]bool      `json:"actions"`
	GrantedBy  *string              `json:"grantedBy,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
}

func grantToAPI(g domain.PermissionGrant) grantResponse {
	actions := make(map[string]bool, len(g.Actions))
	for a, allowed := range g.Actions {
		actions[string(a)] = allowed
	}
	return grantResponse{
		ID:         g.ID,
		Scope:      string(g.Scope),
		TargetType: string(g.TargetType),
		TargetRef:  g.TargetRef,
		Target:     g.Target,
		Actions:    actions,
		GrantedBy:  g.GrantedBy,
		CreatedAt:  g.CreatedAt,
	}
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, domain.ErrAccessDenied("no principal in request context"))
		return
	}

	var body createGrantRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	actions := make(domain.ActionSet, len(body.Actions))
	for a, allowed := range body.Actions {
		actions[domain.Action(a)] = allowed
	}
	grant := &domain.PermissionGrant{
		Scope:      domain.Scope(body.Scope),
		TargetType: domain.TargetType(body.TargetType),
		TargetRef:  body.TargetRef,
		Target:     body.Target,
		Actions:    actions,
	}

	created, err := h.grants.Create(r.Context(), p, grant)
	if err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grantToAPI(*created))
}

func (h *Handler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, domain.ErrAccessDenied("no principal in request context"))
		return
	}

	if err := h.grants.Revoke(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, domain.ErrAccessDenied("no principal in request context"))
		return
	}

	q := r.URL.Query()
	page := pageFromQuery(r)

	grants, total, err := h.grants.ListForTable(r.Context(), p, q.Get("tableId"), page)
	if err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}

	data := make([]grantResponse, len(grants))
	for i, g := range grants {
		data[i] = grantToAPI(g)
	}
	writeJSON(w, http.StatusOK, paginated[grantResponse]{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}
