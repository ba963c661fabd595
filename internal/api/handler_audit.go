package api

import (
	"net/http"
	"strconv"
	"time"

	"gridgate/internal/domain"
)

// paginated is the standard list envelope.
type paginated[T any] struct {
	Data          []T    `json:"data"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// auditEntryResponse is the JSON shape of one audit ledger entry.
type auditEntryResponse struct {
	ID        string    `json:"id"`
	Resource  string    `json:"resource"`
	RowID     string    `json:"rowId"`
	Column    string    `json:"column"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actorId"`
	CreatedAt time.Time `json:"createdAt"`
}

func auditEntryToAPI(e domain.AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:        e.ID,
		Resource:  e.Resource,
		RowID:     e.RowID,
		Column:    e.Column,
		Action:    string(e.Action),
		ActorID:   e.ActorID,
		CreatedAt: e.CreatedAt,
	}
}

// checkPermission implements the pre-filter endpoint the UI layer uses to
// decide what to render. It never mutates state.
func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		writeError(w, domain.ErrAccessDenied("no principal in request context"))
		return
	}

	q := r.URL.Query()
	scope := domain.Scope(q.Get("scope"))
	target := domain.TargetLocator{
		TableID:  q.Get("tableId"),
		RecordID: q.Get("recordId"),
		ColumnID: q.Get("columnId"),
	}
	action := domain.Action(q.Get("action"))

	allowed, err := h.resolver.Resolve(r.Context(), p, scope, target, action)
	if err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(r); !ok {
		writeError(w, domain.ErrAccessDenied("no principal in request context"))
		return
	}

	q := r.URL.Query()
	page := pageFromQuery(r)
	filter := domain.AuditFilter{Page: page}

	if actor := q.Get("actorId"); actor != "" {
		filter.ActorID = &actor
	}
	if q.Get("resource") != "" || q.Get("rowId") != "" || q.Get("column") != "" {
		ref := cellRefFromQuery(r)
		filter.Cell = &ref
	}

	entries, total, err := h.audit.List(r.Context(), filter)
	if err != nil {
		h.logError(r, err)
		writeError(w, err)
		return
	}

	data := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		data[i] = auditEntryToAPI(e)
	}
	writeJSON(w, http.StatusOK, paginated[auditEntryResponse]{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func pageFromQuery(r *http.Request) domain.PageRequest {
	q := r.URL.Query()
	page := domain.PageRequest{PageToken: q.Get("pageToken")}
	if raw := q.Get("maxResults"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			page.MaxResults = n
		}
	}
	return page
}
