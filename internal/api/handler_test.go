package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "gridgate/internal/db"
	"gridgate/internal/db/repository"
	"gridgate/internal/domain"
	"gridgate/internal/service"
)

// newTestServer wires the handler over real services and SQLite, with the
// auth middleware replaced by one that injects a fixed principal.
func newTestServer(t *testing.T, p domain.PrincipalContext) (*httptest.Server, *repository.GrantRepo) {
	t.Helper()

	writeDB, readDB := internaldb.OpenTestSQLite(t)
	grantRepo := repository.NewGrantRepo(writeDB)
	resolver := service.NewPermissionResolver(grantRepo, 0, 0, nil)
	cells := service.NewCellStateService(resolver, repository.NewCellStateRepo(writeDB), nil)
	grants := service.NewGrantService(grantRepo, resolver)
	audit := service.NewAuditService(repository.NewAuditRepo(readDB))

	h := NewHandler(cells, resolver, grants, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(domain.WithPrincipal(req.Context(), p)))
		})
	})
	r.Group(h.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, grantRepo
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func memberPrincipal() domain.PrincipalContext {
	return domain.PrincipalContext{UserID: "u1", Role: domain.RoleMember, TenantID: "tenant-1"}
}

func ownerPrincipal() domain.PrincipalContext {
	return domain.PrincipalContext{UserID: "boss", Role: domain.RoleOwner, TenantID: "tenant-1"}
}

func cellBody() domain.CellRef {
	return domain.CellRef{Resource: "orders", RowID: "row-1", Column: "amount"}
}

func TestHandler_LockUnlock(t *testing.T) {
	srv, _ := newTestServer(t, memberPrincipal())

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/cells/lock", cellBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state cellStateResponse
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, "readonly", state.Mode)
	require.NotNil(t, state.LockedBy)
	assert.Equal(t, "u1", *state.LockedBy)

	resp, raw = doJSON(t, http.MethodPost, srv.URL+"/cells/unlock", cellBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, "editable", state.Mode)
	assert.Nil(t, state.LockedBy)
}

func TestHandler_UnlockNeverLockedConflicts(t *testing.T) {
	srv, _ := newTestServer(t, memberPrincipal())

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/cells/unlock", cellBody())
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, http.StatusConflict, body.Code)
	assert.NotEmpty(t, body.Message)
}

func TestHandler_DeniedTransition(t *testing.T) {
	srv, grantRepo := newTestServer(t, memberPrincipal())

	// A matching grant without the lock flag denies the transition.
	_, err := grantRepo.Create(context.Background(), &domain.PermissionGrant{
		ID:         domain.NewID(),
		TenantID:   "tenant-1",
		Scope:      domain.ScopeCell,
		TargetType: domain.TargetAllMembers,
		Target:     domain.TargetLocator{TableID: "orders", RecordID: "row-1", ColumnID: "amount"},
		Actions:    domain.ActionSet{domain.ActionView: true},
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/cells/lock", cellBody())
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, http.StatusForbidden, body.Code)
}

func TestHandler_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, memberPrincipal())

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/cells/lock", map[string]string{
		"resource": "orders",
		"rowId":    "row-1",
		"column":   "amount",
		"bogus":    "field",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing coordinates are rejected before any service call.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/cells/lock", map[string]string{"resource": "orders"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_CellStateAndAccess(t *testing.T) {
	srv, _ := newTestServer(t, memberPrincipal())

	query := "?resource=orders&rowId=row-1&column=amount"
	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/cells/state"+query, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state cellStateResponse
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, "editable", state.Mode)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/cells/access"+query, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var access map[string]bool
	require.NoError(t, json.Unmarshal(raw, &access))
	assert.True(t, access["canSee"])
	assert.True(t, access["canEdit"])

	// Hide the cell; it is no longer visible or editable.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/cells/hide", cellBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/cells/access"+query, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &access))
	assert.False(t, access["canSee"])
	assert.False(t, access["canEdit"])
}

func TestHandler_CheckPermission(t *testing.T) {
	srv, _ := newTestServer(t, memberPrincipal())

	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/permissions/check?scope=table&tableId=orders&action=view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]bool
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.False(t, result["allowed"])

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/permissions/check?scope=cell&tableId=orders&recordId=row-1&columnId=amount&action=edit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result["allowed"])

	// An action that is meaningless at the scope is a 400.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/permissions/check?scope=table&tableId=orders&action=lock", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_GrantLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, ownerPrincipal())

	create := createGrantRequest{
		Scope:      "cell",
		TargetType: "specific_user",
		TargetRef:  "u1",
		Target:     domain.TargetLocator{TableID: "orders", RecordID: "row-1", ColumnID: "amount"},
		Actions:    map[string]bool{"view": true, "lock": true},
	}
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/grants/", create)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created grantResponse
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.NotEmpty(t, created.ID)
	require.NotNil(t, created.GrantedBy)
	assert.Equal(t, "boss", *created.GrantedBy)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/grants/?tableId=orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list paginated[grantResponse]
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, created.ID, list.Data[0].ID)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/grants/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/grants/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_GrantsForbiddenForMembers(t *testing.T) {
	srv, _ := newTestServer(t, memberPrincipal())

	create := createGrantRequest{
		Scope:      "cell",
		TargetType: "all_members",
		Target:     domain.TargetLocator{TableID: "orders", RecordID: "row-1", ColumnID: "amount"},
		Actions:    map[string]bool{"view": true},
	}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/grants/", create)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/grants/?tableId=orders", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandler_ListAudit(t *testing.T) {
	srv, _ := newTestServer(t, memberPrincipal())

	for _, action := range []string{"lock", "unlock"} {
		resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/cells/%s", srv.URL, action), cellBody())
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/audit?resource=orders&rowId=row-1&column=amount", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list paginated[auditEntryResponse]
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Data, 2)
	assert.Equal(t, "unlock", list.Data[0].Action)
	assert.Equal(t, "lock", list.Data[1].Action)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/audit?actorId=u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list.Data, 2)

	// No filter at all is a 400.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/audit", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
