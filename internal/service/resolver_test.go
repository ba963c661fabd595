package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridgate/internal/domain"
)

// fakeGrantRepo is an in-memory GrantRepository that counts ListForTarget
// calls so tests can observe whether the resolver hit its cache.
type fakeGrantRepo struct {
	grants    []domain.PermissionGrant
	listCalls int
}

func (f *fakeGrantRepo) Create(_ context.Context, g *domain.PermissionGrant) (*domain.PermissionGrant, error) {
	f.grants = append(f.grants, *g)
	return g, nil
}

func (f *fakeGrantRepo) Delete(_ context.Context, tenantID, id string) error {
	for i, g := range f.grants {
		if g.TenantID == tenantID && g.ID == id {
			f.grants = append(f.grants[:i], f.grants[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound("grant %s not found", id)
}

func (f *fakeGrantRepo) ListForTarget(_ context.Context, tenantID string, scope domain.Scope, target domain.TargetLocator) ([]domain.PermissionGrant, error) {
	f.listCalls++
	var out []domain.PermissionGrant
	for _, g := range f.grants {
		if g.TenantID == tenantID && g.Scope == scope && g.Target == target {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrantRepo) ListForTable(_ context.Context, tenantID, tableID string, _ domain.PageRequest) ([]domain.PermissionGrant, int64, error) {
	var out []domain.PermissionGrant
	for _, g := range f.grants {
		if g.TenantID == tenantID && g.Target.TableID == tableID {
			out = append(out, g)
		}
	}
	return out, int64(len(out)), nil
}

func member(userID string) domain.PrincipalContext {
	return domain.PrincipalContext{UserID: userID, Role: domain.RoleMember, TenantID: "tenant-1"}
}

func cellTarget() domain.TargetLocator {
	return domain.TargetLocator{TableID: "orders", RecordID: "row-1", ColumnID: "amount"}
}

func grantFor(targetType domain.TargetType, targetRef string, actions domain.ActionSet) domain.PermissionGrant {
	return domain.PermissionGrant{
		ID:         domain.NewID(),
		TenantID:   "tenant-1",
		Scope:      domain.ScopeCell,
		TargetType: targetType,
		TargetRef:  targetRef,
		Target:     cellTarget(),
		Actions:    actions,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestResolver_BypassRoles(t *testing.T) {
	repo := &fakeGrantRepo{}
	r := NewPermissionResolver(repo, 0, 0, nil)
	ctx := context.Background()

	for _, role := range []domain.Role{domain.RoleOwner, domain.RoleAdmin} {
		p := domain.PrincipalContext{UserID: "u1", Role: role, TenantID: "tenant-1"}
		allowed, err := r.Resolve(ctx, p, domain.ScopeTable, domain.TargetLocator{TableID: "orders"}, domain.ActionView)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	// Bypass never touches the grant store.
	assert.Zero(t, repo.listCalls)
}

func TestResolver_DefaultsByScope(t *testing.T) {
	r := NewPermissionResolver(&fakeGrantRepo{}, 0, 0, nil)
	ctx := context.Background()
	p := member("u1")

	// No grants: table scope denies, finer scopes permit.
	allowed, err := r.Resolve(ctx, p, domain.ScopeTable, domain.TargetLocator{TableID: "orders"}, domain.ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = r.Resolve(ctx, p, domain.ScopeColumn, domain.TargetLocator{TableID: "orders", ColumnID: "amount"}, domain.ActionEdit)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = r.Resolve(ctx, p, domain.ScopeRecord, domain.TargetLocator{TableID: "orders", RecordID: "row-1"}, domain.ActionView)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = r.Resolve(ctx, p, domain.ScopeCell, cellTarget(), domain.ActionLock)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestResolver_Precedence(t *testing.T) {
	repo := &fakeGrantRepo{grants: []domain.PermissionGrant{
		grantFor(domain.TargetAllMembers, "", domain.ActionSet{domain.ActionEdit: true}),
		grantFor(domain.TargetSpecificRole, "member", domain.ActionSet{domain.ActionEdit: true}),
		grantFor(domain.TargetSpecificUser, "u1", domain.ActionSet{domain.ActionEdit: false, domain.ActionView: true}),
	}}
	r := NewPermissionResolver(repo, 0, 0, nil)
	ctx := context.Background()

	// The user grant wins for u1 even though role and all-members allow.
	allowed, err := r.Resolve(ctx, member("u1"), domain.ScopeCell, cellTarget(), domain.ActionEdit)
	require.NoError(t, err)
	assert.False(t, allowed)

	// The selected grant's flags are authoritative, not merged.
	allowed, err = r.Resolve(ctx, member("u1"), domain.ScopeCell, cellTarget(), domain.ActionView)
	require.NoError(t, err)
	assert.True(t, allowed)

	// A different member falls through to the role grant.
	allowed, err = r.Resolve(ctx, member("u2"), domain.ScopeCell, cellTarget(), domain.ActionEdit)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestResolver_SelectedGrantOverridesDefault(t *testing.T) {
	// A matching grant that omits the action denies it, even at scopes
	// whose no-grant default is permit.
	repo := &fakeGrantRepo{grants: []domain.PermissionGrant{
		grantFor(domain.TargetAllMembers, "", domain.ActionSet{domain.ActionView: true}),
	}}
	r := NewPermissionResolver(repo, 0, 0, nil)

	allowed, err := r.Resolve(context.Background(), member("u1"), domain.ScopeCell, cellTarget(), domain.ActionLock)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestResolver_ValidatesInput(t *testing.T) {
	r := NewPermissionResolver(&fakeGrantRepo{}, 0, 0, nil)
	ctx := context.Background()
	var validation *domain.ValidationError

	// Action not meaningful at the scope.
	_, err := r.Resolve(ctx, member("u1"), domain.ScopeTable, domain.TargetLocator{TableID: "orders"}, domain.ActionLock)
	require.ErrorAs(t, err, &validation)

	// Locator missing the fields the scope requires.
	_, err = r.Resolve(ctx, member("u1"), domain.ScopeCell, domain.TargetLocator{TableID: "orders"}, domain.ActionLock)
	require.ErrorAs(t, err, &validation)

	// Incomplete principal.
	_, err = r.Resolve(ctx, domain.PrincipalContext{UserID: "u1"}, domain.ScopeCell, cellTarget(), domain.ActionLock)
	require.ErrorAs(t, err, &validation)
}

func TestResolver_CachesGrantLists(t *testing.T) {
	repo := &fakeGrantRepo{grants: []domain.PermissionGrant{
		grantFor(domain.TargetSpecificUser, "u1", domain.ActionSet{domain.ActionLock: true}),
	}}
	r := NewPermissionResolver(repo, 128, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := r.Resolve(ctx, member("u1"), domain.ScopeCell, cellTarget(), domain.ActionLock)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.Equal(t, 1, repo.listCalls)

	// A different locator is a separate cache entry.
	other := cellTarget()
	other.ColumnID = "status"
	_, err := r.Resolve(ctx, member("u1"), domain.ScopeCell, other, domain.ActionLock)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestResolver_InvalidateTenant(t *testing.T) {
	repo := &fakeGrantRepo{}
	r := NewPermissionResolver(repo, 128, time.Minute, nil)
	ctx := context.Background()

	allowed, err := r.Resolve(ctx, member("u1"), domain.ScopeCell, cellTarget(), domain.ActionLock)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, repo.listCalls)

	// A new deny grant appears; until invalidation the cached empty list
	// still answers.
	repo.grants = append(repo.grants, grantFor(domain.TargetSpecificUser, "u1", domain.ActionSet{}))
	allowed, err = r.Resolve(ctx, member("u1"), domain.ScopeCell, cellTarget(), domain.ActionLock)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, repo.listCalls)

	r.InvalidateTenant("tenant-1")
	allowed, err = r.Resolve(ctx, member("u1"), domain.ScopeCell, cellTarget(), domain.ActionLock)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, repo.listCalls)
}
