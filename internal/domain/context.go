package domain

import "context"

type principalKey struct{}

// WithPrincipal stores a PrincipalContext in the context.
func WithPrincipal(ctx context.Context, p PrincipalContext) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the PrincipalContext from the context.
func PrincipalFromContext(ctx context.Context) (PrincipalContext, bool) {
	p, ok := ctx.Value(principalKey{}).(PrincipalContext)
	return p, ok
}
