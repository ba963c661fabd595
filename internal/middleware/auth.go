// Package middleware provides HTTP request plumbing: authentication,
// request IDs, rate limiting, and metrics.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"gridgate/internal/domain"
)

// Auth verifies the HS256 bearer token and attaches the resolved
// PrincipalContext to the request context. Tenant resolution and token
// issuance happen upstream; this middleware only unpacks the claims the
// upstream layer stamped into the token: sub (user id), role, and tenant.
func Auth(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "provide a Bearer token")
				return
			}

			token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(t *jwt.Token) (interface{}, error) {
				return jwtSecret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				writeUnauthorized(w, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeUnauthorized(w, "invalid token claims")
				return
			}

			p := domain.PrincipalContext{}
			if sub, ok := claims["sub"].(string); ok {
				p.UserID = sub
			}
			if role, ok := claims["role"].(string); ok {
				p.Role = domain.Role(role)
			}
			if tenant, ok := claims["tenant"].(string); ok {
				p.TenantID = tenant
			}
			if err := p.Validate(); err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			ctx := domain.WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    401,
		"message": "unauthorized: " + message,
	})
}
