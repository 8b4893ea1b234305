package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithPrincipalContext sets the resolved Principal in the given context
func WithPrincipalContext(r context.Context, principal Principal) context.Context {
	return context.WithValue(r, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterPrincipal extracts the Principal the authentication gate stored
// in the router context under key. An empty key falls back to the default
// used by the middleware.
func GetRouterPrincipal(ctx router.Context, key string) (Principal, bool) {
	if key == "" {
		key = "principal"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return Principal{}, false
	}
	principal, ok := raw.(Principal)
	return principal, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by the gate middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// Can reports whether the principal in the context holds the permission
// under the given permission map.
func Can(ctx context.Context, permissions Permissions, permission string) bool {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}

	return permissions.HasAll(UserRole(principal.Role), permission)
}

// CanFromRouter is Can for router-based request contexts.
func CanFromRouter(ctx router.Context, permissions Permissions, permission string) bool {
	principal, ok := GetRouterPrincipal(ctx, "")
	if !ok {
		return false
	}

	return permissions.HasAll(UserRole(principal.Role), permission)
}
