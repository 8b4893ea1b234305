package authware

import (
	"context"
	"fmt"

	"github.com/goliatone/go-router"
)

// PermissionMap reports whether a role holds every named permission.
// Mirrors the auth package's Permissions map.
type PermissionMap interface {
	HasAll(role string, required ...string) bool
}

// OwnershipChecker decides whether a principal may act on a resource.
// Mirrors the auth package's OwnershipResolver.
type OwnershipChecker interface {
	Authorize(ctx context.Context, principal Principal, resourceType, resourceID string) error
}

// OwnershipCheckerFunc adapts a function to the OwnershipChecker interface.
type OwnershipCheckerFunc func(ctx context.Context, principal Principal, resourceType, resourceID string) error

func (f OwnershipCheckerFunc) Authorize(ctx context.Context, principal Principal, resourceType, resourceID string) error {
	return f(ctx, principal, resourceType, resourceID)
}

// AccessError reports a failed authorization decision: which roles or
// permissions the route demands versus what the principal holds. Error
// handlers map it to a 403 naming both sides.
type AccessError struct {
	Kind     string // "role", "permission", or "ownership"
	Required []string
	Current  string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access denied: %s check failed: required %v, current %q", e.Kind, e.Required, e.Current)
}

// GuardConfig configures the authorization guards. Guards assume the
// authentication gate already ran and stored a principal; a request with no
// principal is rejected, never passed through.
type GuardConfig struct {
	ErrorHandler router.ErrorHandler
	PrincipalKey string
	// ResourceParam is the route parameter carrying the resource id for
	// ownership checks; defaults to "id".
	ResourceParam string
}

func (cfg GuardConfig) withDefaults() GuardConfig {
	if cfg.PrincipalKey == "" {
		cfg.PrincipalKey = "principal"
	}
	if cfg.ResourceParam == "" {
		cfg.ResourceParam = "id"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(router.StatusForbidden).SendString(err.Error())
		}
	}
	return cfg
}

func principalFrom(ctx router.Context, key string) (Principal, bool) {
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	principal, ok := raw.(Principal)
	return principal, ok
}

// RequireRoles admits only principals whose role is in the allow-list.
func RequireRoles(cfg GuardConfig, roles ...string) router.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, ok := principalFrom(ctx, cfg.PrincipalKey)
			if !ok {
				return cfg.ErrorHandler(ctx, &AccessError{Kind: "role", Required: roles})
			}

			for _, role := range roles {
				if principal.GetRole() == role {
					return ctx.Next()
				}
			}

			return cfg.ErrorHandler(ctx, &AccessError{
				Kind:     "role",
				Required: roles,
				Current:  principal.GetRole(),
			})
		}
	}
}

// RequirePermissions admits only principals whose role holds every named
// permission under the given permission map.
func RequirePermissions(cfg GuardConfig, permissions PermissionMap, required ...string) router.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, ok := principalFrom(ctx, cfg.PrincipalKey)
			if !ok {
				return cfg.ErrorHandler(ctx, &AccessError{Kind: "permission", Required: required})
			}

			if !permissions.HasAll(principal.GetRole(), required...) {
				return cfg.ErrorHandler(ctx, &AccessError{
					Kind:     "permission",
					Required: required,
					Current:  principal.GetRole(),
				})
			}

			return ctx.Next()
		}
	}
}

// RequireOwnership runs the ownership checker for the resource named by the
// route parameter.
func RequireOwnership(cfg GuardConfig, checker OwnershipChecker, resourceType string) router.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, ok := principalFrom(ctx, cfg.PrincipalKey)
			if !ok {
				return cfg.ErrorHandler(ctx, &AccessError{Kind: "ownership", Required: []string{resourceType}})
			}

			resourceID := ctx.Param(cfg.ResourceParam)
			if err := checker.Authorize(ctx.Context(), principal, resourceType, resourceID); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return ctx.Next()
		}
	}
}
