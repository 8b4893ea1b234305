package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-booking-auth/middleware/authware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RefreshTokenCookie is the fallback delivery channel for refresh tokens.
// Clients that cannot hold the token in storage get it as an HTTP-only
// cookie; the request body takes precedence when both are present.
const RefreshTokenCookie = "refresh_token"

// RouteAuthenticator adapts the Authenticator to HTTP: it builds the gate
// and guard middleware and owns the JSON error mapping for every auth
// failure mode.
type RouteAuthenticator struct {
	auth         *Auther
	cfg          Config
	permissions  Permissions
	ownership    *OwnershipResolver
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, errors.New("authenticator is required", errors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		cfg:         cfg,
		auth:        auther,
		permissions: DefaultPermissions(),
		ownership:   NewOwnershipResolver(),
		Logger:      defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithPermissions(p Permissions) *RouteAuthenticator {
	if p != nil {
		a.permissions = p
	}
	return a
}

func (a *RouteAuthenticator) WithOwnership(o *OwnershipResolver) *RouteAuthenticator {
	if o != nil {
		a.ownership = o
	}
	return a
}

func (a *RouteAuthenticator) WithLogger(l Logger) *RouteAuthenticator {
	if l != nil {
		a.Logger = l
	}
	return a
}

// Auth returns the underlying Authenticator.
func (a *RouteAuthenticator) Auth() *Auther {
	return a.auth
}

// ProtectedRoute gates a route: bearer token verified, principal resolved
// and stored in the request context.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return authware.New(a.gateConfig(false))
}

// OptionalRoute runs the same gate but degrades every failure to an
// anonymous request instead of rejecting it.
func (a *RouteAuthenticator) OptionalRoute() router.MiddlewareFunc {
	return authware.New(a.gateConfig(true))
}

// RequireRoles admits only the listed roles. Stack after ProtectedRoute.
func (a *RouteAuthenticator) RequireRoles(roles ...string) router.MiddlewareFunc {
	return authware.RequireRoles(a.guardConfig(), roles...)
}

// RequirePermissions admits only roles holding every listed permission.
func (a *RouteAuthenticator) RequirePermissions(required ...string) router.MiddlewareFunc {
	return authware.RequirePermissions(a.guardConfig(), a.permissions, required...)
}

// RequireOwnership checks resource ownership for the route's id parameter.
func (a *RouteAuthenticator) RequireOwnership(resourceType string) router.MiddlewareFunc {
	return authware.RequireOwnership(a.guardConfig(), a.ownershipChecker(), resourceType)
}

func (a *RouteAuthenticator) gateConfig(optional bool) authware.Config {
	return authware.Config{
		Optional:     optional,
		ErrorHandler: a.MakeGateErrorHandler(),
		ContextKey:   a.cfg.GetContextKey(),
		PrincipalKey: "principal",
		TokenLookup:  a.cfg.GetTokenLookup(),
		AuthScheme:   a.cfg.GetAuthScheme(),
		Verifier: authware.TokenVerifierFunc(func(token string) (authware.AuthClaims, error) {
			claims, err := a.auth.TokenService().VerifyAccess(token)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		Resolver: authware.PrincipalResolverFunc(func(ctx context.Context, userID string) (authware.Principal, error) {
			principal, err := a.auth.ResolvePrincipal(ctx, userID)
			if err != nil {
				return nil, err
			}
			return principal, nil
		}),
	}
}

func (a *RouteAuthenticator) guardConfig() authware.GuardConfig {
	return authware.GuardConfig{
		ErrorHandler: a.MakeGateErrorHandler(),
		PrincipalKey: "principal",
	}
}

func (a *RouteAuthenticator) ownershipChecker() authware.OwnershipChecker {
	return authware.OwnershipCheckerFunc(func(ctx context.Context, principal authware.Principal, resourceType, resourceID string) error {
		return a.ownership.Authorize(ctx, Principal{
			ID:       principal.GetID(),
			Email:    principal.GetEmail(),
			Username: principal.GetUsername(),
			Role:     principal.GetRole(),
		}, resourceType, resourceID)
	})
}

// MakeGateErrorHandler translates every gate and guard failure into the
// structured JSON contract. All token-shaped failures collapse to 401, a
// locked account to 423, authorization failures to 403 naming required
// versus current.
func (a *RouteAuthenticator) MakeGateErrorHandler() func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var accessErr *authware.AccessError
		var richErr *errors.Error

		switch {
		case errors.Is(err, authware.ErrTokenMissingOrMalformed):
			richErr = ErrMissingToken
		case errors.As(err, &accessErr):
			base := ErrInsufficientRole
			if accessErr.Kind != "role" {
				base = ErrInsufficientPermission
			}
			richErr = withMeta(base, map[string]any{
				"required": accessErr.Required,
				"current":  accessErr.Current,
			})
		case IsTokenExpiredError(err):
			richErr = ErrTokenExpired
		case errors.As(err, &richErr):
			// already structured: locked, principal gone, forbidden
		case IsMalformedError(err):
			richErr = ErrTokenMalformed
		default:
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

// SetRefreshCookie stores the refresh token as an HTTP-only cookie scoped
// to the refresh endpoint.
func (a *RouteAuthenticator) SetRefreshCookie(c router.Context, token string, lifetime time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     RefreshTokenCookie,
		Value:    token,
		Expires:  time.Now().Add(lifetime),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearRefreshCookie expires the refresh cookie.
func (a *RouteAuthenticator) ClearRefreshCookie(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     RefreshTokenCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"request rejected",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return RespondError(c, richErr)
}

// RespondError writes the structured error envelope with the status carried
// by the error itself; anything without a usable code is a 500.
func RespondError(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}

	body := map[string]any{
		"success":   false,
		"message":   richErr.Message,
		"text_code": richErr.TextCode,
	}

	if len(richErr.Metadata) > 0 {
		body["details"] = richErr.Metadata
	}

	return c.JSON(status, body)
}
