package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface on top
// of the TokenService, so realtime booking channels authenticate with the
// same access tokens as the HTTP surface.
type WSTokenValidator struct {
	tokenService TokenService
}

// NewWSTokenValidator returns a WebSocket token validator backed by the
// provided TokenService.
func NewWSTokenValidator(tokenService TokenService) *WSTokenValidator {
	return &WSTokenValidator{
		tokenService: tokenService,
	}
}

// Validate verifies an access token and returns WebSocket-compatible claims.
// Refresh tokens are rejected here: they are signed with a different secret
// and never grant channel access.
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.VerifyAccess(tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter adapts AuthClaims to go-router's WSAuthClaims interface.
type WSAuthClaimsAdapter struct {
	claims AuthClaims
}

func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.Subject()
}

func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.UserID()
}

func (w *WSAuthClaimsAdapter) Role() string {
	return w.claims.Role()
}

func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.claims.CanRead(resource)
}

func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.claims.CanEdit(resource)
}

func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.claims.CanCreate(resource)
}

func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.claims.CanDelete(resource)
}

func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return w.claims.HasRole(role)
}

func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	return w.claims.IsAtLeast(minRole)
}

// NewWSAuthMiddleware creates a WebSocket authentication middleware that
// validates tokens with this Authenticator's TokenService. The validator on
// the given config is always replaced.
func (a *Auther) NewWSAuthMiddleware(config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(a.tokenService)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext retrieves the AuthClaims attached by the WebSocket
// middleware. It returns false when the connection was authenticated by a
// validator other than WSTokenValidator.
func WSAuthClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}
