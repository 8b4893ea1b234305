package auth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API consumers alongside the HTTP status.
const (
	TextCodeTokenMissing       = "AUTH_TOKEN_MISSING"
	TextCodeTokenMalformed     = "AUTH_TOKEN_MALFORMED"
	TextCodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	TextCodeInvalidCreds       = "AUTH_INVALID_CREDENTIALS"
	TextCodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	TextCodePrincipalGone      = "AUTH_PRINCIPAL_UNAVAILABLE"
	TextCodeInvalidRefresh     = "AUTH_INVALID_REFRESH_TOKEN"
	TextCodeInsufficientRole   = "AUTHZ_INSUFFICIENT_ROLE"
	TextCodeInsufficientPerms  = "AUTHZ_INSUFFICIENT_PERMISSION"
	TextCodeDuplicateIdentity  = "AUTH_DUPLICATE_IDENTITY"
	TextCodeValidationFailure  = "AUTH_VALIDATION_FAILURE"
	TextCodeEmptyPassword      = "AUTH_EMPTY_PASSWORD"
	TextCodeIdentityNotFound   = "AUTH_IDENTITY_NOT_FOUND"
	TextCodeRoleNotAssignable  = "AUTH_ROLE_NOT_ASSIGNABLE"
	TextCodeSessionDecodeError = "AUTH_SESSION_DECODE_ERROR"
)

// HTTP 423; go-errors has no named constant for it.
const StatusAccountLocked = http.StatusLocked

// ErrMissingToken is returned when a request carries no bearer token.
var ErrMissingToken = goerrors.New("access token is required", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers tokens that fail signature or structural checks.
var ErrTokenMalformed = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry claim.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is the single error for bad password, unknown
// identifier, or deactivated account. Keeping them identical prevents
// account enumeration.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountLocked is returned while a lockout window is active.
var ErrAccountLocked = goerrors.New("account temporarily locked due to too many failed login attempts", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountLocked).
	WithCode(StatusAccountLocked)

// ErrPrincipalUnavailable is returned when a verified token references a
// principal that no longer exists or has been deactivated.
var ErrPrincipalUnavailable = goerrors.New("user not found or inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodePrincipalGone).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidRefreshToken covers revoked, rotated, expired, and foreign
// refresh tokens.
var ErrInvalidRefreshToken = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefresh).
	WithCode(goerrors.CodeUnauthorized)

// ErrInsufficientRole is returned by the role gate; metadata carries the
// required and current roles.
var ErrInsufficientRole = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(goerrors.CodeForbidden)

// ErrInsufficientPermission is returned by the permission gate.
var ErrInsufficientPermission = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientPerms).
	WithCode(goerrors.CodeForbidden)

// ErrDuplicateIdentity is the translation of a storage duplicate-key
// violation; metadata names the conflicting field.
var ErrDuplicateIdentity = goerrors.New("identity already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRoleNotAssignable is returned when an actor attempts to assign a role
// above their own grant authority.
var ErrRoleNotAssignable = goerrors.New("role is not assignable by the current actor", goerrors.CategoryAuthz).
	WithTextCode(TextCodeRoleNotAssignable).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString rejects empty plaintext passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the internal bcrypt mismatch signal; the
// login protocol maps it to ErrInvalidCredentials before it reaches a caller.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode claims from a bearer token
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// ValidationError builds the 400 response for payload validation failures.
// Each violation is carried as its own message so the client can render all
// of them at once.
// withMeta clones a shared sentinel before attaching per-request metadata,
// so the package-level error values stay pristine.
func withMeta(err *goerrors.Error, md map[string]any) *goerrors.Error {
	clone := err.Clone()
	if clone == nil {
		return err
	}
	return clone.WithMetadata(md)
}

func ValidationError(messages []string) *goerrors.Error {
	return goerrors.New("validation failed", goerrors.CategoryValidation).
		WithTextCode(TextCodeValidationFailure).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"errors": messages})
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsLockedError reports whether err is the account lockout error.
func IsLockedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == TextCodeAccountLocked
}
