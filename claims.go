package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured JWT claims resolved from a bearer token
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Username() string
	Role() string
	CanRead(resource string) bool
	CanEdit(resource string) bool
	CanCreate(resource string) bool
	CanDelete(resource string) bool
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The payload is a
// closed struct rather than an open map so the signed body cannot grow
// silently; the profile fields are optional and set only at issuance time.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"userId,omitempty"`
	UserEmail string `json:"email,omitempty"`
	Uname     string `json:"username,omitempty"`
	UserRole  string `json:"role,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Username returns the username claim
func (c *JWTClaims) Username() string {
	return c.Uname
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// CanRead checks if the user's role can read the given resource
func (c *JWTClaims) CanRead(resource string) bool {
	return DefaultPermissions().HasAll(UserRole(c.UserRole), resource+".read")
}

// CanEdit checks if the user's role can update the given resource
func (c *JWTClaims) CanEdit(resource string) bool {
	return DefaultPermissions().HasAll(UserRole(c.UserRole), resource+".update")
}

// CanCreate checks if the user's role can create the given resource
func (c *JWTClaims) CanCreate(resource string) bool {
	return DefaultPermissions().HasAll(UserRole(c.UserRole), resource+".create")
}

// CanDelete checks if the user's role can delete the given resource
func (c *JWTClaims) CanDelete(resource string) bool {
	return DefaultPermissions().HasAll(UserRole(c.UserRole), resource+".delete")
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return RoleAtLeast(UserRole(c.UserRole), UserRole(minRole))
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// NewClaimsFor builds the claims payload for an identity. When identity is
// a *User the optional profile fields are carried through.
func NewClaimsFor(identity Identity) *JWTClaims {
	claims := &JWTClaims{
		UID:       identity.GetID(),
		UserEmail: identity.GetEmail(),
		Uname:     identity.GetUsername(),
		UserRole:  identity.GetRole(),
	}

	if user, ok := identity.(*User); ok {
		claims.Phone = user.Phone
		claims.Birthdate = user.Birthdate
		claims.Gender = user.Gender
		claims.Country = user.Country
	}

	return claims
}
