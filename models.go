package auth

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Lockout policy: 5 consecutive failures lock the account for 2 hours.
const (
	MaxLoginAttempts = 5
	LockoutDuration  = 2 * time.Hour
)

// RefreshToken is one entry in a user's refresh-token set. A user may hold
// several at once (one per device), each revocable on its own.
type RefreshToken struct {
	Token    string    `bson:"token" json:"-"`
	IssuedAt time.Time `bson:"issuedAt" json:"issued_at,omitempty"`
}

// Profile holds optional presentation attributes.
type Profile struct {
	Avatar            string `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Country           string `bson:"country,omitempty" json:"country,omitempty"`
	PreferredLanguage string `bson:"preferredLanguage,omitempty" json:"preferred_language,omitempty"`
}

// User is the credential store record for a principal. Email and username
// are stored lowercased; unique indexes on both are created by
// Users.EnsureIndexes.
type User struct {
	ID            bson.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Role          UserRole       `bson:"role" json:"role,omitempty"`
	FirstName     string         `bson:"firstName" json:"first_name,omitempty"`
	LastName      string         `bson:"lastName" json:"last_name,omitempty"`
	Username      string         `bson:"username" json:"username,omitempty"`
	Email         string         `bson:"email" json:"email,omitempty"`
	Phone         string         `bson:"phone,omitempty" json:"phone,omitempty"`
	Gender        string         `bson:"gender,omitempty" json:"gender,omitempty"`
	Country       string         `bson:"country,omitempty" json:"country,omitempty"`
	Birthdate     string         `bson:"birthdate,omitempty" json:"birthdate,omitempty"`
	PasswordHash  string         `bson:"password" json:"-"`
	IsActive      bool           `bson:"isActive" json:"is_active"`
	EmailVerified bool           `bson:"isEmailVerified" json:"is_email_verified,omitempty"`
	LastLogin     *time.Time     `bson:"lastLogin,omitempty" json:"last_login,omitempty"`
	LoginAttempts int            `bson:"loginAttempts,omitempty" json:"-"`
	LockUntil     *time.Time     `bson:"lockUntil,omitempty" json:"-"`
	RefreshTokens []RefreshToken `bson:"refreshTokens,omitempty" json:"-"`
	Profile       *Profile       `bson:"profile,omitempty" json:"profile,omitempty"`
	CreatedAt     *time.Time     `bson:"createdAt,omitempty" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bson:"updatedAt,omitempty" json:"updated_at,omitempty"`
}

// IsLocked reports whether the lockout window is still active.
func (u *User) IsLocked() bool {
	return u.IsLockedAt(time.Now())
}

// IsLockedAt is IsLocked against an explicit clock, for the lockout logic
// and its tests.
func (u *User) IsLockedAt(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// FullName joins first and last name for display.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// HasRefreshToken reports whether token is a member of the refresh set.
func (u *User) HasRefreshToken(token string) bool {
	for _, rt := range u.RefreshTokens {
		if rt.Token == token {
			return true
		}
	}
	return false
}

// Identity accessors, so *User satisfies the Identity interface used by the
// token service and the gates.

func (u *User) GetID() string       { return u.ID.Hex() }
func (u *User) GetEmail() string    { return u.Email }
func (u *User) GetUsername() string { return u.Username }
func (u *User) GetRole() string     { return string(u.Role) }

var _ Identity = (*User)(nil)

// PublicUser is the externally serialized representation. Password hash,
// refresh tokens, and lockout counters never leave the store record.
type PublicUser struct {
	ID            string     `json:"id"`
	Role          UserRole   `json:"role"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Gender        string     `json:"gender,omitempty"`
	Country       string     `json:"country,omitempty"`
	Birthdate     string     `json:"birthdate,omitempty"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"is_email_verified"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	Profile       *Profile   `json:"profile,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Public returns the sanitized view of the user.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:            u.ID.Hex(),
		Role:          u.Role,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Username:      u.Username,
		Email:         u.Email,
		Phone:         u.Phone,
		Gender:        u.Gender,
		Country:       u.Country,
		Birthdate:     u.Birthdate,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		LastLogin:     u.LastLogin,
		Profile:       u.Profile,
		CreatedAt:     u.CreatedAt,
	}
}

// ProfileUpdate carries the self-service mutable fields. Nil members are
// left untouched.
type ProfileUpdate struct {
	FirstName *string  `json:"first_name,omitempty"`
	LastName  *string  `json:"last_name,omitempty"`
	Phone     *string  `json:"phone,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
}

// IsEmpty reports whether the update carries no mutations.
func (p ProfileUpdate) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.Profile == nil
}
