package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestUserIsLocked(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		lockUntil *time.Time
		locked    bool
	}{
		{
			name:      "No lock set",
			lockUntil: nil,
			locked:    false,
		},
		{
			name:      "Lock in the future",
			lockUntil: timePtr(now.Add(time.Hour)),
			locked:    true,
		},
		{
			name:      "Lock already expired",
			lockUntil: timePtr(now.Add(-time.Minute)),
			locked:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &auth.User{LockUntil: tt.lockUntil}
			assert.Equal(t, tt.locked, user.IsLockedAt(now))
		})
	}
}

func TestUserIdentityAccessors(t *testing.T) {
	id := bson.NewObjectID()
	user := &auth.User{
		ID:       id,
		Email:    "guest@example.com",
		Username: "guest",
		Role:     auth.RoleGuest,
	}

	assert.Equal(t, id.Hex(), user.GetID())
	assert.Equal(t, "guest@example.com", user.GetEmail())
	assert.Equal(t, "guest", user.GetUsername())
	assert.Equal(t, string(auth.RoleGuest), user.GetRole())
}

func TestUserPublicOmitsCredentials(t *testing.T) {
	user := &auth.User{
		ID:            bson.NewObjectID(),
		Email:         "host@example.com",
		Username:      "host",
		Role:          auth.RoleHost,
		PasswordHash:  "$2a$14$secret",
		LoginAttempts: 3,
		RefreshTokens: []auth.RefreshToken{{Token: "abc"}},
	}

	public := user.Public()

	assert.Equal(t, user.GetID(), public.ID)
	assert.Equal(t, user.Email, public.Email)
	assert.Equal(t, string(user.Role), public.Role)
}

func TestUserHasRefreshToken(t *testing.T) {
	user := &auth.User{
		RefreshTokens: []auth.RefreshToken{
			{Token: "first"},
			{Token: "second"},
		},
	}

	assert.True(t, user.HasRefreshToken("first"))
	assert.True(t, user.HasRefreshToken("second"))
	assert.False(t, user.HasRefreshToken("third"))
}

func TestProfileUpdateIsEmpty(t *testing.T) {
	assert.True(t, auth.ProfileUpdate{}.IsEmpty())

	name := "Ada"
	assert.False(t, auth.ProfileUpdate{FirstName: &name}.IsEmpty())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
