package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  auth.UserRole
		valid bool
	}{
		{name: "Guest", input: "guest", want: auth.RoleGuest, valid: true},
		{name: "Host", input: "host", want: auth.RoleHost, valid: true},
		{name: "Admin", input: "admin", want: auth.RoleAdmin, valid: true},
		{name: "Unknown role", input: "owner", valid: false},
		{name: "Empty", input: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, ok := auth.ParseRole(tt.input)
			assert.Equal(t, tt.valid, ok)

			if tt.valid {
				assert.Equal(t, tt.want, role)
			}
		})
	}
}

func TestSanitizeRegistrationRole(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  auth.UserRole
	}{
		{name: "Guest stays guest", input: "guest", want: auth.RoleGuest},
		{name: "Host stays host", input: "host", want: auth.RoleHost},
		{name: "Admin is downgraded", input: "admin", want: auth.RoleGuest},
		{name: "Garbage falls back to guest", input: "superuser", want: auth.RoleGuest},
		{name: "Empty defaults to guest", input: "", want: auth.RoleGuest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.SanitizeRegistrationRole(tt.input))
		})
	}
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, auth.RoleAtLeast(auth.RoleAdmin, auth.RoleGuest))
	assert.True(t, auth.RoleAtLeast(auth.RoleHost, auth.RoleHost))
	assert.False(t, auth.RoleAtLeast(auth.RoleGuest, auth.RoleHost))
	assert.False(t, auth.RoleAtLeast("unknown", auth.RoleGuest))
}

func TestDefaultPermissions(t *testing.T) {
	perms := auth.DefaultPermissions()

	assert.True(t, perms.HasAll(auth.RoleAdmin, "users.delete"))
	assert.True(t, perms.HasAll(auth.RoleHost, "properties.create"))
	assert.False(t, perms.HasAll(auth.RoleGuest, "properties.create"))
	assert.False(t, perms.HasAll(auth.RoleGuest, "made.up.permission"))

	t.Run("multiple required permissions", func(t *testing.T) {
		assert.True(t, perms.HasAll(auth.RoleHost, "properties.create", "properties.update"))
		assert.False(t, perms.HasAll(auth.RoleHost, "properties.create", "users.delete"))
	})

	t.Run("unknown role has nothing", func(t *testing.T) {
		assert.False(t, perms.HasAll("owner", "properties.create"))
	})
}
