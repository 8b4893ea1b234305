package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-booking-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIdentitySuccess(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	provider := auth.NewUserProvider(store)

	user, err := provider.VerifyIdentity(context.Background(), "guest@example.com", "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, seeded.GetID(), user.GetID())

	// Login can use either identifier.
	user, err = provider.VerifyIdentity(context.Background(), "guest", "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, seeded.GetID(), user.GetID())

	stored := store.get(seeded.GetID())
	assert.NotNil(t, stored.LastLogin)
	assert.Zero(t, stored.LoginAttempts)
}

func TestVerifyIdentityUnknownIdentifier(t *testing.T) {
	provider := auth.NewUserProvider(newMemUsers())

	_, err := provider.VerifyIdentity(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestVerifyIdentityWrongPassword(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	provider := auth.NewUserProvider(store)

	_, err := provider.VerifyIdentity(context.Background(), "guest@example.com", "Wr0ng!pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	assert.Equal(t, 1, store.get(seeded.GetID()).LoginAttempts)
}

func TestVerifyIdentityInactiveAccount(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	require.NoError(t, store.SetActive(context.Background(), seeded.GetID(), false))

	provider := auth.NewUserProvider(store)

	// An inactive account with the right password reads the same as a bad
	// password on an unknown account.
	_, err := provider.VerifyIdentity(context.Background(), "guest@example.com", "Str0ng!pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestVerifyIdentityLockout(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	provider := auth.NewUserProvider(store)
	ctx := context.Background()

	// The final failing attempt still reads as invalid credentials, not as
	// a lockout, so the attacker learns nothing from the transition.
	for i := 0; i < auth.MaxLoginAttempts; i++ {
		_, err := provider.VerifyIdentity(ctx, "guest@example.com", "Wr0ng!pass")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "attempt %d", i+1)
	}

	stored := store.get(seeded.GetID())
	require.NotNil(t, stored.LockUntil)
	assert.WithinDuration(t, time.Now().Add(auth.LockoutDuration), *stored.LockUntil, time.Minute)

	// Once locked, even the correct password is refused, and the caller
	// is told the account is locked rather than that the password matched.
	_, err := provider.VerifyIdentity(ctx, "guest@example.com", "Str0ng!pass")
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
	assert.True(t, auth.IsLockedError(err))
}

func TestVerifyIdentityLockoutExpiry(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	provider := auth.NewUserProvider(store)
	ctx := context.Background()

	// Simulate an expired lock window left over from earlier failures.
	past := time.Now().Add(-time.Minute)
	stored := store.get(seeded.GetID())
	stored.LoginAttempts = auth.MaxLoginAttempts
	stored.LockUntil = &past

	user, err := provider.VerifyIdentity(ctx, "guest@example.com", "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, seeded.GetID(), user.GetID())

	refreshed := store.get(seeded.GetID())
	assert.Zero(t, refreshed.LoginAttempts)
	assert.Nil(t, refreshed.LockUntil)
}

func TestVerifyIdentityExpiredLockFailureResetsCounter(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	provider := auth.NewUserProvider(store)

	past := time.Now().Add(-time.Minute)
	stored := store.get(seeded.GetID())
	stored.LoginAttempts = auth.MaxLoginAttempts
	stored.LockUntil = &past

	// A failure after the lock expires starts a fresh counter instead of
	// immediately re-locking.
	_, err := provider.VerifyIdentity(context.Background(), "guest@example.com", "Wr0ng!pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	refreshed := store.get(seeded.GetID())
	assert.Equal(t, 1, refreshed.LoginAttempts)
	assert.Nil(t, refreshed.LockUntil)
}

func TestVerifyIdentityRejectsInvalidRole(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	store.get(seeded.GetID()).Role = "superuser"

	provider := auth.NewUserProvider(store)

	_, err := provider.VerifyIdentity(context.Background(), "guest@example.com", "Str0ng!pass")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, "INVALID_ROLE", richErr.TextCode)
}

func TestFindIdentityByID(t *testing.T) {
	store := newMemUsers()
	seeded := seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	provider := auth.NewUserProvider(store)

	user, err := provider.FindIdentityByID(context.Background(), seeded.GetID())
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", user.Email)

	_, err = provider.FindIdentityByID(context.Background(), "missing-id")
	assert.True(t, goerrors.IsNotFound(err))
}

func TestFindIdentityByIdentifier(t *testing.T) {
	store := newMemUsers()
	seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)
	provider := auth.NewUserProvider(store)

	user, err := provider.FindIdentityByIdentifier(context.Background(), "guest")
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", user.Email)

	_, err = provider.FindIdentityByIdentifier(context.Background(), "stranger")
	assert.True(t, goerrors.IsNotFound(err))
}

func TestCustomValidator(t *testing.T) {
	store := newMemUsers()
	seedUser(t, store, "guest@example.com", "guest", "Str0ng!pass", auth.RoleGuest)

	provider := auth.NewUserProvider(store)
	provider.Validator = func(u *auth.User) error {
		if !u.EmailVerified {
			return auth.ErrInvalidCredentials
		}
		return nil
	}

	_, err := provider.VerifyIdentity(context.Background(), "guest@example.com", "Str0ng!pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
