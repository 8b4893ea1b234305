package auth

import "time"

// The lockout state machine has three states: counting (attempts below the
// threshold), locked (lockUntil in the future), and expired-lock (lockUntil
// in the past, reset lazily on the next failed attempt). Transitions are
// decided here from a snapshot of the record and applied by the credential
// store as atomic conditional updates; the decision never mutates the user.

// FailedLoginUpdate describes the mutation the store must apply after a
// failed password check.
type FailedLoginUpdate struct {
	// GraceReset restarts the counter at 1 and clears the expired lock,
	// instead of accumulating on top of the stale count.
	GraceReset bool
	// LockUntil is set when this failure crosses the attempt threshold.
	LockUntil *time.Time
}

// NextFailedLogin computes the lockout transition for one failed attempt.
func NextFailedLogin(user *User, now time.Time) FailedLoginUpdate {
	if user.LockUntil != nil && !user.LockUntil.After(now) {
		return FailedLoginUpdate{GraceReset: true}
	}

	update := FailedLoginUpdate{}
	if user.LoginAttempts+1 >= MaxLoginAttempts && !user.IsLockedAt(now) {
		until := now.Add(LockoutDuration)
		update.LockUntil = &until
	}

	return update
}
