//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Cost 14 is too slow under the race detector; drop to the default so
	// the suite fits in test timeouts.
	return bcrypt.DefaultCost
}
