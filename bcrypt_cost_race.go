//go:build race

package accounts

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Race-enabled builds run far slower; keep suites inside their timeouts.
	return bcrypt.DefaultCost
}
