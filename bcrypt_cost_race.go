//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds run hashing several times slower, keep suites inside their timeouts
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
