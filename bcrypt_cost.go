//go:build !race

package auth

// productionBcryptCost is used by HashPassword and a zero BcryptHasher
const productionBcryptCost = 14

func passwordHashCost() int {
	return productionBcryptCost
}
