//go:build race

package accounts

import "golang.org/x/crypto/bcrypt"

// race builds are several times slower, hashing at cost 13 times out signup tests
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
