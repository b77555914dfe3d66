//go:build race

package rbac

import "golang.org/x/crypto/bcrypt"

func hashCost() int {
	// Reduce cost for race-enabled builds so test suites can run with strict timeouts.
	return bcrypt.DefaultCost
}
