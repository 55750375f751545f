//go:build !race

package jobtracker

// DefaultPasswordHashCost is the bcrypt cost used when none is configured
const DefaultPasswordHashCost = 12

func passwordHashCost() int {
	return DefaultPasswordHashCost
}
