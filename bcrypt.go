package jobtracker

import (
	"strings"
	"unicode"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password registration accepts
const MinPasswordLength = 8

// BcryptHasher hashes passwords with a fixed bcrypt cost
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher, falling back to the default cost when
// cost is outside the range bcrypt accepts.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return BcryptHasher{Cost: cost}
}

// HashPassword will generate a password hash
func (h BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", fail(ErrNoEmptyString)
	}

	cost := h.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
	return string(b), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// HashPassword hashes with the default cost
func HashPassword(password string) (string, error) {
	return BcryptHasher{}.HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fail(ErrMismatchedHashAndPassword)
		}
		return errors.Wrap(err, errors.CategoryAuth, "unable to verify password")
	}
	return nil
}

// ValidatePasswordStrength enforces the registration password policy: at
// least MinPasswordLength characters with an uppercase letter, a lowercase
// letter and a digit. Every unmet rule is reported.
func ValidatePasswordStrength(password string) error {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "must be at least 8 characters long")
	}
	if !upper {
		problems = append(problems, "must contain at least one uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain at least one lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain at least one digit")
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.NewValidation("password does not meet the strength policy", errors.FieldError{
		Field:   "password",
		Message: strings.Join(problems, "; "),
	}).WithTextCode(TextCodeWeakPassword)
}
