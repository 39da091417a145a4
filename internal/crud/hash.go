package crud

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hides the password hashing scheme from the account resources.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hashed, password string) error
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher at the default bcrypt cost.
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{Cost: bcrypt.DefaultCost}
}

// Hash computes the bcrypt hash of a password.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare checks a password against its stored hash. A mismatch returns a
// non-nil error.
func (h BcryptHasher) Compare(hashed, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
}
