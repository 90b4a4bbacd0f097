// Package crypto implements password hashing and verification for stored credentials.
package crypto

import "golang.org/x/crypto/bcrypt"

// DefaultCost is the bcrypt cost used when no explicit cost is configured.
const DefaultCost = bcrypt.DefaultCost

// MaxPasswordLen is the longest password bcrypt accepts, in bytes.
const MaxPasswordLen = 72

// HashPassword returns a salted bcrypt hash of password. A cost of 0 selects
// DefaultCost. The salt is generated per call, so hashing the same password
// twice yields different hashes.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// Any mismatch, including a malformed hash, verifies as false.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
