package library

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// maxSecretLength is bcrypt's own input limit.
const maxSecretLength = 72

// HashSecret returns a bcrypt hash suitable for the users document.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", ErrInvalidInput.WithMessagef("secret cannot be empty")
	}
	if len(secret) > maxSecretLength {
		return "", ErrInvalidInput.WithMessagef("secret exceeds %d bytes", maxSecretLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// isHashed reports whether stored looks like a bcrypt hash.
func isHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// verifySecret compares a presented secret with the stored one. Plaintext
// secrets from older users documents are compared in constant time.
func verifySecret(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	if isHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
