// Package crypto provides credential hashing for account storage.
package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCredential hashes a client credential with bcrypt at the default cost.
// The salt is generated per call and embedded in the returned hash.
func HashCredential(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("crypto: hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential reports whether credential matches the stored bcrypt hash.
// The comparison is constant-time with respect to the hash contents.
func CheckCredential(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
