// Package security provides password hashing and session token helpers.
package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var legacyDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsLegacyHash reports whether hash is an unsalted hex SHA-256 digest
// written by the previous version of the catalog.
func IsLegacyHash(hash string) bool {
	return legacyDigest.MatchString(hash)
}

// ComparePasswords reports whether password matches the stored hash.
// Both bcrypt hashes and legacy SHA-256 digests are accepted.
func ComparePasswords(hash, password string) bool {
	if IsLegacyHash(hash) {
		sum := sha256.Sum256([]byte(password))
		return subtle.ConstantTimeCompare([]byte(hash), []byte(hex.EncodeToString(sum[:]))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewSessionToken returns a random opaque session token and its hash.
// Only the hash is persisted.
func NewSessionToken() (token, hash string) {
	token = uuid.NewString()
	return token, HashToken(token)
}

// HashToken returns the hex SHA-256 of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
