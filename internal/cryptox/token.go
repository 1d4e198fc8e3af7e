package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 digest of a raw token. Only this value
// is ever persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two token digests in constant time.
func EqualHash(known, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(known), []byte(candidate)) == 1
}
