package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP returns the hex SHA-256 digest of a client IP address. The digest
// is deterministic so distinct visits from the same address collapse to the
// same value, and one-way so the raw address is never recoverable from the
// stored hash. Only this digest is ever persisted.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
