// Package sha256 computes content hashes for rendered pages.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements pagegen.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	return HashString(string(data)), nil
}

// HashString returns the hex digest of the UTF-8 bytes of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
