// Package sha256 derives archive object keys from snapshot page content.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyLength is the number of hex characters kept from a page digest.
// Identical pages map to the same key.
const KeyLength = 16

// Hasher implements snapshot.Hasher with a truncated SHA-256 hex digest.
type Hasher struct {
	length int
}

// New returns a Hasher producing KeyLength-character keys.
func New() *Hasher {
	return &Hasher{length: KeyLength}
}

// Hash returns the leading hex characters of the page digest.
func (h *Hasher) Hash(page []byte) (string, error) {
	sum := sha256.Sum256(page)
	key := hex.EncodeToString(sum[:])
	if h.length > 0 && h.length < len(key) {
		key = key[:h.length]
	}
	return key, nil
}
