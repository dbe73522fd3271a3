// Package sha256 produces content digests for archived screenshot bytes.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex-encoded SHA-256 sum of data. Identical renders
// produce identical digests, which lets consumers spot unchanged pages
// across captures.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
