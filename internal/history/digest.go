package history

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest returns the BLAKE3-256 hex digest of a decoded payload. The payload
// itself is never stored.
func Digest(payload []byte) string {
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
