package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the deterministic cache key for an outbound prompt.
// The exact digest algorithm is not load-bearing for correctness, only for
// uniform key distribution; SHA-256 keeps keys collision-resistant and
// avoids leaking prompt text into storage keys or logs.
func Fingerprint(promptText string) string {
	sum := sha256.Sum256([]byte(promptText))
	return hex.EncodeToString(sum[:])
}
