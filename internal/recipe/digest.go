package recipe

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex-encoded SHA-256 hash of r's canonical textual
// form, used for recipe identity and cache keys. Two recipes with the
// same Digest are considered the same recipe regardless of local
// synthetic names assigned by ToString.
func (r *Recipe) Digest() string {
	sum := sha256.Sum256([]byte(r.ToString()))
	return hex.EncodeToString(sum[:])
}
