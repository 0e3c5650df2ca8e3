package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

const idLength = 16

// DeterministicID hashes the in-order concatenation of parts and returns the
// first 16 hex characters. Same parts in the same order always produce the same
// id; changing the order changes the id. Document ids are derived from the
// document name alone, chunk ids from (doc id, page, text prefix).
func DeterministicID(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:idLength]
}
