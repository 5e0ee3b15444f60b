package util

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ShortIDSize is the width of a compact transaction identity: the first 20
// bytes of the blake2b-256 digest of the full transaction hash, used as the
// PoolMap primary key.
const ShortIDSize = 20

// ShortID is the compact, collision-resistant identity used for all pool
// indexing (spec: "short_id").
type ShortID [ShortIDSize]byte

// String renders the short id as hex.
func (id ShortID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ShortID) IsZero() bool {
	return id == ShortID{}
}

// ShortIDFromHash derives a ShortID by hashing h with blake2b-256 and
// keeping the first ShortIDSize bytes of the digest.
func ShortIDFromHash(h Hash) ShortID {
	digest := blake2b.Sum256(h[:])
	var id ShortID
	copy(id[:], digest[:ShortIDSize])
	return id
}
