// Package util holds the small fixed-size value types shared across the
// tx-pool: hashes, short ids, capacity (fee) arithmetic and fee rates.
package util

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the width of a transaction hash in bytes.
const HashSize = 32

// Hash is a 256-bit digest, normally a transaction or header hash.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash; a cellbase input's null outpoint carries it.
var ZeroHash = Hash{}

// String renders the hash as a "0x"-prefixed hex string.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// HashFromBytes copies b into a Hash, erroring if the length is wrong.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("util: invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a "0x"-prefixed or bare hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(b)
}
