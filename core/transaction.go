// Package core holds the UTXO-model transaction types the pool operates on:
// outpoints, cells, scripts and the transaction view itself. Shaped after
// holys-copernicus/model's Tx/TxIn/TxOut/OutPoint/Script types, generalized
// from the scriptSig input model there to CKB's cell/cell-dep/header-dep
// model that the tx-pool specification requires.
package core

import "github.com/xiaolou86/ckb/util"

// OutPoint identifies a single cell: the transaction that created it and
// its output index.
type OutPoint struct {
	TxHash util.Hash
	Index  uint32
}

// DepType distinguishes a plain cell-dep reference from a dep-group.
type DepType byte

const (
	DepTypeCode      DepType = iota
	DepTypeDepGroup
)

// CellDep references a cell the transaction depends on without consuming
// it (e.g. lock/type script code).
type CellDep struct {
	OutPoint OutPoint
	DepType  DepType
}

// HeaderDep references a block header a transaction's script execution may
// inspect (e.g. for time-locks); removing the header from the chain forces
// removal of the transaction (spec 4.1 resolve_conflict_header_dep).
type HeaderDep = util.Hash

// Script is a lock or type script: a code hash plus arguments. Hashing and
// verification themselves are the script-execution engine's concern
// (out of scope here); the pool only needs to compare scripts for equality
// and carry them opaquely.
type Script struct {
	CodeHash util.Hash
	HashType byte
	Args     []byte
}

// Equal reports whether two scripts are byte-identical.
func (s *Script) Equal(o *Script) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.CodeHash != o.CodeHash || s.HashType != o.HashType {
		return false
	}
	if len(s.Args) != len(o.Args) {
		return false
	}
	for i := range s.Args {
		if s.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// CellInput is a transaction input: the outpoint it consumes plus the
// relative-time-lock field carried alongside it.
type CellInput struct {
	PreviousOutput OutPoint
	Since          uint64
}

// CellOutput is a transaction output: a capacity amount locked by a lock
// script and, optionally, typed by a type script.
type CellOutput struct {
	Capacity util.Capacity
	Lock     *Script
	Type     *Script
}

// IsNull reports whether o is the zero-value output (mirroring the
// teacher's IsNull guard in mempool.Check; nothing in this module calls it).
func (o *CellOutput) IsNull() bool {
	return o == nil || (o.Capacity == 0 && o.Lock == nil && o.Type == nil)
}

// Transaction is the full, hash-addressed transaction view the pool
// indexes and scores.
type Transaction struct {
	Hash        util.Hash
	Version     uint32
	CellDeps    []CellDep
	HeaderDeps  []HeaderDep
	Inputs      []CellInput
	Outputs     []CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

// IsCoinBase reports whether tx is a block's cellbase transaction: exactly
// one input, referencing the null outpoint.
func (tx *Transaction) IsCoinBase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	in := tx.Inputs[0].PreviousOutput
	return in.TxHash.IsZero() && in.Index == 0xffffffff
}

// SerializeSize returns the transaction's virtual byte size used for pool
// accounting. A full implementation lives in the out-of-scope wire codec;
// this is a stable stand-in proportional to the transaction's shape so
// admission/eviction ordering is deterministic and reproducible in tests.
func (tx *Transaction) SerializeSize() uint64 {
	size := uint64(4) // version
	size += uint64(len(tx.CellDeps)) * 37
	size += uint64(len(tx.HeaderDeps)) * 32
	for range tx.Inputs {
		size += 44
	}
	for _, out := range tx.Outputs {
		size += 8
		if out.Lock != nil {
			size += uint64(len(out.Lock.Args)) + 33
		}
		if out.Type != nil {
			size += uint64(len(out.Type.Args)) + 33
		}
	}
	for _, d := range tx.OutputsData {
		size += uint64(len(d))
	}
	for _, w := range tx.Witnesses {
		size += uint64(len(w))
	}
	return size
}

// InputPoints returns every outpoint consumed by tx.
func (tx *Transaction) InputPoints() []OutPoint {
	pts := make([]OutPoint, len(tx.Inputs))
	for i, in := range tx.Inputs {
		pts[i] = in.PreviousOutput
	}
	return pts
}

// OutputPoints returns every outpoint tx creates.
func (tx *Transaction) OutputPoints() []OutPoint {
	pts := make([]OutPoint, len(tx.Outputs))
	for i := range tx.Outputs {
		pts[i] = OutPoint{TxHash: tx.Hash, Index: uint32(i)}
	}
	return pts
}

// ShortID is the compact pool identity derived from the full hash.
func (tx *Transaction) ShortID() util.ShortID {
	return util.ShortIDFromHash(tx.Hash)
}
