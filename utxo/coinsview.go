// Package utxo adapts the teacher's CoinsViewCache naming
// (holys-copernicus/mempool's Check method calls coins.HaveCoin,
// coins.CheckTxInputs, coins.UpdateCoins, coins.HaveInputs against a
// *utxo.CoinsViewCache) into a thin, UTXO-model helper the pool's RBF and
// resolution paths use to ask "is this outpoint confirmed on-chain" without
// reaching into snapshot internals directly.
package utxo

import (
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/snapshot"
)

// CoinsViewCache is a read-only view over a chain Snapshot answering the
// coin-confirmation questions the pool's admission and RBF checks need.
type CoinsViewCache struct {
	chain snapshot.Snapshot
}

// NewCoinsViewCache wraps a chain snapshot.
func NewCoinsViewCache(chain snapshot.Snapshot) *CoinsViewCache {
	return &CoinsViewCache{chain: chain}
}

// HaveCoin reports whether pt names a cell the chain snapshot still
// considers live (spent cells return false, matching the teacher's
// "cell already spent" semantics for CheckTxInputs).
func (c *CoinsViewCache) HaveCoin(pt core.OutPoint) bool {
	_, status := c.chain.GetCell(pt)
	return status == snapshot.CellLive
}

// HaveInputs reports whether every input of tx resolves to a live cell on
// the chain snapshot, ignoring the pool entirely. rbf.go's R2 check does
// not use it; it checks each input with IsConfirmed instead.
func (c *CoinsViewCache) HaveInputs(tx *core.Transaction) bool {
	for _, in := range tx.Inputs {
		if !c.HaveCoin(in.PreviousOutput) {
			return false
		}
	}
	return true
}

// IsConfirmed reports whether pt references a transaction the chain
// snapshot already knows about, independent of whether the specific
// output is still unspent. RBF's R2 rule treats "confirmed" and "spent by
// a conflict" as the only two legal origins for a replacement's inputs.
func (c *CoinsViewCache) IsConfirmed(pt core.OutPoint) bool {
	return c.chain.TransactionExists(pt.TxHash)
}
