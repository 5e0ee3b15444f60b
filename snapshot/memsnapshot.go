package snapshot

import (
	"sync"

	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/util"
)

// MemSnapshot is a minimal in-memory Snapshot used by tests and by
// cmd/txpool-inspect. It is not part of the pool's production boundary
// (the real chain store is out of scope per spec.md 1) but gives the
// resolver and cmd/txpool-inspect something concrete to run against,
// generalized from the account/coin-view shape the teacher's
// mempool.Check references (coins *utxo.CoinsViewCache) to the outpoint/
// cell model this pool actually needs.
type MemSnapshot struct {
	mu    sync.RWMutex
	cells map[core.OutPoint]*core.CellOutput
	dead  map[core.OutPoint]struct{}
	txs   map[util.Hash]*core.Transaction
	infos map[util.Hash]*BlockInfo
}

// NewMemSnapshot builds an empty snapshot.
func NewMemSnapshot() *MemSnapshot {
	return &MemSnapshot{
		cells: make(map[core.OutPoint]*core.CellOutput),
		dead:  make(map[core.OutPoint]struct{}),
		txs:   make(map[util.Hash]*core.Transaction),
		infos: make(map[util.Hash]*BlockInfo),
	}
}

// AddCell marks an outpoint as a live, spendable cell.
func (s *MemSnapshot) AddCell(pt core.OutPoint, out *core.CellOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[pt] = out
	delete(s.dead, pt)
}

// SpendCell marks a previously-live cell as dead (consumed by a committed
// transaction), keeping it resolvable as "known but unspendable".
func (s *MemSnapshot) SpendCell(pt core.OutPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cells, pt)
	s.dead[pt] = struct{}{}
}

// Commit records tx (and its outputs as live cells, its inputs as spent)
// as if it had been included in a block.
func (s *MemSnapshot) Commit(tx *core.Transaction, info *BlockInfo) {
	s.mu.Lock()
	s.txs[tx.Hash] = tx
	s.infos[tx.Hash] = info
	s.mu.Unlock()
	for _, in := range tx.Inputs {
		s.SpendCell(in.PreviousOutput)
	}
	for i, out := range tx.Outputs {
		out := out
		s.AddCell(core.OutPoint{TxHash: tx.Hash, Index: uint32(i)}, &out)
	}
}

func (s *MemSnapshot) GetCell(pt core.OutPoint) (*core.CellOutput, CellStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cell, ok := s.cells[pt]; ok {
		return cell, CellLive
	}
	if _, ok := s.dead[pt]; ok {
		return nil, CellDead
	}
	return nil, CellUnknown
}

func (s *MemSnapshot) IsCellMature(pt core.OutPoint) bool {
	_, status := s.GetCell(pt)
	return status == CellLive
}

func (s *MemSnapshot) GetTransaction(hash util.Hash) (*core.Transaction, *BlockInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[hash]
	if !ok {
		return nil, nil, false
	}
	return tx, s.infos[hash], true
}

func (s *MemSnapshot) TransactionExists(hash util.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.txs[hash]
	return ok
}
