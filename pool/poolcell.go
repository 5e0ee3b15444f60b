package pool

import (
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/snapshot"
)

// poolCell adapts PoolMap's own output index into a snapshot.CellProvider
// so a resolver can see not-yet-committed pool outputs as live cells
// (spec.md 4.6), the same role ckb_tx_pool::pool::PoolMap plays for its
// own resolve_tx_from_pool. When allowConflictInputs is true (evaluating
// a replacement candidate under RBF) outputs already spent by an in-pool
// entry are still reported live, since the spender may be about to be
// replaced rather than treated as an unconditional double-spend.
type poolCell struct {
	m                   *PoolMap
	allowConflictInputs bool
}

func newPoolCell(m *PoolMap, allowConflictInputs bool) *poolCell {
	return &poolCell{m: m, allowConflictInputs: allowConflictInputs}
}

func (c *poolCell) GetCell(pt core.OutPoint) (*core.CellOutput, snapshot.CellStatus) {
	if _, spent := c.m.byInput[pt]; spent && !c.allowConflictInputs {
		return nil, snapshot.CellDead
	}

	producerID, ok := c.m.byOutput[pt]
	if !ok {
		return nil, snapshot.CellUnknown
	}
	producer, ok := c.m.byID[producerID]
	if !ok || int(pt.Index) >= len(producer.Tx.Outputs) {
		return nil, snapshot.CellUnknown
	}
	return &producer.Tx.Outputs[pt.Index], snapshot.CellLive
}
