package pool

import (
	"fmt"

	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/util"
	"github.com/xiaolou86/ckb/utxo"
)

// maxReplacementCandidates bounds how many transactions a single
// replacement may evict (spec.md 4.5 R5), mirroring CKB's
// MAX_REPLACEMENT_CANDIDATES.
const maxReplacementCandidates = 100

// minReplaceFee is the minimum fee a replacement for conflicts must pay:
// the sum of what it replaces plus the configured RBF premium on its own
// size (spec.md 4.5 R3/R4). Returns an error on fee-sum overflow.
func minReplaceFee(conflicts []*Entry, size uint64, minRBFRate util.FeeRate) (util.Capacity, error) {
	var sum util.Capacity
	var err error
	for _, c := range conflicts {
		sum, err = sum.SafeAdd(c.Fee)
		if err != nil {
			return 0, err
		}
	}
	return sum.SafeAdd(minRBFRate.Fee(size))
}

// CheckRBF enforces every Replace-By-Fee rule of spec.md 4.5 against a
// proposed replacement. Callers must already know RBF is enabled and that
// conflictIDs is non-empty; CheckRBF itself neither mutates the pool nor
// assumes the new transaction has been inserted.
func (p *TxPool) CheckRBF(tx *core.Transaction, conflictIDs map[util.ShortID]struct{}, fee util.Capacity, txSize uint64) error {
	if !p.config.EnableRBF() {
		return errRBFRejected("RBF is not enabled")
	}
	if len(conflictIDs) == 0 {
		return errRBFRejected("no conflicts to replace")
	}

	conflicts := make([]*Entry, 0, len(conflictIDs))
	for id := range conflictIDs {
		e, ok := p.poolMap.GetByID(id)
		if !ok {
			return errRBFRejected(fmt.Sprintf("unknown conflict %s", id))
		}
		conflicts = append(conflicts, e)
	}

	// R3/R4: fee floor.
	minFee, err := minReplaceFee(conflicts, txSize, p.config.MinRBFRate)
	if err != nil {
		return errRBFRejected("calculate_min_replace_fee failed: fee sum overflow")
	}
	if fee < minFee {
		return errRBFRejected(fmt.Sprintf("Tx's current fee is %d, expect it to >= %d to replace old txs", fee, minFee))
	}

	// R2 + cell-dep rule: gather every outpoint the conflicts consume and
	// produce.
	conflictInputs := make(map[core.OutPoint]struct{})
	conflictOutputs := make(map[core.OutPoint]struct{})
	for _, c := range conflicts {
		for _, pt := range c.Tx.InputPoints() {
			conflictInputs[pt] = struct{}{}
		}
		for _, pt := range c.Tx.OutputPoints() {
			conflictOutputs[pt] = struct{}{}
		}
	}

	coins := utxo.NewCoinsViewCache(p.snapshot)
	for _, pt := range tx.InputPoints() {
		if _, fromConflict := conflictInputs[pt]; fromConflict {
			continue
		}
		if !coins.IsConfirmed(pt) {
			return errRBFRejected("new Tx contains unconfirmed inputs")
		}
	}

	for _, dep := range tx.CellDeps {
		if _, fromConflict := conflictOutputs[dep.OutPoint]; fromConflict {
			return errRBFRejected("new Tx contains cell deps from conflicts")
		}
	}

	// R5, ancestry disjointness, no-input-from-descendants, R6 — per conflict.
	newAncestors := p.poolMap.CalcAncestorsOfTx(tx)
	replaceCount := 0
	for _, conflict := range conflicts {
		descendants := p.poolMap.CalcDescendants(conflict.ShortID)
		replaceCount += len(descendants) + 1
		if replaceCount > maxReplacementCandidates {
			return errRBFRejected(fmt.Sprintf("Tx conflict too many txs, conflict txs count: %d", replaceCount))
		}

		for d := range descendants {
			if _, common := newAncestors[d]; common {
				return errRBFRejected("Tx ancestors have common with conflict Tx descendants")
			}
		}

		for d := range descendants {
			de, ok := p.poolMap.GetByID(d)
			if !ok {
				continue
			}
			for _, pt := range tx.InputPoints() {
				if pt.TxHash == de.Tx.Hash {
					return errRBFRejected("new Tx contains inputs in descendants of to be replaced Tx")
				}
			}
		}

		statuses := make([]Status, 0, len(descendants)+1)
		statuses = append(statuses, conflict.Status)
		for d := range descendants {
			if de, ok := p.poolMap.GetByID(d); ok {
				statuses = append(statuses, de.Status)
			}
		}
		for _, st := range statuses {
			if st != StatusPending && st != StatusGap {
				return errRBFRejected("all conflict Txs should be in Pending status")
			}
		}
	}

	return nil
}
