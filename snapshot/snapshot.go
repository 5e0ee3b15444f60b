// Package snapshot defines the chain collaborator contracts the pool
// resolves transactions against (spec.md 6 "Collaborator contracts") and
// the overlay machinery that lets a resolver see pool outputs as if they
// were already committed (spec.md 4.6).
//
// The concrete chain store, its UTXO set and its script-execution engine
// are out of scope (spec.md 1): this package only states the interfaces the
// pool needs from them, plus one in-memory implementation good enough for
// tests and for the cmd/txpool-inspect demo.
package snapshot

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/util"
)

// BlockInfo locates a committed transaction within the chain.
type BlockInfo struct {
	BlockHash util.Hash
	Number    uint64
}

// Snapshot is a consistent, read-only view of confirmed chain state.
// Implementations are expected to be cheap to clone (Arc-like sharing);
// the pool keeps one reference and hands out the same reference to
// resolvers on demand (spec.md 5).
type Snapshot interface {
	// GetTransaction returns a previously-committed transaction and its
	// location, if known.
	GetTransaction(hash util.Hash) (*core.Transaction, *BlockInfo, bool)
	// TransactionExists reports whether hash names a committed transaction.
	TransactionExists(hash util.Hash) bool
	// CellProvider
	CellProvider
}

// CellStatus describes what is known about a referenced cell.
type CellStatus int

const (
	CellUnknown CellStatus = iota
	CellLive
	CellDead
)

// CellProvider resolves an outpoint to the cell output it produced.
type CellProvider interface {
	GetCell(pt core.OutPoint) (*core.CellOutput, CellStatus)
}

// CellChecker additionally validates that consuming a cell is currently
// legal (e.g. respects its since/time-lock); script verification itself
// is out of scope.
type CellChecker interface {
	CellProvider
	IsCellMature(pt core.OutPoint) bool
}

// ResolvedTransaction pairs a transaction with the cells its inputs and
// cell-deps resolved to.
type ResolvedTransaction struct {
	Transaction  *core.Transaction
	ResolvedIns  []*core.CellOutput
	ResolvedDeps []*core.CellOutput
}

// ResolveError is returned when resolution fails; it is mapped onto
// pool.Reject{Code: RejectResolve} by callers so the pool's error taxonomy
// stays centralized in the pool package.
type ResolveError struct {
	OutPoint core.OutPoint
	Reason   string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("snapshot: cannot resolve %s:%d: %s", e.OutPoint.TxHash, e.OutPoint.Index, e.Reason)
}

// OverlayCellProvider composes an overlay (normally the pool's own unspent
// outputs) in front of a backing Snapshot: a lookup checks the overlay
// first and falls through to the chain only on a miss. This is how a
// resolver can see pool outputs as if committed (spec.md 4.6).
type OverlayCellProvider struct {
	overlay CellProvider
	chain   Snapshot
}

// NewOverlayCellProvider builds a provider that prefers overlay over chain.
func NewOverlayCellProvider(overlay CellProvider, chain Snapshot) *OverlayCellProvider {
	return &OverlayCellProvider{overlay: overlay, chain: chain}
}

func (o *OverlayCellProvider) GetCell(pt core.OutPoint) (*core.CellOutput, CellStatus) {
	if cell, status := o.overlay.GetCell(pt); status != CellUnknown {
		return cell, status
	}
	return o.chain.GetCell(pt)
}

// ResolveTransaction resolves every input and cell-dep of tx against the
// given provider, returning a ResolveError for the first unresolvable
// reference. Mirrors ckb_types::core::cell::resolve_transaction.
func ResolveTransaction(tx *core.Transaction, provider CellProvider) (*ResolvedTransaction, error) {
	seen := make(map[core.OutPoint]struct{}, len(tx.Inputs))
	rtx := &ResolvedTransaction{
		Transaction:  tx,
		ResolvedIns:  make([]*core.CellOutput, len(tx.Inputs)),
		ResolvedDeps: make([]*core.CellOutput, len(tx.CellDeps)),
	}
	for i, in := range tx.Inputs {
		pt := in.PreviousOutput
		if _, dup := seen[pt]; dup {
			return nil, errors.Wrapf(&ResolveError{OutPoint: pt, Reason: "duplicate input"}, "resolve tx %s", tx.Hash)
		}
		seen[pt] = struct{}{}
		cell, status := provider.GetCell(pt)
		if status != CellLive {
			return nil, errors.Wrapf(&ResolveError{OutPoint: pt, Reason: "input not live"}, "resolve tx %s", tx.Hash)
		}
		rtx.ResolvedIns[i] = cell
	}
	for i, dep := range tx.CellDeps {
		cell, status := provider.GetCell(dep.OutPoint)
		if status != CellLive {
			return nil, errors.Wrapf(&ResolveError{OutPoint: dep.OutPoint, Reason: "dep not live"}, "resolve tx %s", tx.Hash)
		}
		rtx.ResolvedDeps[i] = cell
	}
	return rtx, nil
}
