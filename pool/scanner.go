package pool

import (
	"container/heap"

	"github.com/xiaolou86/ckb/util"
)

// CommitTxsScanner greedily selects a block-assembly candidate set from
// the Proposed bucket (spec.md 4.4): highest score first, skipping any
// entry that would push cumulative size or cycles over the caller's
// limits, only becoming eligible to consider a child once its in-pool
// Proposed parents have themselves been selected. Parents outside the
// Proposed bucket (still Pending/Gap) are treated as externally satisfied
// since they are not block-assembly candidates themselves.
//
// This uses its own ephemeral priority queue rather than PoolMap's
// by-status btree index because commit selection and eviction (limit_size)
// need opposite score orderings and opposite tie-break directions
// (spec.md 4.2 vs 4.7) — see the scoreKey doc comment in poolmap.go.
type CommitTxsScanner struct {
	poolMap *PoolMap
}

// NewCommitTxsScanner builds a scanner over m's current Proposed entries.
func NewCommitTxsScanner(m *PoolMap) *CommitTxsScanner {
	return &CommitTxsScanner{poolMap: m}
}

// scanItem is one entry of the scanner's priority queue.
type scanItem struct {
	entry *Entry
}

type scanHeap []scanItem

func (h scanHeap) Len() int { return len(h) }

// Less orders highest-score first; ties broken by older timestamp first
// (spec.md 4.2: "older timestamp first for commit selection"), then by
// short id for full determinism.
func (h scanHeap) Less(i, j int) bool {
	a, b := h[i].entry, h[j].entry
	ra, rb := a.EffectiveFeeRate(), b.EffectiveFeeRate()
	if ra != rb {
		return ra > rb
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return lessShortID(a.ShortID, b.ShortID)
}
func (h scanHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scanHeap) Push(x interface{}) { *h = append(*h, x.(scanItem)) }
func (h *scanHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func lessShortID(a, b util.ShortID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// TxsToCommit runs the greedy selection, returning the selected entries in
// topological (ancestors-before-descendants) order along with the
// cumulative size and cycles of the selection. Deterministic: identical
// pool state always yields an identical result.
func (s *CommitTxsScanner) TxsToCommit(sizeLimit, cyclesLimit uint64) ([]*Entry, uint64, uint64) {
	candidates := s.poolMap.GetByStatus(StatusProposed)
	candidateSet := make(map[util.ShortID]*Entry, len(candidates))
	for _, e := range candidates {
		candidateSet[e.ShortID] = e
	}

	// pendingParents counts, per candidate, how many of its direct
	// parents are themselves Proposed candidates not yet selected.
	pendingParents := make(map[util.ShortID]int, len(candidates))
	for id := range candidateSet {
		count := 0
		for p := range s.poolMap.parents[id] {
			if _, isCandidate := candidateSet[p]; isCandidate {
				count++
			}
		}
		pendingParents[id] = count
	}

	h := &scanHeap{}
	heap.Init(h)
	for id, e := range candidateSet {
		if pendingParents[id] == 0 {
			heap.Push(h, scanItem{entry: e})
		}
	}

	var (
		selected              []*Entry
		totalSize, totalCycle uint64
	)
	selectedSet := make(map[util.ShortID]struct{}, len(candidates))

	for h.Len() > 0 {
		item := heap.Pop(h).(scanItem)
		e := item.entry
		if _, already := selectedSet[e.ShortID]; already {
			continue
		}
		if totalSize+e.Size > sizeLimit || totalCycle+e.Cycles > cyclesLimit {
			continue
		}
		selected = append(selected, e)
		selectedSet[e.ShortID] = struct{}{}
		totalSize += e.Size
		totalCycle += e.Cycles

		for child := range s.poolMap.children[e.ShortID] {
			ce, isCandidate := candidateSet[child]
			if !isCandidate {
				continue
			}
			pendingParents[child]--
			if pendingParents[child] == 0 {
				heap.Push(h, scanItem{entry: ce})
			}
		}
	}

	return selected, totalSize, totalCycle
}
