package pool

import (
	"bytes"
	"sort"

	"github.com/google/btree"
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/log"
	"github.com/xiaolou86/ckb/util"
)

// scoreKey orders entries within a status bucket by ascending score:
// lowest fee rate first, oldest timestamp breaking ties, short id
// breaking any remaining tie so the btree never collapses two distinct
// entries. This ordering directly answers limit_size's "lowest score,
// oldest timestamp" victim rule (spec.md 4.7); the commit scanner (which
// needs the opposite, highest-score-first, older-first-on-tie order) uses
// its own ephemeral priority queue instead of this index — see scanner.go.
type scoreKey struct {
	feeRate   util.FeeRate
	timestamp int64
	id        util.ShortID
}

func (k scoreKey) Less(than btree.Item) bool {
	o := than.(scoreKey)
	if k.feeRate != o.feeRate {
		return k.feeRate < o.feeRate
	}
	if k.timestamp != o.timestamp {
		return k.timestamp < o.timestamp
	}
	return bytes.Compare(k.id[:], o.id[:]) < 0
}

func scoreKeyOf(e *Entry) scoreKey {
	return scoreKey{feeRate: e.EffectiveFeeRate(), timestamp: e.Timestamp, id: e.ShortID}
}

// PoolMap is the indexed container described in spec.md 3: a primary map
// plus the secondary indices (by status, by input outpoint, by output
// outpoint, by header dep) and the parent/child dependency graph, all
// derived from and kept consistent with the authoritative entry set.
type PoolMap struct {
	maxAncestorsCount uint64

	byID     map[util.ShortID]*Entry
	byStatus map[Status]*btree.BTree

	byInput     map[core.OutPoint]util.ShortID
	byOutput    map[core.OutPoint]util.ShortID
	byHeaderDep map[util.Hash]map[util.ShortID]struct{}

	parents  map[util.ShortID]map[util.ShortID]struct{}
	children map[util.ShortID]map[util.ShortID]struct{}
}

// NewPoolMap builds an empty PoolMap enforcing maxAncestorsCount on admission.
func NewPoolMap(maxAncestorsCount uint64) *PoolMap {
	return &PoolMap{
		maxAncestorsCount: maxAncestorsCount,
		byID:              make(map[util.ShortID]*Entry),
		byStatus: map[Status]*btree.BTree{
			StatusPending:  btree.New(32),
			StatusGap:      btree.New(32),
			StatusProposed: btree.New(32),
		},
		byInput:     make(map[core.OutPoint]util.ShortID),
		byOutput:    make(map[core.OutPoint]util.ShortID),
		byHeaderDep: make(map[util.Hash]map[util.ShortID]struct{}),
		parents:     make(map[util.ShortID]map[util.ShortID]struct{}),
		children:    make(map[util.ShortID]map[util.ShortID]struct{}),
	}
}

// GetByID returns the entry for id, if present.
func (m *PoolMap) GetByID(id util.ShortID) (*Entry, bool) {
	e, ok := m.byID[id]
	return e, ok
}

// Len returns the number of entries across all statuses.
func (m *PoolMap) Len() int { return len(m.byID) }

// GetByStatus returns every entry currently in the given status, in
// ascending score order.
func (m *PoolMap) GetByStatus(status Status) []*Entry {
	tree := m.byStatus[status]
	out := make([]*Entry, 0, tree.Len())
	tree.Ascend(func(i btree.Item) bool {
		k := i.(scoreKey)
		if e, ok := m.byID[k.id]; ok {
			out = append(out, e)
		}
		return true
	})
	return out
}

// directParents returns the direct in-pool parents of tx, derived from
// by_output on each input (spec.md 4.1 add_entry).
func (m *PoolMap) directParentIDs(tx *core.Transaction) map[util.ShortID]struct{} {
	out := make(map[util.ShortID]struct{})
	for _, in := range tx.Inputs {
		if pid, ok := m.byOutput[in.PreviousOutput]; ok {
			if _, exists := m.byID[pid]; exists {
				out[pid] = struct{}{}
			}
		}
	}
	return out
}

// CalcAncestors returns the strict, transitive in-pool ancestors of id
// (excluding id itself).
func (m *PoolMap) CalcAncestors(id util.ShortID) map[util.ShortID]struct{} {
	visited := make(map[util.ShortID]struct{})
	var walk func(util.ShortID)
	walk = func(cur util.ShortID) {
		for p := range m.parents[cur] {
			if _, seen := visited[p]; seen {
				continue
			}
			visited[p] = struct{}{}
			walk(p)
		}
	}
	walk(id)
	return visited
}

// CalcDescendants returns the strict, transitive in-pool descendants of
// id (excluding id itself).
func (m *PoolMap) CalcDescendants(id util.ShortID) map[util.ShortID]struct{} {
	visited := make(map[util.ShortID]struct{})
	var walk func(util.ShortID)
	walk = func(cur util.ShortID) {
		for c := range m.children[cur] {
			if _, seen := visited[c]; seen {
				continue
			}
			visited[c] = struct{}{}
			walk(c)
		}
	}
	walk(id)
	return visited
}

// CalcAncestorsOfTx computes the strict in-pool ancestor set tx would
// acquire if admitted right now, without mutating anything. Used by RBF
// (spec.md 4.5 "ancestry disjointness") where the replacement transaction
// is not yet a pool entry.
func (m *PoolMap) CalcAncestorsOfTx(tx *core.Transaction) map[util.ShortID]struct{} {
	ancestors := make(map[util.ShortID]struct{})
	for p := range m.directParentIDs(tx) {
		ancestors[p] = struct{}{}
		for a := range m.CalcAncestors(p) {
			ancestors[a] = struct{}{}
		}
	}
	return ancestors
}

// AddEntry links e into the dependency graph and inserts it under
// targetStatus (spec.md 4.1). Rejects Duplicated if short_id is already
// present, or ExceededMaximumAncestorsCount if linking parents would push
// e's ancestor count past the configured bound — in which case nothing is
// mutated.
func (m *PoolMap) AddEntry(e *Entry, targetStatus Status) (bool, error) {
	if _, exists := m.byID[e.ShortID]; exists {
		return false, errDuplicated(e.Tx.Hash)
	}

	directParents := m.directParentIDs(e.Tx)

	ancestors := make(map[util.ShortID]struct{})
	for p := range directParents {
		ancestors[p] = struct{}{}
		for a := range m.CalcAncestors(p) {
			ancestors[a] = struct{}{}
		}
	}

	if uint64(len(ancestors)) > m.maxAncestorsCount {
		return false, errExceededMaxAncestors()
	}

	// Commit: from here on every step must succeed; the bound check above
	// is the only way this operation can fail.
	var ancestorsSize, ancestorsCycles uint64
	var ancestorsFee util.Capacity
	for a := range ancestors {
		ae := m.byID[a]
		ancestorsSize += ae.Size
		ancestorsCycles += ae.Cycles
		ancestorsFee += ae.Fee
	}
	e.AncestorsCount = uint64(len(ancestors))
	e.AncestorsSize = ancestorsSize
	e.AncestorsCycles = ancestorsCycles
	e.AncestorsFee = ancestorsFee

	m.byID[e.ShortID] = e
	status := targetStatus
	e.Status = status
	m.byStatus[status].ReplaceOrInsert(scoreKeyOf(e))

	for _, in := range e.Tx.Inputs {
		m.byInput[in.PreviousOutput] = e.ShortID
	}
	for _, pt := range e.Tx.OutputPoints() {
		m.byOutput[pt] = e.ShortID
	}
	for _, hd := range e.Tx.HeaderDeps {
		if m.byHeaderDep[hd] == nil {
			m.byHeaderDep[hd] = make(map[util.ShortID]struct{})
		}
		m.byHeaderDep[hd][e.ShortID] = struct{}{}
	}

	m.parents[e.ShortID] = directParents
	if m.children[e.ShortID] == nil {
		m.children[e.ShortID] = make(map[util.ShortID]struct{})
	}
	for p := range directParents {
		if m.children[p] == nil {
			m.children[p] = make(map[util.ShortID]struct{})
		}
		m.children[p][e.ShortID] = struct{}{}
	}

	// Every ancestor gains e as a descendant.
	for a := range ancestors {
		ae := m.byID[a]
		m.bumpDescendants(ae, 1, e.Size, e.Cycles, e.Fee)
	}

	return true, nil
}

func (m *PoolMap) bumpDescendants(e *Entry, count int64, size uint64, cycles uint64, fee util.Capacity) {
	if count >= 0 {
		e.DescendantsCount += uint64(count)
		e.DescendantsSize += size
		e.DescendantsCycles += cycles
		e.DescendantsFee += fee
		return
	}
	if uint64(-count) > e.DescendantsCount {
		log.Warn("poolmap: descendants_count underflow for %s, clamping to zero", e.ShortID)
		e.DescendantsCount = 0
	} else {
		e.DescendantsCount -= uint64(-count)
	}
	e.DescendantsSize = saturatingSubU64(e.DescendantsSize, size)
	e.DescendantsCycles = saturatingSubU64(e.DescendantsCycles, cycles)
	e.DescendantsFee = e.DescendantsFee.SaturatingSub(fee)
}

func saturatingSubU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// removeFromStatusIndex deletes e's score-key entry from its status
// bucket. Caller must pass the status e was still recorded under.
func (m *PoolMap) removeFromStatusIndex(e *Entry) {
	m.byStatus[e.Status].Delete(scoreKeyOf(e))
}

// unlinkIndices drops every secondary-index reference to e, leaving the
// dependency graph (parents/children) untouched — callers handle that
// separately since single-entry and cascading removal unlink differently.
func (m *PoolMap) unlinkIndices(e *Entry) {
	delete(m.byID, e.ShortID)
	m.removeFromStatusIndex(e)
	for _, in := range e.Tx.Inputs {
		if cur, ok := m.byInput[in.PreviousOutput]; ok && cur == e.ShortID {
			delete(m.byInput, in.PreviousOutput)
		}
	}
	for _, pt := range e.Tx.OutputPoints() {
		if cur, ok := m.byOutput[pt]; ok && cur == e.ShortID {
			delete(m.byOutput, pt)
		}
	}
	for _, hd := range e.Tx.HeaderDeps {
		if set, ok := m.byHeaderDep[hd]; ok {
			delete(set, e.ShortID)
			if len(set) == 0 {
				delete(m.byHeaderDep, hd)
			}
		}
	}
}

// RemoveEntry removes the single entry named id and every index
// reference to it, without removing its descendants. Descendant ancestor
// accumulators are decremented (this entry no longer counts as an
// ancestor); ancestor descendant accumulators are decremented
// symmetrically (spec.md 4.1 remove_entry). Returns nil if id is unknown.
func (m *PoolMap) RemoveEntry(id util.ShortID) *Entry {
	e, ok := m.byID[id]
	if !ok {
		return nil
	}

	ancestors := m.CalcAncestors(id)
	descendants := m.CalcDescendants(id)

	for a := range ancestors {
		m.bumpDescendants(m.byID[a], -1, e.Size, e.Cycles, e.Fee)
	}
	for d := range descendants {
		de := m.byID[d]
		// The ancestor sums feed de's score key, so re-key it around the update.
		m.removeFromStatusIndex(de)
		de.AncestorsCount = saturatingSubU64(de.AncestorsCount, 1)
		de.AncestorsSize = saturatingSubU64(de.AncestorsSize, e.Size)
		de.AncestorsCycles = saturatingSubU64(de.AncestorsCycles, e.Cycles)
		de.AncestorsFee = de.AncestorsFee.SaturatingSub(e.Fee)
		m.byStatus[de.Status].ReplaceOrInsert(scoreKeyOf(de))
	}

	// Direct children lose id as a parent; id's descendants become roots
	// with respect to this specific edge.
	for c := range m.children[id] {
		delete(m.parents[c], id)
	}
	for p := range m.parents[id] {
		delete(m.children[p], id)
	}
	delete(m.parents, id)
	delete(m.children, id)

	m.unlinkIndices(e)
	return e
}

// RemoveEntryAndDescendants transitively removes id and every in-pool
// descendant. The returned slice has no ordering guarantee beyond what
// spec.md 4.1 requires (callers that reinsert must sort by
// ancestors_count ascending themselves).
func (m *PoolMap) RemoveEntryAndDescendants(id util.ShortID) []*Entry {
	if _, ok := m.byID[id]; !ok {
		return nil
	}
	descendants := m.CalcDescendants(id)
	ids := make([]util.ShortID, 0, len(descendants)+1)
	ids = append(ids, id)
	for d := range descendants {
		ids = append(ids, d)
	}

	// Remove deepest (highest ancestors_count) first so each call to
	// RemoveEntry sees a graph that still contains whichever of its real
	// ancestors/descendants have not yet been deleted, keeping the
	// per-step accounting exact for the common single-parent chain case.
	sort.Slice(ids, func(i, j int) bool {
		return m.byID[ids[i]].AncestorsCount > m.byID[ids[j]].AncestorsCount
	})

	removed := make([]*Entry, 0, len(ids))
	for _, rid := range ids {
		if e := m.RemoveEntry(rid); e != nil {
			removed = append(removed, e)
		}
	}
	return removed
}

// ResolveConflict finds every pool entry that spends one of tx's inputs —
// a conflict created by tx committing — removes it with its descendants,
// and reports each as Reject::Resolve (spec.md 4.1, 4.8).
func (m *PoolMap) ResolveConflict(tx *core.Transaction) []ConflictRemoval {
	seen := make(map[util.ShortID]struct{})
	var out []ConflictRemoval
	for _, in := range tx.Inputs {
		conflictID, ok := m.byInput[in.PreviousOutput]
		if !ok {
			continue
		}
		if conflictID == tx.ShortID() {
			continue
		}
		if _, already := seen[conflictID]; already {
			continue
		}
		seen[conflictID] = struct{}{}
		for _, e := range m.RemoveEntryAndDescendants(conflictID) {
			out = append(out, ConflictRemoval{Entry: e, Reject: errResolve(&conflictError{txHash: tx.Hash})})
		}
	}
	return out
}

// ResolveConflictHeaderDep removes every entry (and its descendants) that
// references any of the detached headers (spec.md 4.1, 4.8).
func (m *PoolMap) ResolveConflictHeaderDep(detached []util.Hash) []ConflictRemoval {
	seen := make(map[util.ShortID]struct{})
	var out []ConflictRemoval
	for _, h := range detached {
		ids := m.byHeaderDep[h]
		idList := make([]util.ShortID, 0, len(ids))
		for id := range ids {
			idList = append(idList, id)
		}
		for _, id := range idList {
			if _, already := seen[id]; already {
				continue
			}
			seen[id] = struct{}{}
			for _, e := range m.RemoveEntryAndDescendants(id) {
				out = append(out, ConflictRemoval{Entry: e, Reject: errResolve(&headerDepError{header: h})})
			}
		}
	}
	return out
}

// ConflictRemoval pairs a removed entry with the rejection reported for it.
type ConflictRemoval struct {
	Entry  *Entry
	Reject *Reject
}

type conflictError struct{ txHash util.Hash }

func (e *conflictError) Error() string {
	return "conflicts with committed transaction " + e.txHash.String()
}

type headerDepError struct{ header util.Hash }

func (e *headerDepError) Error() string {
	return "depends on detached header " + e.header.String()
}

// SetEntry moves id from its current status bucket to status, preserving
// its identity and accumulators. Low-level: callers (TxPool.gap_rtx /
// proposed_rtx) are responsible for validating the current status first
// (spec.md 4.3).
func (m *PoolMap) SetEntry(id util.ShortID, status Status) bool {
	e, ok := m.byID[id]
	if !ok {
		return false
	}
	m.removeFromStatusIndex(e)
	e.Status = status
	m.byStatus[status].ReplaceOrInsert(scoreKeyOf(e))
	return true
}

// NextEvictEntry returns the lowest-score entry in status, the victim
// limit_size removes next (spec.md 4.7). Ties are broken by the btree's
// own ascending order (oldest timestamp first within equal fee rate).
func (m *PoolMap) NextEvictEntry(status Status) (util.ShortID, bool) {
	tree := m.byStatus[status]
	var found util.ShortID
	var ok bool
	tree.Ascend(func(i btree.Item) bool {
		k := i.(scoreKey)
		found, ok = k.id, true
		return false
	})
	return found, ok
}

// ScoreSortedIterByStatuses returns every entry across the given statuses
// in ascending score order, merging per-status buckets (spec.md 6
// get_ids / get_all_entry_info feed off this, reversing order as needed).
func (m *PoolMap) ScoreSortedIterByStatuses(statuses []Status) []*Entry {
	var all []*Entry
	for _, s := range statuses {
		all = append(all, m.GetByStatus(s)...)
	}
	sort.Slice(all, func(i, j int) bool {
		return scoreKeyOf(all[i]).Less(scoreKeyOf(all[j]))
	})
	return all
}

// FillProposals appends up to limit pending short ids (excluding any in
// exclusion) into out — the candidate proposal set for block assembly.
func (m *PoolMap) FillProposals(limit int, exclusion map[util.ShortID]struct{}, out map[util.ShortID]struct{}) {
	for _, e := range m.GetByStatus(StatusPending) {
		if len(out) >= limit {
			return
		}
		if _, excluded := exclusion[e.ShortID]; excluded {
			continue
		}
		out[e.ShortID] = struct{}{}
	}
}

// Clear drops every entry and index, resetting the map to empty.
func (m *PoolMap) Clear() {
	m.byID = make(map[util.ShortID]*Entry)
	for s := range m.byStatus {
		m.byStatus[s] = btree.New(32)
	}
	m.byInput = make(map[core.OutPoint]util.ShortID)
	m.byOutput = make(map[core.OutPoint]util.ShortID)
	m.byHeaderDep = make(map[util.Hash]map[util.ShortID]struct{})
	m.parents = make(map[util.ShortID]map[util.ShortID]struct{})
	m.children = make(map[util.ShortID]map[util.ShortID]struct{})
}
