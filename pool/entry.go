package pool

import (
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/util"
)

// Status is one of the three pool statuses a transaction cycles through
// before it commits (spec.md 4.3).
type Status int

const (
	StatusPending Status = iota
	StatusGap
	StatusProposed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusGap:
		return "Gap"
	case StatusProposed:
		return "Proposed"
	default:
		return "Unknown"
	}
}

// Entry is the pool's record of one admitted transaction plus its derived
// metrics (spec.md 3 "Entry attributes"). It is immutable after admission
// except for the fields status transitions and ancestor/descendant
// accumulator updates touch.
type Entry struct {
	ShortID util.ShortID
	Tx      *core.Transaction
	Size    uint64
	Cycles  uint64
	Fee     util.Capacity

	// Timestamp is admission time in milliseconds since epoch.
	Timestamp int64
	Status    Status

	AncestorsCount  uint64
	AncestorsSize   uint64
	AncestorsCycles uint64
	AncestorsFee    util.Capacity

	DescendantsCount  uint64
	DescendantsSize   uint64
	DescendantsCycles uint64
	DescendantsFee    util.Capacity
}

// NewEntry builds a fresh Entry with zeroed ancestor/descendant
// accumulators; PoolMap.AddEntry fills those in as it links the entry
// into the dependency graph.
func NewEntry(tx *core.Transaction, size, cycles uint64, fee util.Capacity, timestampMs int64) *Entry {
	return &Entry{
		ShortID:   tx.ShortID(),
		Tx:        tx,
		Size:      size,
		Cycles:    cycles,
		Fee:       fee,
		Timestamp: timestampMs,
		Status:    StatusPending,
	}
}

// OwnFeeRate is this entry's own fee / size rate, ignoring ancestors.
func (e *Entry) OwnFeeRate() util.FeeRate {
	return util.FeeRateOf(e.Fee, e.Size)
}

// EffectiveFeeRate is the ancestor-bounded fee rate used for ordering
// (spec.md 4.2): min(fee/size, ancestors_fee/ancestors_size). An entry
// with no in-pool ancestors is bounded only by its own rate, since the
// ancestor ratio is undefined (zero/zero) in that case.
func (e *Entry) EffectiveFeeRate() util.FeeRate {
	own := e.OwnFeeRate()
	if e.AncestorsSize == 0 {
		return own
	}
	ancestorRate := util.FeeRateOf(e.AncestorsFee, e.AncestorsSize)
	if ancestorRate < own {
		return ancestorRate
	}
	return own
}

// resetStatisticState clears every ancestor/descendant accumulator,
// matching the teacher-adjacent rust reset_statistic_state called by
// remove_by_detached_proposal before an entry is re-added as a fresh
// Pending root (spec.md 4.8).
func (e *Entry) resetStatisticState() {
	e.AncestorsCount, e.AncestorsSize, e.AncestorsCycles, e.AncestorsFee = 0, 0, 0, 0
	e.DescendantsCount, e.DescendantsSize, e.DescendantsCycles, e.DescendantsFee = 0, 0, 0, 0
}

// Info is the read-only projection returned to callers via
// get_all_entry_info (spec.md 6 "Outputs").
type Info struct {
	ShortID         util.ShortID
	Size            uint64
	Cycles          uint64
	Fee             util.Capacity
	Timestamp       int64
	Status          Status
	AncestorsCount  uint64
	AncestorsSize   uint64
	AncestorsCycles uint64
	AncestorsFee    util.Capacity
}

func (e *Entry) ToInfo() Info {
	return Info{
		ShortID:         e.ShortID,
		Size:            e.Size,
		Cycles:          e.Cycles,
		Fee:             e.Fee,
		Timestamp:       e.Timestamp,
		Status:          e.Status,
		AncestorsCount:  e.AncestorsCount,
		AncestorsSize:   e.AncestorsSize,
		AncestorsCycles: e.AncestorsCycles,
		AncestorsFee:    e.AncestorsFee,
	}
}
