package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaolou86/ckb/config"
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/snapshot"
	"github.com/xiaolou86/ckb/util"
)

// txFixture is a minimal, deterministic single-input/single-output
// transaction used to build ancestor chains without a real codec.
func txFixture(seed byte, spends core.OutPoint, capacity util.Capacity) *core.Transaction {
	tx := &core.Transaction{
		Version: 0,
		Inputs:  []core.CellInput{{PreviousOutput: spends}},
		Outputs: []core.CellOutput{{Capacity: capacity, Lock: &core.Script{}}},
		OutputsData: [][]byte{{}},
	}
	tx.Hash = util.Hash{seed}
	return tx
}

func newTestPool(t *testing.T) (*TxPool, *snapshot.MemSnapshot) {
	t.Helper()
	snap := snapshot.NewMemSnapshot()
	cfg := config.Default()
	cfg.MaxAncestorsCount = 5
	p := New(cfg, snap)
	return p, snap
}

func admitPending(t *testing.T, p *TxPool, tx *core.Transaction, fee util.Capacity, ts int64) *Entry {
	t.Helper()
	e := NewEntry(tx, tx.SerializeSize(), 1000, fee, ts)
	ok, err := p.AddPending(e)
	require.NoError(t, err)
	require.True(t, ok)
	return e
}

// S1: a pending transaction committing leaves the pool and fires OnCommitted.
func TestBasicAdmitAndCommit(t *testing.T) {
	p, _ := newTestPool(t)
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}
	tx := txFixture(1, root, 1000)
	admitPending(t, p, tx, 500, 1000)

	assert.Equal(t, 1, p.StatusSize(StatusPending))
	assert.Equal(t, tx.SerializeSize(), p.TotalTxSize())

	var committed []*core.Transaction
	cb := Callbacks{OnCommitted: func(pool *TxPool, e *Entry) { committed = append(committed, e.Tx) }}
	p.RemoveCommittedTxs([]*core.Transaction{tx}, nil, cb)

	assert.Equal(t, 0, p.StatusSize(StatusPending))
	assert.Equal(t, uint64(0), p.TotalTxSize())
	require.Len(t, committed, 1)
	assert.Equal(t, tx.Hash, committed[0].Hash)
}

// S2: admission past max_ancestors_count is rejected without mutating state.
func TestAncestorLimitRejectsAdmission(t *testing.T) {
	p, _ := newTestPool(t)
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}

	var prev core.OutPoint = root
	for i := byte(1); i <= 5; i++ {
		tx := txFixture(i, prev, 1000)
		admitPending(t, p, tx, 500, int64(i))
		prev = core.OutPoint{TxHash: tx.Hash, Index: 0}
	}
	assert.Equal(t, 5, p.StatusSize(StatusPending))

	// A sixth descendant would have 5 ancestors already at the limit, and
	// itself would push the ancestor count to 5... the seventh is the one
	// that must fail.
	tx6 := txFixture(6, prev, 1000)
	e6 := NewEntry(tx6, tx6.SerializeSize(), 1000, 500, 6)
	ok, err := p.AddPending(e6)
	require.NoError(t, err)
	require.True(t, ok)
	prev = core.OutPoint{TxHash: tx6.Hash, Index: 0}

	tx7 := txFixture(7, prev, 1000)
	e7 := NewEntry(tx7, tx7.SerializeSize(), 1000, 500, 7)
	ok, err = p.AddPending(e7)
	assert.False(t, ok)
	require.Error(t, err)
	reject, isReject := err.(*Reject)
	require.True(t, isReject)
	assert.Equal(t, RejectExceededMaxAncestors, reject.Code)

	// Rejected admission must not have mutated anything.
	assert.Equal(t, 6, p.StatusSize(StatusPending))
	_, found := p.GetPoolEntry(tx7.ShortID())
	assert.False(t, found)
}

// S3: a fee-bumping replacement passes every RBF rule against its conflict.
func TestRBFAcceptsSufficientFeeBump(t *testing.T) {
	p, snap := newTestPool(t)
	p.config.MinRBFRate = p.config.MinFeeRate + 1000
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}
	snap.AddCell(root, &core.CellOutput{Capacity: 100_000, Lock: &core.Script{}})

	original := txFixture(1, root, 1000)
	admitPending(t, p, original, 500, 1000)

	replacement := txFixture(2, root, 900)
	conflicts := map[util.ShortID]struct{}{original.ShortID(): {}}

	minFee, err := minReplaceFee([]*Entry{mustGet(t, p, original.ShortID())}, replacement.SerializeSize(), p.config.MinRBFRate)
	require.NoError(t, err)

	err = p.CheckRBF(replacement, conflicts, minFee+1, replacement.SerializeSize())
	assert.NoError(t, err)
}

// S3b: a replacement that doesn't clear the fee floor is rejected.
func TestRBFRejectsInsufficientFee(t *testing.T) {
	p, snap := newTestPool(t)
	p.config.MinRBFRate = p.config.MinFeeRate + 1000
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}
	snap.AddCell(root, &core.CellOutput{Capacity: 100_000, Lock: &core.Script{}})

	original := txFixture(1, root, 1000)
	admitPending(t, p, original, 500, 1000)

	replacement := txFixture(2, root, 900)
	conflicts := map[util.ShortID]struct{}{original.ShortID(): {}}

	err := p.CheckRBF(replacement, conflicts, 1, replacement.SerializeSize())
	require.Error(t, err)
	reject := err.(*Reject)
	assert.Equal(t, RejectRBF, reject.Code)
}

// S4 (R5): a conflict with 100 descendants is rejected, since replacing it
// would evict 101 transactions, more than the bound of 100.
func TestRBFRejectsTooManyReplacedTransactions(t *testing.T) {
	p, snap := newTestPool(t)
	p.config.MinRBFRate = p.config.MinFeeRate + 1000
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}
	snap.AddCell(root, &core.CellOutput{Capacity: 1_000_000, Lock: &core.Script{}})

	first := txFixture(1, root, 10_000)
	admitPending(t, p, first, 500, 1)

	prev := core.OutPoint{TxHash: first.Hash, Index: 0}
	for i := 2; i <= 101; i++ {
		tx := txFixture(byte(i%256), prev, util.Capacity(10_000-i))
		e := NewEntry(tx, tx.SerializeSize(), 1000, 500, int64(i))
		// Ancestor bound isn't what's under test here; relax it.
		p.poolMap.maxAncestorsCount = 1000
		ok, err := p.AddPending(e)
		require.NoError(t, err)
		require.True(t, ok)
		prev = core.OutPoint{TxHash: tx.Hash, Index: 0}
	}

	replacement := txFixture(255, root, 5)
	conflicts := map[util.ShortID]struct{}{first.ShortID(): {}}
	err := p.CheckRBF(replacement, conflicts, util.MaxCapacity, replacement.SerializeSize())
	require.Error(t, err)
	reject := err.(*Reject)
	assert.Equal(t, RejectRBF, reject.Code)
}

// S5: detached proposals return to Pending with reset ancestor statistics.
func TestRemoveByDetachedProposalResetsToPending(t *testing.T) {
	p, _ := newTestPool(t)
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}
	tx := txFixture(1, root, 1000)
	e := NewEntry(tx, tx.SerializeSize(), 1000, 500, 1)
	ok, err := p.AddProposed(e)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusProposed, e.Status)

	p.RemoveByDetachedProposal([]util.ShortID{tx.ShortID()})

	got, found := p.GetPoolEntry(tx.ShortID())
	require.True(t, found)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, uint64(0), got.AncestorsCount)
}

// S6: size pressure evicts the lowest-score entry first.
func TestLimitSizeEvictsLowestScoreFirst(t *testing.T) {
	p, _ := newTestPool(t)
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}

	low := txFixture(1, root, 1000)
	admitPending(t, p, low, 100, 1) // low fee rate

	root2 := core.OutPoint{TxHash: util.Hash{9}, Index: 0}
	high := txFixture(2, root2, 1000)
	admitPending(t, p, high, 5000, 2) // high fee rate

	p.config.MaxTxPoolSize = p.TotalTxSize() - 1

	var rejected []*Entry
	cb := Callbacks{OnReject: func(pool *TxPool, e *Entry, r *Reject) { rejected = append(rejected, e) }}
	p.LimitSize(cb)

	require.Len(t, rejected, 1)
	assert.Equal(t, low.Hash, rejected[0].Tx.Hash)
	_, stillThere := p.GetPoolEntry(high.ShortID())
	assert.True(t, stillThere)
}

func mustGet(t *testing.T, p *TxPool, id util.ShortID) *Entry {
	t.Helper()
	e, ok := p.GetPoolEntry(id)
	require.True(t, ok)
	return e
}
