package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/util"
)

// TestTxsToCommitRespectsTopologicalOrder verifies a child is never
// selected before its in-pool Proposed parent, even when the child alone
// would score higher (spec.md 4.4).
func TestTxsToCommitRespectsTopologicalOrder(t *testing.T) {
	m := NewPoolMap(100)
	root := core.OutPoint{TxHash: util.ZeroHash, Index: 0}

	parent := txFixture(1, root, 1000)
	parentEntry := NewEntry(parent, parent.SerializeSize(), 1000, 100, 1)
	ok, err := m.AddEntry(parentEntry, StatusProposed)
	require.NoError(t, err)
	require.True(t, ok)

	childOut := core.OutPoint{TxHash: parent.Hash, Index: 0}
	child := txFixture(2, childOut, 1000)
	childEntry := NewEntry(child, child.SerializeSize(), 1000, 10_000, 2)
	ok, err = m.AddEntry(childEntry, StatusProposed)
	require.NoError(t, err)
	require.True(t, ok)

	selected, _, _ := NewCommitTxsScanner(m).TxsToCommit(^uint64(0), ^uint64(0))
	require.Len(t, selected, 2)
	assert.Equal(t, parent.Hash, selected[0].Tx.Hash)
	assert.Equal(t, child.Hash, selected[1].Tx.Hash)
}

// TestTxsToCommitSkipsOverLimitCandidates verifies a too-large candidate is
// skipped (not a hard stop), letting a smaller, lower-scored one through.
func TestTxsToCommitSkipsOverLimitCandidates(t *testing.T) {
	m := NewPoolMap(100)
	root1 := core.OutPoint{TxHash: util.Hash{9}, Index: 0}
	root2 := core.OutPoint{TxHash: util.Hash{8}, Index: 0}

	big := txFixture(1, root1, 1000)
	bigEntry := NewEntry(big, 10_000, 10_000, 50_000, 1)
	ok, err := m.AddEntry(bigEntry, StatusProposed)
	require.NoError(t, err)
	require.True(t, ok)

	small := txFixture(2, root2, 1000)
	smallEntry := NewEntry(small, 100, 100, 10, 2)
	ok, err = m.AddEntry(smallEntry, StatusProposed)
	require.NoError(t, err)
	require.True(t, ok)

	selected, size, _ := NewCommitTxsScanner(m).TxsToCommit(500, ^uint64(0))
	require.Len(t, selected, 1)
	assert.Equal(t, small.Hash, selected[0].Tx.Hash)
	assert.Equal(t, uint64(100), size)
}
