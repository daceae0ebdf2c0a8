package carnot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockAt(view View, parent QC, tag byte) Block {
	b := Block{ViewNumber: view, ParentQC: parent, Proof: LeaderID{ID: NodeId{tag}}}
	b.ID = contentHash(b)
	return b
}

func TestReceiveBlockRejectsUnknownParent(t *testing.T) {
	tree := newBlockTree(Genesis())
	orphan := blockAt(5, StandardQC{ViewNumber: 4, BlockID: BlockId{0xff}}, 1)

	_, err := tree.receiveBlock(orphan, 0, GenesisQC())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownParent)
}

func TestReceiveBlockRejectsPastView(t *testing.T) {
	tree := newBlockTree(Genesis())
	b1 := blockAt(1, GenesisQC(), 1)
	_, err := tree.receiveBlock(b1, 0, GenesisQC())
	require.NoError(t, err)

	stale := blockAt(1, GenesisQC(), 2)
	_, err = tree.receiveBlock(stale, 5, GenesisQC())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPastView)
}

func TestReceiveBlockRejectsUnsafeAggregateExtension(t *testing.T) {
	tree := newBlockTree(Genesis())
	b1 := blockAt(1, GenesisQC(), 1)
	_, err := tree.receiveBlock(b1, 0, GenesisQC())
	require.NoError(t, err)

	std1 := StandardQC{ViewNumber: 1, BlockID: b1.ID}
	localHigh := StandardQC{ViewNumber: 3, BlockID: BlockId{0x09}}
	stale := blockAt(2, AggregateQC{ViewNumber: 1, HighQC: std1}, 2)

	_, err = tree.receiveBlock(stale, 0, localHigh)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsafeExtension)
}

func TestTwoChainCommitRule(t *testing.T) {
	tree := newBlockTree(Genesis())

	b1 := blockAt(1, GenesisQC(), 1)
	_, err := tree.receiveBlock(b1, 0, GenesisQC())
	require.NoError(t, err)
	assert.Empty(t, tree.latestCommitted())

	// b2's parent_qc (std1, certifying b1 at view 1) plus b1's own
	// parent_qc (genesis's QC at view 0) form the two consecutive
	// certified views the rule needs, so genesis commits right away.
	std1 := StandardQC{ViewNumber: 1, BlockID: b1.ID}
	b2 := blockAt(2, std1, 2)
	committed, err := tree.receiveBlock(b2, 1, GenesisQC())
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, ZeroBlock, committed[0])
	assert.False(t, tree.isCommitted(b1.ID))

	// b3 then supplies the same two-certificate chain one level up
	// (std2 on b2, std1 embedded in b2's own parent_qc), committing b1.
	std2 := StandardQC{ViewNumber: 2, BlockID: b2.ID}
	b3 := blockAt(3, std2, 3)
	committed, err = tree.receiveBlock(b3, 2, GenesisQC())
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, b1.ID, committed[0])
	assert.True(t, tree.isCommitted(b1.ID))
}

func TestReceiveBlockIsIdempotent(t *testing.T) {
	tree := newBlockTree(Genesis())
	b1 := blockAt(1, GenesisQC(), 1)

	_, err := tree.receiveBlock(b1, 0, GenesisQC())
	require.NoError(t, err)
	_, err = tree.receiveBlock(b1, 0, GenesisQC())
	assert.NoError(t, err)
}

func TestPendingEvictionBoundsUncommittedGrowth(t *testing.T) {
	tree := newBlockTree(Genesis())

	// Every block here extends genesis via a timeout-recovery (Aggregate)
	// parent QC, which tryCommit explicitly never commits — so these
	// never leave the pending LRU on their own, letting us drive it past
	// capacity.
	var first, last Block
	for i := 1; i <= pendingCapacity+10; i++ {
		b := blockAt(View(i), AggregateQC{ViewNumber: View(i - 1), HighQC: GenesisQC()}, byte(i))
		_, err := tree.receiveBlock(b, 0, GenesisQC())
		require.NoError(t, err)
		if i == 1 {
			first = b
		}
		last = b
	}

	_, stillThere := tree.get(first.ID)
	assert.False(t, stillThere, "the oldest uncommitted block should have been evicted")
	_, ok := tree.get(last.ID)
	assert.True(t, ok, "the most recently admitted block must survive")
	_, genesisOk := tree.get(ZeroBlock)
	assert.True(t, genesisOk, "genesis is never evicted")
}
