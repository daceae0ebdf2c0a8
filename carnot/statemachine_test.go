package carnot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/mempool"
	"github.com/carnot-network/carnot/overlay"
)

func nodeID(tag byte) carnot.NodeId {
	var id carnot.NodeId
	id[0] = tag
	return id
}

func flatOverlay(self carnot.NodeId, members ...carnot.NodeId) overlay.FlatOverlay {
	return overlay.NewFlat(self, carnot.NewCommittee(members...))
}

func TestReceiveBlockOnFlatOverlayVotesToNextLeader(t *testing.T) {
	a, b, leader := nodeID(1), nodeID(2), nodeID(3)
	members := []carnot.NodeId{a, b, leader}

	node := carnot.FromGenesis(a, flatOverlay(a, members...))

	qc := carnot.GenesisQC()
	block := carnot.Block{ViewNumber: 1, ParentQC: qc, Proof: carnot.LeaderID{ID: leader}}
	block.ID = carnot.BlockId{0xaa}

	out, err := node.ReceiveBlock(block)
	require.NoError(t, err)

	send, ok := out.(carnot.Send)
	require.True(t, ok, "a flat-overlay member is always a leaf and should vote directly")
	vote, ok := send.Payload.(carnot.VotePayload)
	require.True(t, ok)
	assert.Equal(t, block.ID, vote.Vote.BlockID)
	assert.Equal(t, block.ViewNumber, vote.Vote.ViewNumber)

	wantLeader := flatOverlay(a, members...).Leader(block.ViewNumber.Next())
	assert.True(t, send.To.Contains(wantLeader))
}

func TestReceiveBlockRejectsDoubleVoteAttemptViaApproveBlock(t *testing.T) {
	a := nodeID(1)
	node := carnot.FromGenesis(a, flatOverlay(a, a, nodeID(2), nodeID(3)))

	block := carnot.Block{ViewNumber: 1, ParentQC: carnot.GenesisQC(), Proof: carnot.LeaderID{ID: a}}
	block.ID = carnot.BlockId{0x01}
	_, err := node.ReceiveBlock(block)
	require.NoError(t, err)

	_, err = node.ApproveBlock(block)
	assert.Error(t, err, "highest_voted_view already advanced past block.ViewNumber")
}

func TestLocalTimeoutOnlyFiresForRootCommitteeMembers(t *testing.T) {
	root := nodeID(1)
	rootNode := carnot.FromGenesis(root, flatOverlay(root, root, nodeID(2), nodeID(3)))
	out, err := rootNode.LocalTimeout()
	require.NoError(t, err)
	send, ok := out.(carnot.Send)
	require.True(t, ok)
	timeout, ok := send.Payload.(carnot.TimeoutPayload)
	require.True(t, ok)
	assert.Equal(t, rootNode.CurrentView(), timeout.Timeout.ViewNumber)
}

func TestReceiveTimeoutQcAdvancesCurrentViewAndHighQC(t *testing.T) {
	self := nodeID(1)
	node := carnot.FromGenesis(self, flatOverlay(self, self, nodeID(2), nodeID(3)))

	embeddedHigh := carnot.StandardQC{ViewNumber: 7, BlockID: carnot.BlockId{0x07}}
	tqc := carnot.TimeoutQc{ViewNumber: 9, HighQC: embeddedHigh, Sender: nodeID(2)}

	node.ReceiveTimeoutQc(tqc)

	assert.Equal(t, carnot.View(10), node.CurrentView())
	assert.Equal(t, embeddedHigh, node.HighQC())

	last, ok := node.LastViewTimeoutQc()
	require.True(t, ok)
	assert.Equal(t, tqc, last)
}

func TestReceiveTimeoutQcUpdatesHighQCEvenWhenViewDoesNotAdvance(t *testing.T) {
	// Open Question resolution (SPEC_FULL.md §4.2): local_high_qc still
	// updates from a stale TimeoutQc's embedded high_qc, as long as that
	// embedded QC itself is newer than what we hold, even though the
	// TQC's own view no longer advances current_view.
	self := nodeID(1)
	node := carnot.FromGenesis(self, flatOverlay(self, self, nodeID(2), nodeID(3)))

	ahead := carnot.TimeoutQc{
		ViewNumber: 19,
		HighQC:     carnot.StandardQC{ViewNumber: 2, BlockID: carnot.BlockId{0x02}},
		Sender:     nodeID(2),
	}
	node.ReceiveTimeoutQc(ahead)
	require.Equal(t, carnot.View(20), node.CurrentView())

	staleHigh := carnot.StandardQC{ViewNumber: 15, BlockID: carnot.BlockId{0x15}}
	stale := carnot.TimeoutQc{ViewNumber: 5, HighQC: staleHigh, Sender: nodeID(3)}
	node.ReceiveTimeoutQc(stale)

	assert.Equal(t, carnot.View(20), node.CurrentView(), "a stale TQC view must never move current_view backwards")
	assert.Equal(t, staleHigh, node.HighQC(), "but its embedded high_qc is still newer than ours and must be adopted")
}

func TestProcessRootTimeoutBroadcastsTimeoutQcForRootMembers(t *testing.T) {
	root := nodeID(1)
	node := carnot.FromGenesis(root, flatOverlay(root, root, nodeID(2), nodeID(3)))

	timeouts := map[carnot.NodeId]carnot.Timeout{
		root:      {ViewNumber: 0, HighQC: carnot.GenesisQC(), Sender: root},
		nodeID(2): {ViewNumber: 0, HighQC: carnot.GenesisQC(), Sender: nodeID(2)},
	}
	out, err := node.ProcessRootTimeout(timeouts)
	require.NoError(t, err)
	broadcast, ok := out.(carnot.BroadcastTimeoutQc)
	require.True(t, ok)
	assert.Equal(t, carnot.View(0), broadcast.TimeoutQC.ViewNumber)
}

func TestProposeBlockBuildsNextViewFromQC(t *testing.T) {
	leader := nodeID(3)
	node := carnot.FromGenesis(leader, flatOverlay(leader, nodeID(1), nodeID(2), leader))

	qc := carnot.StandardQC{ViewNumber: 4, BlockID: carnot.BlockId{0x44}}
	pool := mempool.New(0)
	require.NoError(t, pool.Submit(carnot.Tx("hello")))
	beacon := mempool.NewHappyBeacon([]byte("seed"))

	out, err := node.ProposeBlock(qc, pool, beacon)
	require.NoError(t, err)
	proposal, ok := out.(carnot.BroadcastProposal)
	require.True(t, ok)
	assert.Equal(t, carnot.View(5), proposal.Block.Header.ViewNumber)
	assert.Equal(t, qc, proposal.Block.Header.ParentQC)
	require.Len(t, proposal.Block.Txs, 1)
}

func TestRecoverRestoresPersistedFields(t *testing.T) {
	self := nodeID(1)
	layout := flatOverlay(self, self, nodeID(2), nodeID(3))

	highQC := carnot.StandardQC{ViewNumber: 12, BlockID: carnot.BlockId{0x12}}
	node := carnot.Recover(self, layout, highQC, 11)

	assert.Equal(t, highQC, node.HighQC())
	assert.Equal(t, carnot.View(12), node.CurrentView())
	assert.Equal(t, carnot.View(11), node.HighestVotedView())
}
