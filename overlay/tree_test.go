package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
)

func nodeAt(n int) carnot.NodeId {
	var id carnot.NodeId
	id[31] = byte(n)
	return id
}

func nodes(n int) []carnot.NodeId {
	out := make([]carnot.NodeId, n)
	for i := range out {
		out[i] = nodeAt(i)
	}
	return out
}

func TestBuildFullBinaryTreeDepth1(t *testing.T) {
	layout := BuildFullBinaryTree(nodes(1), TreeSettings{CommitteeSize: 1, Depth: 1})
	assert.Len(t, layout.Committees, 1)
	assert.Empty(t, layout.Children)
	assert.Empty(t, layout.Parent)
}

func TestBuildFullBinaryTreeDepth3(t *testing.T) {
	layout := BuildFullBinaryTree(nodes(7), TreeSettings{CommitteeSize: 1, Depth: 3})
	assert.Equal(t, []int{1, 2}, layout.Children[0])
	assert.Equal(t, 0, layout.Parent[1])
	assert.Equal(t, 0, layout.Parent[2])
	assert.Equal(t, []int{3, 4}, layout.Children[1])
	assert.Equal(t, []int{5, 6}, layout.Children[2])
	_, hasChildren := layout.Children[3]
	assert.False(t, hasChildren)
}

func TestTreeOverlayRoles(t *testing.T) {
	ids := nodes(7)
	layout := BuildFullBinaryTree(ids, TreeSettings{CommitteeSize: 1, Depth: 3})

	root := NewTree(ids[0], layout)
	require.Nil(t, root.ParentCommittee())
	assert.Len(t, root.ChildCommittees(), 2)
	assert.True(t, root.IsMemberOfRootCommittee(ids[0]))

	leaf := NewTree(ids[3], layout)
	assert.Empty(t, leaf.ChildCommittees())
	assert.True(t, leaf.IsMemberOfLeafCommittee(ids[3]))
	require.NotNil(t, leaf.ParentCommittee())
	assert.True(t, leaf.ParentCommittee().Contains(ids[1]))

	intermediate := NewTree(ids[1], layout)
	assert.Len(t, intermediate.ChildCommittees(), 2)
	assert.False(t, intermediate.IsMemberOfLeafCommittee(ids[1]))
	assert.True(t, intermediate.IsChildOf(intermediate.SelfCommittee(), root.SelfCommittee()))
}

func TestFlatOverlaySingleCommittee(t *testing.T) {
	ids := nodes(4)
	members := carnot.NewCommittee(ids...)
	o := NewFlat(ids[0], members)

	assert.Nil(t, o.ParentCommittee())
	assert.Nil(t, o.ChildCommittees())
	assert.Equal(t, members, o.RootCommittee())
	assert.Equal(t, 3, o.SuperMajorityThreshold())
}

func TestRoundRobinLeaderIsDeterministic(t *testing.T) {
	ids := nodes(3)
	committee := carnot.NewCommittee(ids...)
	first := roundRobinLeader(committee, carnot.View(0))
	second := roundRobinLeader(committee, carnot.View(0))
	assert.Equal(t, first, second)

	seen := map[carnot.NodeId]bool{}
	for v := carnot.View(0); v < 3; v++ {
		seen[roundRobinLeader(committee, v)] = true
	}
	assert.Len(t, seen, 3, "round robin should cycle through every member over a full period")
}
