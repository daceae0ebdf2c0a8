package overlay

import "github.com/carnot-network/carnot/carnot"

// TreeSettings mirrors simulations/src/overlay/tree.rs's TreeSettings:
// a full binary tree of depth layers, each committee holding
// committee_size members.
type TreeSettings struct {
	CommitteeSize int
	Depth         int
}

// committeeCount returns 2^depth - 1, the number of committees in a
// full binary tree of the given depth (root included).
func committeeCount(depth int) int {
	return (1 << uint(depth)) - 1
}

func parentIndex(id int) int {
	return (id - 1 + id%2) / 2
}

// BuildFullBinaryTree lays nodeIDs out into a full binary tree of
// committees per settings, assigning nodes to committees in the order
// given. The original (simulations/src/overlay/tree.rs) samples nodes
// into committees via a shuffled RNG; this core needs every node to
// derive the identical Layout without a shared source of randomness,
// so the assignment here is the deterministic in-order chunking of
// nodeIDs instead — callers wanting a shuffled assignment should
// pre-shuffle nodeIDs themselves before calling in.
func BuildFullBinaryTree(nodeIDs []carnot.NodeId, settings TreeSettings) Layout {
	count := committeeCount(settings.Depth)
	layout := Layout{
		Committees: make(map[int]carnot.Committee, count),
		Parent:     make(map[int]int, count),
		Children:   make(map[int][]int, count),
	}

	for committeeID := 0; committeeID < count; committeeID++ {
		start := committeeID * settings.CommitteeSize
		end := start + settings.CommitteeSize
		if start >= len(nodeIDs) {
			break
		}
		if end > len(nodeIDs) {
			end = len(nodeIDs)
		}
		layout.Committees[committeeID] = carnot.NewCommittee(nodeIDs[start:end]...)

		left := 2*committeeID + 1
		right := left + 1
		if right < count {
			layout.Children[committeeID] = []int{left, right}
		}
		if committeeID > 0 {
			layout.Parent[committeeID] = parentIndex(committeeID)
		}
	}
	return layout
}

// TreeOverlay is the full binary-tree committee overlay described in
// spec.md §2: a proposal flows root-to-leaf, votes flow leaf-to-root,
// and only the root committee ever times out directly.
type TreeOverlay struct {
	self   carnot.NodeId
	layout Layout
}

// NewTree builds a TreeOverlay for self over layout (typically produced
// by BuildFullBinaryTree). self must be a member of some committee in
// layout.
func NewTree(self carnot.NodeId, layout Layout) TreeOverlay {
	return TreeOverlay{self: self, layout: layout}
}

func (o TreeOverlay) selfIndex() int { return o.layout.committeeOf(o.self) }

func (o TreeOverlay) Self() carnot.NodeId { return o.self }

func (o TreeOverlay) SelfCommittee() carnot.Committee {
	return o.layout.Committees[o.selfIndex()]
}

func (o TreeOverlay) ParentCommittee() carnot.Committee {
	idx := o.selfIndex()
	parent, ok := o.layout.Parent[idx]
	if !ok {
		return nil
	}
	return o.layout.Committees[parent]
}

func (o TreeOverlay) ChildCommittees() []carnot.Committee {
	idx := o.selfIndex()
	var out []carnot.Committee
	for _, child := range o.layout.Children[idx] {
		out = append(out, o.layout.Committees[child])
	}
	return out
}

func (o TreeOverlay) RootCommittee() carnot.Committee {
	return o.layout.Committees[0]
}

func (o TreeOverlay) LeafCommittees() []carnot.Committee {
	var out []carnot.Committee
	for idx, c := range o.layout.Committees {
		if len(o.layout.Children[idx]) == 0 {
			out = append(out, c)
		}
	}
	return out
}

func (o TreeOverlay) IsMemberOfRootCommittee(id carnot.NodeId) bool {
	return o.layout.Committees[0].Contains(id)
}

func (o TreeOverlay) IsMemberOfLeafCommittee(id carnot.NodeId) bool {
	idx := o.layout.committeeOf(id)
	if idx < 0 {
		return false
	}
	return len(o.layout.Children[idx]) == 0
}

func (o TreeOverlay) IsChildOf(a, b carnot.Committee) bool {
	aIdx, bIdx := -1, -1
	for idx, c := range o.layout.Committees {
		if sameCommittee(c, a) {
			aIdx = idx
		}
		if sameCommittee(c, b) {
			bIdx = idx
		}
	}
	if aIdx < 0 || bIdx < 0 {
		return false
	}
	parent, ok := o.layout.Parent[aIdx]
	return ok && parent == bIdx
}

func sameCommittee(a, b carnot.Committee) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b.Contains(id) {
			return false
		}
	}
	return true
}

// SuperMajorityThreshold is computed over self_committee ∪ every child
// committee: the set whose votes this committee must gather before it
// may vote to its own parent.
func (o TreeOverlay) SuperMajorityThreshold() int {
	all := carnot.Union(append(o.ChildCommittees(), o.SelfCommittee())...)
	return superMajority(all.Len())
}

func (o TreeOverlay) LeaderSuperMajorityThreshold() int {
	return superMajority(o.RootCommittee().Len())
}

func (o TreeOverlay) Leader(view carnot.View) carnot.NodeId {
	return roundRobinLeader(o.RootCommittee(), view)
}

// Committee membership and the leader-selection rule in this overlay
// are both pure functions of the static Layout and the queried view, so
// every update hook is a no-op; a future reshuffling overlay (e.g. one
// that rotates committee membership on a timeout, per the original's
// epoch-boundary reshuffle) would instead return a TreeOverlay with a
// freshly computed Layout here.
func (o TreeOverlay) UpdateLeaderSelectionOnBlock(block carnot.Block) carnot.Overlay       { return o }
func (o TreeOverlay) UpdateLeaderSelectionOnTimeoutQc(tqc carnot.TimeoutQc) carnot.Overlay { return o }
func (o TreeOverlay) UpdateCommitteesOnBlock(block carnot.Block) carnot.Overlay            { return o }
func (o TreeOverlay) UpdateCommitteesOnTimeoutQc(tqc carnot.TimeoutQc) carnot.Overlay      { return o }
