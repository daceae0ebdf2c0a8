package overlay

import "github.com/carnot-network/carnot/carnot"

// FlatOverlay is the degenerate overlay where every participant sits in
// a single committee that is simultaneously root and leaf. It grounds
// spec.md's two/ten-node scenarios (S1-S2) where a tree shape buys
// nothing: every vote goes straight to the (implicit) leader.
type FlatOverlay struct {
	self    carnot.NodeId
	members carnot.Committee
}

// NewFlat builds a FlatOverlay over members, for the node identified by
// self (which must be one of members).
func NewFlat(self carnot.NodeId, members carnot.Committee) FlatOverlay {
	return FlatOverlay{self: self, members: members}
}

func (o FlatOverlay) Self() carnot.NodeId                 { return o.self }
func (o FlatOverlay) SelfCommittee() carnot.Committee     { return o.members }
func (o FlatOverlay) ParentCommittee() carnot.Committee   { return nil }
func (o FlatOverlay) ChildCommittees() []carnot.Committee { return nil }
func (o FlatOverlay) RootCommittee() carnot.Committee     { return o.members }
func (o FlatOverlay) LeafCommittees() []carnot.Committee {
	return []carnot.Committee{o.members}
}

func (o FlatOverlay) IsMemberOfRootCommittee(id carnot.NodeId) bool { return o.members.Contains(id) }
func (o FlatOverlay) IsMemberOfLeafCommittee(id carnot.NodeId) bool { return o.members.Contains(id) }
func (o FlatOverlay) IsChildOf(a, b carnot.Committee) bool          { return false }

func (o FlatOverlay) SuperMajorityThreshold() int       { return superMajority(o.members.Len()) }
func (o FlatOverlay) LeaderSuperMajorityThreshold() int { return superMajority(o.members.Len()) }

func (o FlatOverlay) Leader(view carnot.View) carnot.NodeId {
	return roundRobinLeader(o.members, view)
}

// The leader rotates deterministically with view and committee
// membership never changes in a FlatOverlay, so every update hook
// returns the overlay unchanged; the new view/TimeoutQc are only
// inputs to roundRobinLeader at query time, not to stored state.
func (o FlatOverlay) UpdateLeaderSelectionOnBlock(block carnot.Block) carnot.Overlay { return o }
func (o FlatOverlay) UpdateLeaderSelectionOnTimeoutQc(tqc carnot.TimeoutQc) carnot.Overlay {
	return o
}
func (o FlatOverlay) UpdateCommitteesOnBlock(block carnot.Block) carnot.Overlay       { return o }
func (o FlatOverlay) UpdateCommitteesOnTimeoutQc(tqc carnot.TimeoutQc) carnot.Overlay { return o }
