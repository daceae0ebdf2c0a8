package carnot

// Overlay answers committee-membership and leader-selection queries for
// the tree-shaped committee structure the node sits in. The state
// machine treats it as a capability set constructed once and queried
// repeatedly; concrete variants (flat, tree-shaped, ...) are supplied
// by the overlay package and selected at construction time — no
// runtime polymorphism is required once the node is running.
type Overlay interface {
	// Self is this node's own identity.
	Self() NodeId
	// SelfCommittee is the committee this node belongs to.
	SelfCommittee() Committee
	// ParentCommittee is the committee directly above this node's own
	// committee in the overlay tree, or nil at the root.
	ParentCommittee() Committee
	// ChildCommittees are the committees directly below this node's own
	// committee, or nil at the leaves.
	ChildCommittees() []Committee
	// RootCommittee is the unique committee at the top of the tree.
	RootCommittee() Committee
	// LeafCommittees are every committee with no children.
	LeafCommittees() []Committee

	IsMemberOfRootCommittee(id NodeId) bool
	IsMemberOfLeafCommittee(id NodeId) bool
	IsChildOf(a, b Committee) bool

	// SuperMajorityThreshold is the threshold within the node's own
	// committee (ceil(2N/3)+1 of child_committees ∪ self_committee).
	SuperMajorityThreshold() int
	// LeaderSuperMajorityThreshold is the threshold the leader applies
	// to root-committee votes.
	LeaderSuperMajorityThreshold() int

	// Leader returns the node id selected to lead view.
	Leader(view View) NodeId

	// The UpdateLeaderSelectionOn* and UpdateCommitteesOn* methods apply the
	// on_new_block_received / on_timeout_qc_received hooks in place and
	// must be deterministic and total; they return the (possibly) new
	// overlay value to support both mutable and persistent-functional
	// implementations.
	UpdateLeaderSelectionOnBlock(block Block) Overlay
	UpdateLeaderSelectionOnTimeoutQc(tqc TimeoutQc) Overlay
	UpdateCommitteesOnBlock(block Block) Overlay
	UpdateCommitteesOnTimeoutQc(tqc TimeoutQc) Overlay
}

// IsLeaderFor and IsNextLeader are deterministic, total, non-blocking
// functions of the overlay's leader-selection rule, expressed here as
// free functions over an Overlay so call sites read like the spec.
func IsLeaderFor(o Overlay, view View) bool {
	return o.Leader(view) == o.Self()
}

func IsNextLeader(o Overlay, currentView View) bool {
	return IsLeaderFor(o, currentView.Next())
}
