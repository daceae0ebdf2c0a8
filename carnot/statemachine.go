package carnot

import "fmt"

// Carnot is the pure, deterministic consensus state machine described
// in spec.md §4.2. It owns State and an Overlay, and exposes exactly
// the transition operations spec.md names: ReceiveBlock, ApproveBlock,
// LocalTimeout, ReceiveTimeoutQc, ApproveNewView, ProcessRootTimeout,
// ProposeBlock. No transition performs I/O; every side effect is
// returned as an Output value for the orchestrator to dispatch.
//
// A *Carnot is owned exclusively by one orchestrator goroutine and is
// never accessed concurrently, matching the single-threaded
// cooperative scheduling model of spec.md §5.
type Carnot struct {
	id      NodeId
	overlay Overlay
	state   State
}

// FromGenesis constructs a Carnot rooted at the well-known genesis
// block, per the Lifecycle rules of spec.md §3.
func FromGenesis(id NodeId, overlay Overlay) *Carnot {
	return &Carnot{
		id:      id,
		overlay: overlay,
		state:   newGenesisState(),
	}
}

// Recover rebuilds a Carnot after a restart from its persister-backed
// state: local_high_qc and highest_voted_view survive a crash, but the
// block tree and current_view do not (spec.md's persister only durably
// tracks the two fields a missed write could turn into a safety
// violation) — current_view starts back at the recovered QC's view (or
// at highest_voted_view, if that is higher) and catches up as proposals and TimeoutQcs arrive, exactly as a node
// joining mid-run would.
func Recover(id NodeId, overlay Overlay, highQC StandardQC, highestVotedView View) *Carnot {
	c := &Carnot{id: id, overlay: overlay, state: newGenesisState()}
	c.state.localHighQC = highQC
	c.state.highestVotedView = highestVotedView
	c.advanceViewTo(highQC.ViewNumber)
	if highestVotedView > c.state.currentView {
		c.advanceViewTo(highestVotedView)
	}
	return c
}

func (c *Carnot) ID() NodeId             { return c.id }
func (c *Carnot) Overlay() Overlay       { return c.overlay }
func (c *Carnot) CurrentView() View      { return c.state.CurrentView() }
func (c *Carnot) HighestVotedView() View { return c.state.HighestVotedView() }
func (c *Carnot) HighQC() StandardQC     { return c.state.LocalHighQC() }
func (c *Carnot) GenesisBlock() Block    { return Genesis() }

func (c *Carnot) SafeBlocks() map[BlockId]Block { return c.state.SafeBlocksSnapshot() }
func (c *Carnot) BlocksInView(v View) []Block   { return c.state.BlocksInView(v) }
func (c *Carnot) LatestCommittedBlocks() []BlockId {
	return c.state.LatestCommittedBlocks()
}
func (c *Carnot) LastViewTimeoutQc() (TimeoutQc, bool) { return c.state.LastViewTimeoutQc() }

func (c *Carnot) SelfCommittee() Committee     { return c.overlay.SelfCommittee() }
func (c *Carnot) RootCommittee() Committee     { return c.overlay.RootCommittee() }
func (c *Carnot) ChildCommittees() []Committee { return c.overlay.ChildCommittees() }
func (c *Carnot) IsMemberOfRootCommittee() bool {
	return c.overlay.IsMemberOfRootCommittee(c.id)
}
func (c *Carnot) IsNextLeader() bool         { return IsNextLeader(c.overlay, c.state.currentView) }
func (c *Carnot) IsLeaderFor(view View) bool { return IsLeaderFor(c.overlay, view) }
func (c *Carnot) SuperMajorityThreshold() int {
	return c.overlay.SuperMajorityThreshold()
}
func (c *Carnot) LeaderSuperMajorityThreshold() int {
	return c.overlay.LeaderSuperMajorityThreshold()
}

// advanceViewTo bumps current_view if v is strictly greater; it never
// decreases current_view (spec.md §5 ordering guarantee).
func (c *Carnot) advanceViewTo(v View) {
	if v > c.state.currentView {
		c.state.currentView = v
	}
}

// rootFallbackDestination resolves where a message addressed "upward"
// should go: the parent committee, same as every non-root committee.
// The root committee has no parent committee in the overlay tree, but
// its members still must route the message somewhere — directly to the
// single node assembling the resulting QC, i.e. the leader of
// leaderView. Returns nil only when this node has neither a parent
// committee nor any entitlement to address the leader directly (not a
// root-committee member), which should not arise for a correctly
// constructed overlay.
func (c *Carnot) rootFallbackDestination(leaderView View) Committee {
	if parent := c.overlay.ParentCommittee(); parent != nil {
		return parent
	}
	if !c.overlay.IsMemberOfRootCommittee(c.id) {
		return nil
	}
	return NewCommittee(c.overlay.Leader(leaderView))
}

// voteDestination resolves a Vote cast for a block at blockView: the
// vote certifies blockView, so a root-committee member routes it to the
// leader of blockView's immediate successor — the node that will use
// the resulting QC to propose next.
func (c *Carnot) voteDestination(blockView View) Committee {
	return c.rootFallbackDestination(blockView.Next())
}

// newViewDestination resolves a NewView targeting newView (already
// tqc.View()+1): a root-committee member routes it straight to
// newView's leader, since that is the node accumulating NewViews into
// an AggregateQC for that same view.
func (c *Carnot) newViewDestination(newView View) Committee {
	return c.rootFallbackDestination(newView)
}

// ReceiveBlock implements spec.md §4.2's receive_block: validates the
// block against the block tree's safety rule and updates current_view
// and local_high_qc when warranted. It may itself produce Send(Vote) to
// the parent committee (or, for a root-committee member, to the next
// view's leader) when this node is a member of self_committee with no
// child committees to wait on (a leaf committee): there is nothing to
// gather before voting. Every other node returns no output
// here; the orchestrator instead schedules a vote-gather task that
// tallies its child committees' votes and, on completion, calls
// ApproveBlock to cast this node's own vote upward.
func (c *Carnot) ReceiveBlock(block Block) (Output, error) {
	_, err := c.state.tree.receiveBlock(block, c.state.currentView, c.state.localHighQC)
	if err != nil {
		return nil, err
	}

	c.advanceViewTo(block.ViewNumber)
	if std, ok := AsStandard(block.ParentQC); ok && std.ViewNumber > c.state.localHighQC.ViewNumber {
		c.state.localHighQC = std
	}

	if len(c.overlay.ChildCommittees()) != 0 {
		return nil, nil // not a leaf: wait for the vote-gather task instead
	}
	if block.ViewNumber <= c.state.highestVotedView {
		return nil, nil
	}
	dest := c.voteDestination(block.ViewNumber)
	if dest == nil {
		return nil, nil // not entitled to vote at all under this overlay
	}
	vote := Vote{ViewNumber: block.ViewNumber, BlockID: block.ID, Voter: c.id}
	c.state.highestVotedView = block.ViewNumber
	return Send{To: dest, Payload: VotePayload{Vote: vote}}, nil
}

// ApproveBlock implements spec.md §4.2's approve_block: called once the
// orchestrator's vote-gather task has confirmed a super-majority of
// this node's child committees voted for block. It emits this node's
// own vote — to the parent committee, or to the next leader directly
// if this node sits in the root committee — and advances
// highest_voted_view, satisfying Invariant 6.
func (c *Carnot) ApproveBlock(block Block) (Output, error) {
	if block.ViewNumber <= c.state.highestVotedView {
		return nil, NoVoteError{Reason: "not above highest_voted_view"}
	}
	dest := c.voteDestination(block.ViewNumber)
	if dest == nil {
		return nil, NoVoteError{Reason: "no destination to vote to"}
	}
	vote := Vote{ViewNumber: block.ViewNumber, BlockID: block.ID, Voter: c.id}
	c.state.highestVotedView = block.ViewNumber
	return Send{To: dest, Payload: VotePayload{Vote: vote}}, nil
}

// LocalTimeout implements spec.md §4.2's local_timeout: fired by the
// task manager's local-timeout timer. Only root-committee members
// timeout upward (everyone else's timeout is observed indirectly via a
// later TimeoutQc); sets highest_voted_view = current_view to prevent
// a stale vote for the timed-out view from slipping through later.
func (c *Carnot) LocalTimeout() (Output, error) {
	c.state.highestVotedView = c.state.currentView
	if !c.overlay.IsMemberOfRootCommittee(c.id) {
		return nil, nil
	}
	timeout := Timeout{ViewNumber: c.state.currentView, HighQC: c.state.localHighQC, Sender: c.id}
	return Send{To: c.overlay.RootCommittee(), Payload: TimeoutPayload{Timeout: timeout}}, nil
}

// ReceiveTimeoutQc implements spec.md §4.2's receive_timeout_qc: if the
// TQC's view is at or beyond current_view, current_view advances to
// tqc.view+1 and last_view_timeout_qc is recorded. Per the Open
// Question resolution in SPEC_FULL.md §4.2, local_high_qc is updated
// whenever the TQC's embedded high_qc is higher, even on the branch
// where current_view does not advance because the node is already
// past tqc.view via a proposal.
func (c *Carnot) ReceiveTimeoutQc(tqc TimeoutQc) {
	if tqc.HighQC.ViewNumber > c.state.localHighQC.ViewNumber {
		c.state.localHighQC = tqc.HighQC
	}
	if tqc.ViewNumber < c.state.currentView {
		return // stale: observed after we'd already moved on
	}
	c.advanceViewTo(tqc.ViewNumber.Next())
	t := tqc
	c.state.lastTimeoutQC = &t
	c.overlay = c.overlay.UpdateLeaderSelectionOnTimeoutQc(tqc)
	c.overlay = c.overlay.UpdateCommitteesOnTimeoutQc(tqc)
}

// MaybeSendNewView returns the NewView output a node should emit after
// processing a TimeoutQc: up to its parent committee, or — for a
// root-committee member — straight to the next view's leader, which
// accumulates NewViews into the AggregateQC it needs to propose.
func (c *Carnot) MaybeSendNewView(tqc TimeoutQc) (Output, bool) {
	view := tqc.ViewNumber.Next()
	dest := c.newViewDestination(view)
	if dest == nil {
		return nil, false
	}
	nv := NewView{ViewNumber: view, TimeoutQC: tqc, HighQC: c.state.localHighQC, Sender: c.id}
	return Send{To: dest, Payload: NewViewPayload{NewView: nv}}, true
}

// ApproveNewView implements spec.md §4.2's approve_new_view: called
// once a super-majority of NewViews at tqc.view+1 has accumulated.
// Non-root nodes simply forward a NewView upward; this is exposed
// separately from MaybeSendNewView so the orchestrator can gate it on
// the tally's completion rather than on every TimeoutQc receipt.
func (c *Carnot) ApproveNewView(tqc TimeoutQc) (Output, error) {
	out, ok := c.MaybeSendNewView(tqc)
	if !ok {
		return nil, fmt.Errorf("no parent committee to forward new-view to")
	}
	return out, nil
}

// ProcessRootTimeout implements spec.md §4.2's process_root_timeout:
// once the root committee accumulates a super-majority of Timeouts for
// current_view, constructs a TimeoutQc (high_qc = max across the
// timeouts and local_high_qc) and, if this node is itself a
// root-committee member, broadcasts it.
func (c *Carnot) ProcessRootTimeout(timeouts map[NodeId]Timeout) (Output, error) {
	for _, t := range timeouts {
		if t.ViewNumber != c.state.currentView {
			return nil, fmt.Errorf("root timeout view mismatch: %s != %s", t.ViewNumber, c.state.currentView)
		}
	}
	high := c.state.localHighQC
	for _, t := range timeouts {
		high = MaxStandardQC(high, t.HighQC)
	}
	if !c.overlay.IsMemberOfRootCommittee(c.id) {
		return nil, nil
	}
	tqc := TimeoutQc{ViewNumber: c.state.currentView, HighQC: high, Sender: c.id}
	return BroadcastTimeoutQc{TimeoutQC: tqc}, nil
}

// ProposeBlock implements spec.md §4.2's propose_block: only the next
// leader should call this. It builds a block at qc.view()+1 with
// parent qc, pulls a transaction batch from the mempool, derives the
// view's beacon state, and returns a BroadcastProposal output. It does
// not mutate State directly — the proposer observes its own broadcast
// like everyone else, through ReceiveBlock/ApproveBlock, to keep a
// single code path for "did I vote for this" bookkeeping.
func (c *Carnot) ProposeBlock(qc QC, pool Mempool, beacon BeaconGenerator) (Output, error) {
	view := qc.View().Next()
	var parentID BlockId
	if std, ok := AsStandard(qc); ok {
		parentID = std.BlockID
	} else if agg, ok := AsAggregate(qc); ok {
		parentID = agg.HighQC.BlockID
	}
	txs, err := pool.TransactionsSince(parentID)
	if err != nil {
		return nil, fmt.Errorf("could not fetch transactions: %w", err)
	}
	header := Block{
		ViewNumber: view,
		ParentQC:   qc,
		Proof:      LeaderID{ID: c.id},
	}
	header.ID = contentHash(header)
	full := FullBlock{Header: header, Txs: txs, Beacon: beacon.GenerateHappy(view)}
	return BroadcastProposal{Block: full}, nil
}
