// Package tally accumulates Vote, Timeout and NewView messages toward
// the super-majority thresholds the carnot state machine needs before
// it may call ApproveBlock, ProcessRootTimeout or ApproveNewView. It
// mirrors the accumulate-until-threshold bookkeeping of
// engine/consensus/hotstuff/vote_aggregator.go, adapted to the three
// distinct message kinds spec.md's overlay tree gathers (a single vote
// aggregator in the teacher, split three ways here because Carnot's
// tree overlay tallies each kind against a different committee and
// threshold).
package tally

import (
	"github.com/carnot-network/carnot/carnot"
)

// VoteTally accumulates Vote messages for a single (view, blockID)
// pair, as gathered by one committee from its child committees or by
// the next leader from the root committee. Leaf committees build no
// VoteTally: they vote directly in carnot.Carnot.ReceiveBlock.
type VoteTally struct {
	view      carnot.View
	blockID   carnot.BlockId
	threshold int
	seen      map[carnot.NodeId]carnot.Vote
	crossed   bool
}

// NewVoteTally builds a tally that closes once threshold distinct
// participating voters have cast a Vote for (view, blockID).
func NewVoteTally(view carnot.View, blockID carnot.BlockId, threshold int) *VoteTally {
	return &VoteTally{
		view:      view,
		blockID:   blockID,
		threshold: threshold,
		seen:      make(map[carnot.NodeId]carnot.Vote),
	}
}

// Add records vote if it matches this tally's (view, blockID) and the
// voter is a participant, and reports whether this call is the one
// that first reached the threshold. Once crossed, every later call
// returns false even if the count stays at or above threshold,
// satisfying property 5 (tally_by yields Some exactly once). A
// duplicate vote from a voter already seen is ignored, satisfying
// Invariant 5 (idempotent re-delivery never inflates the tally).
func (t *VoteTally) Add(vote carnot.Vote, participants carnot.Committee) (done bool) {
	if vote.ViewNumber != t.view || vote.BlockID != t.blockID {
		return false
	}
	if !participants.Contains(vote.Voter) {
		return false
	}
	t.seen[vote.Voter] = vote
	return t.crossThreshold()
}

// crossThreshold reports true exactly once, on the call where reached()
// first becomes true; every later call returns false.
func (t *VoteTally) crossThreshold() bool {
	if t.crossed || !t.reached() {
		return false
	}
	t.crossed = true
	return true
}

func (t *VoteTally) reached() bool { return len(t.seen) >= t.threshold }

// QC builds the StandardQC this tally certifies, once reached() is
// true; the returned bool mirrors reached() for callers that want a
// single check-and-extract call.
func (t *VoteTally) QC() (carnot.StandardQC, bool) {
	if !t.reached() {
		return carnot.StandardQC{}, false
	}
	return carnot.StandardQC{ViewNumber: t.view, BlockID: t.blockID}, true
}

// Votes returns every vote accumulated so far, for notification and
// audit purposes.
func (t *VoteTally) Votes() map[carnot.NodeId]carnot.Vote {
	out := make(map[carnot.NodeId]carnot.Vote, len(t.seen))
	for k, v := range t.seen {
		out[k] = v
	}
	return out
}

// TimeoutTally accumulates Timeout messages for the root committee at a
// single view, as gathered by process_root_timeout.
type TimeoutTally struct {
	view      carnot.View
	threshold int
	seen      map[carnot.NodeId]carnot.Timeout
	crossed   bool
}

func NewTimeoutTally(view carnot.View, threshold int) *TimeoutTally {
	return &TimeoutTally{view: view, threshold: threshold, seen: make(map[carnot.NodeId]carnot.Timeout)}
}

// Add reports true exactly once, on the call that first reaches
// threshold; see VoteTally.Add.
func (t *TimeoutTally) Add(timeout carnot.Timeout, participants carnot.Committee) (done bool) {
	if timeout.ViewNumber != t.view {
		return false
	}
	if !participants.Contains(timeout.Sender) {
		return false
	}
	t.seen[timeout.Sender] = timeout
	return t.crossThreshold()
}

func (t *TimeoutTally) reached() bool { return len(t.seen) >= t.threshold }

func (t *TimeoutTally) crossThreshold() bool {
	if t.crossed || !t.reached() {
		return false
	}
	t.crossed = true
	return true
}

// Timeouts returns the accumulated timeouts once threshold is reached,
// ready to hand to carnot.Carnot.ProcessRootTimeout.
func (t *TimeoutTally) Timeouts() (map[carnot.NodeId]carnot.Timeout, bool) {
	if !t.reached() {
		return nil, false
	}
	out := make(map[carnot.NodeId]carnot.Timeout, len(t.seen))
	for k, v := range t.seen {
		out[k] = v
	}
	return out, true
}

// NewViewTally accumulates NewView messages at tqc.view+1, as gathered
// by the next leader (or any forwarding non-root node) before calling
// ApproveNewView / building the view's AggregateQC.
type NewViewTally struct {
	view      carnot.View
	threshold int
	seen      map[carnot.NodeId]carnot.NewView
	crossed   bool
}

func NewNewViewTally(view carnot.View, threshold int) *NewViewTally {
	return &NewViewTally{view: view, threshold: threshold, seen: make(map[carnot.NodeId]carnot.NewView)}
}

// Add reports true exactly once, on the call that first reaches
// threshold; see VoteTally.Add.
func (t *NewViewTally) Add(nv carnot.NewView, participants carnot.Committee) (done bool) {
	if nv.ViewNumber != t.view {
		return false
	}
	if !participants.Contains(nv.Sender) {
		return false
	}
	t.seen[nv.Sender] = nv
	return t.crossThreshold()
}

func (t *NewViewTally) reached() bool { return len(t.seen) >= t.threshold }

func (t *NewViewTally) crossThreshold() bool {
	if t.crossed || !t.reached() {
		return false
	}
	t.crossed = true
	return true
}

// AggregateQC builds the view's AggregateQC, carrying forward the
// highest StandardQC any accumulated NewView sender reported.
func (t *NewViewTally) AggregateQC() (carnot.AggregateQC, bool) {
	if !t.reached() {
		return carnot.AggregateQC{}, false
	}
	var high carnot.StandardQC
	for _, nv := range t.seen {
		high = carnot.MaxStandardQC(high, nv.HighQC)
	}
	return carnot.AggregateQC{ViewNumber: t.view, HighQC: high}, true
}
