package orchestrator

import "github.com/carnot-network/carnot/carnot"

// Event is the sum type the run loop dispatches on, translated from
// network.Envelope in forwardInbox or self-produced by the orchestrator
// once a tally completes. Mirrors original_source/nomos-services/consensus/src/lib.rs's
// Event enum, trimmed of the Rust version's explicit stream-continuation
// variant: a network.Adapter's Inbox already behaves like a per-node
// message stream, so Go's equivalent of "gather the next block from the
// stream" is simply "read the next Proposal envelope".
type Event interface{ isEvent() }

// EventProposal carries a freshly received block, as delivered by a
// BroadcastProposal.
type EventProposal struct{ Block carnot.FullBlock }

// EventVote carries a single inbound Vote, whether addressed to this
// node's own committee tally or to this node's leader-side tally.
type EventVote struct{ Vote carnot.Vote }

// EventTimeout carries a single inbound Timeout, gathered by the root
// committee toward a TimeoutQc.
type EventTimeout struct{ Timeout carnot.Timeout }

// EventNewView carries a single inbound NewView, gathered toward either
// a forwarding vote (ApproveNewView) or, for the next leader, an
// AggregateQC.
type EventNewView struct{ NewView carnot.NewView }

// EventTimeoutQc carries a freshly received TimeoutQc, as delivered by
// a BroadcastTimeoutQc.
type EventTimeoutQc struct{ TimeoutQc carnot.TimeoutQc }

// EventLocalTimeout fires when this node's local view timer elapses
// without the view making progress.
type EventLocalTimeout struct{ View carnot.View }

// EventProposeBlock is self-produced once this node, as the next
// leader, has gathered enough votes (or NewViews) to build qc.
type EventProposeBlock struct{ Qc carnot.QC }

func (EventProposal) isEvent()     {}
func (EventVote) isEvent()         {}
func (EventTimeout) isEvent()      {}
func (EventNewView) isEvent()      {}
func (EventTimeoutQc) isEvent()    {}
func (EventLocalTimeout) isEvent() {}
func (EventProposeBlock) isEvent() {}
