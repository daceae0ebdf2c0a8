// Package orchestrator drives the pure carnot.Carnot state machine: it
// owns the single run loop that decodes inbound network.Envelopes into
// Events, tallies votes/timeouts/new-views toward their thresholds,
// feeds the resulting Events into carnot's transition methods, and
// dispatches every carnot.Output the core returns back out through a
// network.Adapter. Lifecycle contract (Start() (exit, done)) follows
// module/hotstuff.go's HotStuff interface; the single-goroutine
// select-loop-plus-per-view-task-cancellation structure follows
// engine/consensus/eventdriven/components/pacemaker/flowmc/flowmc.go.
package orchestrator

import (
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/network"
	"github.com/carnot-network/carnot/notifications"
	"github.com/carnot-network/carnot/tally"
	"github.com/carnot-network/carnot/taskmanager"
)

// Persister durably records the two fields of carnot.State that must
// survive a restart. Satisfied by *persister.Persister; an orchestrator
// built without one (nil) skips persistence, which is only acceptable
// in tests.
type Persister interface {
	PutHighestVotedView(view carnot.View) error
	PutLocalHighQC(qc carnot.StandardQC) error
}

// Orchestrator is the effectful shell around a *carnot.Carnot.
type Orchestrator struct {
	carnot    *carnot.Carnot
	adapter   network.Adapter
	mempool   carnot.Mempool
	beacon    carnot.BeaconGenerator
	persister Persister
	notifier  notifications.Consumer
	log       zerolog.Logger

	localTimeout time.Duration
	tasks        *taskmanager.Manager

	// voteTallies gathers this node's child committees' votes per view,
	// toward calling ApproveBlock once they reach super-majority. There
	// is one tally per view, for the first block seen at that view; votes
	// for a different block at the same view are not counted.
	voteTallies map[carnot.View]*voteEntry
	// leaderVoteTallies gathers root-committee votes toward the
	// StandardQC this node, as next leader, needs to propose.
	leaderVoteTallies map[carnot.View]*tally.VoteTally
	// newViewTallies gathers NewViews toward forwarding this node's own
	// NewView upward.
	newViewTallies map[carnot.View]*newViewEntry
	// leaderNewViewTallies gathers root-committee NewViews toward the
	// AggregateQC this node, as next leader, needs to propose.
	leaderNewViewTallies map[carnot.View]*tally.NewViewTally
	// timeoutTallies gathers root-committee Timeouts toward a TimeoutQc.
	timeoutTallies map[carnot.View]*tally.TimeoutTally

	events chan Event
	queue  deque.Deque
	stop   chan struct{}
	done   chan struct{}

	// committedCount is how many entries of carnot's committed-chain
	// were already reported, so dispatch can notify only the newly
	// committed suffix after each event.
	committedCount int
}

type voteEntry struct {
	blockID carnot.BlockId
	tally   *tally.VoteTally
}

type newViewEntry struct {
	tqc   carnot.TimeoutQc
	tally *tally.NewViewTally
}

// New builds an Orchestrator. persister may be nil in tests.
func New(
	c *carnot.Carnot,
	adapter network.Adapter,
	mempool carnot.Mempool,
	beacon carnot.BeaconGenerator,
	persister Persister,
	notifier notifications.Consumer,
	localTimeout time.Duration,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		carnot:               c,
		adapter:              adapter,
		mempool:              mempool,
		beacon:               beacon,
		persister:            persister,
		notifier:             notifier,
		log:                  log,
		localTimeout:         localTimeout,
		tasks:                taskmanager.New(),
		voteTallies:          make(map[carnot.View]*voteEntry),
		leaderVoteTallies:    make(map[carnot.View]*tally.VoteTally),
		newViewTallies:       make(map[carnot.View]*newViewEntry),
		leaderNewViewTallies: make(map[carnot.View]*tally.NewViewTally),
		timeoutTallies:       make(map[carnot.View]*tally.TimeoutTally),
		events:               make(chan Event, 256),
		stop:                 make(chan struct{}),
		done:                 make(chan struct{}),
	}
}

// Start launches the run loop in a goroutine and returns an exit
// function plus a done channel, matching module/hotstuff.go's HotStuff
// lifecycle contract: after exit is called no further inbound envelopes
// are translated into events, but events already queued are drained
// before done is closed.
func (o *Orchestrator) Start() (exit func(), done <-chan struct{}) {
	go o.forwardInbox()
	go o.run()
	return o.requestStop, o.done
}

func (o *Orchestrator) requestStop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

// forwardInbox decodes network.Envelopes into Events and feeds them
// into the run loop, until requestStop fires.
func (o *Orchestrator) forwardInbox() {
	for {
		select {
		case <-o.stop:
			return
		case env, ok := <-o.adapter.Inbox():
			if !ok {
				return
			}
			ev, err := decode(env)
			if err != nil {
				o.log.Warn().Err(err).Msg("dropping undecodable envelope")
				continue
			}
			select {
			case o.events <- ev:
			case <-o.stop:
				return
			}
		}
	}
}

func decode(env network.Envelope) (Event, error) {
	switch env.Kind {
	case network.KindVote:
		v, err := network.DecodeVote(env)
		return EventVote{Vote: v}, err
	case network.KindTimeout:
		t, err := network.DecodeTimeout(env)
		return EventTimeout{Timeout: t}, err
	case network.KindNewView:
		nv, err := network.DecodeNewView(env)
		return EventNewView{NewView: nv}, err
	case network.KindTimeoutQc:
		tqc, err := network.DecodeTimeoutQc(env)
		return EventTimeoutQc{TimeoutQc: tqc}, err
	case network.KindProposal:
		b, err := network.DecodeProposal(env)
		return EventProposal{Block: b}, err
	default:
		return nil, errUnknownKind(env.Kind)
	}
}

type errUnknownKind network.Kind

func (e errUnknownKind) Error() string { return "unknown envelope kind" }

// run is the single goroutine that ever touches o.carnot, satisfying
// the "never accessed concurrently" contract documented on
// carnot.Carnot.
func (o *Orchestrator) run() {
	defer close(o.done)
	defer o.tasks.CancelAll()

	o.bootstrap()
	for {
		select {
		case ev, ok := <-o.events:
			if ok {
				o.queue.PushBack(ev)
			} else {
				o.events = nil
			}
		case <-o.localTimeoutFired():
		case <-o.stop:
			if o.queue.Len() == 0 {
				return
			}
		}
		for o.queue.Len() > 0 {
			ev := o.queue.PopFront().(Event)
			o.dispatch(ev)
		}
		if o.events == nil {
			return
		}
	}
}

// localTimeoutFired is a placeholder select arm kept nil in practice:
// the local-timeout task feeds EventLocalTimeout through o.events like
// every other source, so this always blocks. It exists purely to
// document, at the call site, that the select loop's timeout path is
// driven through taskmanager rather than a bespoke timer case.
func (o *Orchestrator) localTimeoutFired() <-chan struct{} { return nil }

// selfEnqueue pushes ev directly onto the run loop's queue, used when
// completing a tally produces a follow-up event (e.g. ProposeBlock)
// within the same dispatch, safe because queue is only ever touched
// from this single goroutine.
func (o *Orchestrator) selfEnqueue(ev Event) {
	o.queue.PushBack(ev)
}

func (o *Orchestrator) bootstrap() {
	o.scheduleLocalTimeout(o.carnot.CurrentView())

	genesisView := o.carnot.GenesisBlock().ViewNumber
	if len(o.carnot.ChildCommittees()) != 0 {
		o.voteTallies[genesisView] = &voteEntry{
			blockID: o.carnot.GenesisBlock().ID,
			tally:   tally.NewVoteTally(genesisView, o.carnot.GenesisBlock().ID, o.carnot.SuperMajorityThreshold()),
		}
	}
	if o.carnot.IsNextLeader() {
		o.leaderVoteTallies[genesisView] = tally.NewVoteTally(genesisView, o.carnot.GenesisBlock().ID, o.carnot.LeaderSuperMajorityThreshold())
	}
}

// scheduleLocalTimeout (re)starts the per-view timer task that fires
// EventLocalTimeout after localTimeout elapses, unless the view has
// already moved on by then.
func (o *Orchestrator) scheduleLocalTimeout(view carnot.View) {
	taskmanager.Push(o.tasks, view, func(stop <-chan struct{}) {
		select {
		case <-time.After(o.localTimeout):
			select {
			case o.events <- EventLocalTimeout{View: view}:
			case <-stop:
			}
		case <-stop:
		}
	})
}

// dispatch applies a single Event to carnot, persists the
// restart-sensitive state it may have changed, reacts to a view change
// if one occurred, and dispatches any resulting Output.
func (o *Orchestrator) dispatch(ev Event) {
	prevView := o.carnot.CurrentView()

	output, err := o.apply(ev)
	if err != nil {
		o.log.Debug().Err(err).Msg("event rejected")
	}

	o.persist()
	o.noteCommits()

	if current := o.carnot.CurrentView(); current != prevView {
		o.onViewChange(prevView, current)
	}
	if output != nil {
		o.handleOutput(output)
	}
}

// noteCommits reports any newly committed blocks since the last
// dispatch. receiveBlock folds the two-chain commit rule in as part of
// block-tree insertion rather than surfacing it as an Output (commits
// are a consequence of state, not a message to send), so the
// orchestrator diffs carnot's committed-chain length here instead.
func (o *Orchestrator) noteCommits() {
	committed := o.carnot.LatestCommittedBlocks()
	if len(committed) <= o.committedCount {
		return
	}
	newly := committed[o.committedCount:]
	o.committedCount = len(committed)
	o.notifier.OnBlocksCommitted(newly)
}

func (o *Orchestrator) persist() {
	if o.persister == nil {
		return
	}
	if err := o.persister.PutHighestVotedView(o.carnot.HighestVotedView()); err != nil {
		o.log.Error().Err(err).Msg("could not persist highest voted view")
	}
	if err := o.persister.PutLocalHighQC(o.carnot.HighQC()); err != nil {
		o.log.Error().Err(err).Msg("could not persist local high qc")
	}
}

func (o *Orchestrator) apply(ev Event) (carnot.Output, error) {
	switch e := ev.(type) {
	case EventProposal:
		return o.processProposal(e.Block)
	case EventVote:
		return o.processVote(e.Vote)
	case EventTimeout:
		return o.processTimeout(e.Timeout)
	case EventNewView:
		return o.processNewView(e.NewView)
	case EventTimeoutQc:
		return o.processTimeoutQc(e.TimeoutQc)
	case EventLocalTimeout:
		return o.processLocalTimeout(e.View)
	case EventProposeBlock:
		return o.carnot.ProposeBlock(e.Qc, o.mempool, o.beacon)
	default:
		return nil, nil
	}
}

func (o *Orchestrator) processProposal(block carnot.FullBlock) (carnot.Output, error) {
	o.notifier.OnBlockReceived(block.Header)
	out, err := o.carnot.ReceiveBlock(block.Header)
	if err != nil {
		o.notifier.OnBlockRejected(block.Header.ID, err)
		return nil, err
	}

	// Leaf-vote production (out != nil) and leader-side tally seeding are
	// not mutually exclusive: under a flat or root-committee overlay a
	// single node is both a leaf and the next leader at once, so both
	// must run regardless of which branch the other takes.
	view := block.Header.ViewNumber
	if out == nil && len(o.carnot.ChildCommittees()) != 0 {
		if _, exists := o.voteTallies[view]; !exists {
			participants := carnot.Union(o.carnot.ChildCommittees()...)
			o.voteTallies[view] = &voteEntry{
				blockID: block.Header.ID,
				tally:   tally.NewVoteTally(view, block.Header.ID, superMajorityOf(participants, o.carnot)),
			}
		}
	}
	if o.carnot.IsNextLeader() {
		if _, exists := o.leaderVoteTallies[view]; !exists {
			o.leaderVoteTallies[view] = tally.NewVoteTally(view, block.Header.ID, o.carnot.LeaderSuperMajorityThreshold())
		}
	}

	if out != nil {
		o.noteVoteSent(out)
	}
	return out, nil
}

// superMajorityOf recomputes the threshold via the overlay rather than
// trusting a value captured before the block arrived, since an overlay
// may in principle reshuffle committees on receipt of a block.
func superMajorityOf(_ carnot.Committee, c *carnot.Carnot) int {
	return c.SuperMajorityThreshold()
}

func (o *Orchestrator) noteVoteSent(out carnot.Output) {
	if send, ok := out.(carnot.Send); ok {
		if vp, ok := send.Payload.(carnot.VotePayload); ok {
			o.notifier.OnVoteSent(vp.Vote)
		}
	}
}

func (o *Orchestrator) processVote(vote carnot.Vote) (carnot.Output, error) {
	if entry, ok := o.voteTallies[vote.ViewNumber]; ok {
		participants := carnot.Union(o.carnot.ChildCommittees()...)
		if entry.tally.Add(vote, participants) {
			delete(o.voteTallies, vote.ViewNumber)
			block, found := o.carnot.SafeBlocks()[entry.blockID]
			if found {
				out, err := o.carnot.ApproveBlock(block)
				if err == nil {
					o.noteVoteSent(out)
					return out, nil
				}
			}
		}
	}
	if t, ok := o.leaderVoteTallies[vote.ViewNumber]; ok {
		participants := o.carnot.RootCommittee()
		if t.Add(vote, participants) {
			delete(o.leaderVoteTallies, vote.ViewNumber)
			qc, ok := t.QC()
			if ok {
				o.selfEnqueue(EventProposeBlock{Qc: qc})
			}
		}
	}
	return nil, nil
}

func (o *Orchestrator) processTimeout(timeout carnot.Timeout) (carnot.Output, error) {
	if !o.carnot.IsMemberOfRootCommittee() {
		return nil, nil
	}
	t, ok := o.timeoutTallies[timeout.ViewNumber]
	if !ok {
		t = tally.NewTimeoutTally(timeout.ViewNumber, o.carnot.LeaderSuperMajorityThreshold())
		o.timeoutTallies[timeout.ViewNumber] = t
	}
	if !t.Add(timeout, o.carnot.RootCommittee()) {
		return nil, nil
	}
	delete(o.timeoutTallies, timeout.ViewNumber)
	timeouts, ok := t.Timeouts()
	if !ok {
		return nil, nil
	}
	out, err := o.carnot.ProcessRootTimeout(timeouts)
	if out != nil {
		if btq, ok := out.(carnot.BroadcastTimeoutQc); ok {
			o.notifier.OnTimeoutQcFormed(btq.TimeoutQC)
		}
	}
	return out, err
}

func (o *Orchestrator) processNewView(nv carnot.NewView) (carnot.Output, error) {
	view := nv.ViewNumber
	if entry, ok := o.newViewTallies[view]; ok {
		participants := carnot.Union(o.carnot.ChildCommittees()...)
		if entry.tally.Add(nv, participants) {
			delete(o.newViewTallies, view)
			out, err := o.carnot.ApproveNewView(entry.tqc)
			if err == nil {
				return out, nil
			}
		}
	}
	if t, ok := o.leaderNewViewTallies[view]; ok {
		if t.Add(nv, o.carnot.RootCommittee()) {
			delete(o.leaderNewViewTallies, view)
			agg, ok := t.AggregateQC()
			if ok {
				o.selfEnqueue(EventProposeBlock{Qc: agg})
			}
		}
	}
	return nil, nil
}

func (o *Orchestrator) processTimeoutQc(tqc carnot.TimeoutQc) (carnot.Output, error) {
	o.notifier.OnTimeoutQcReceived(tqc)
	o.carnot.ReceiveTimeoutQc(tqc)

	nextView := tqc.ViewNumber.Next()

	// As in processProposal: forwarding this node's own NewView (when
	// it's a leaf) and seeding the leader-side tally (when it's the next
	// leader) are independent concerns that both apply under a flat or
	// root-committee overlay, where a node can be both at once.
	if len(o.carnot.ChildCommittees()) != 0 {
		if _, exists := o.newViewTallies[nextView]; !exists {
			o.newViewTallies[nextView] = &newViewEntry{
				tqc:   tqc,
				tally: tally.NewNewViewTally(nextView, o.carnot.SuperMajorityThreshold()),
			}
		}
	}
	if o.carnot.IsMemberOfRootCommittee() && o.carnot.IsLeaderFor(nextView) {
		if _, exists := o.leaderNewViewTallies[nextView]; !exists {
			o.leaderNewViewTallies[nextView] = tally.NewNewViewTally(nextView, o.carnot.LeaderSuperMajorityThreshold())
		}
	}

	if len(o.carnot.ChildCommittees()) == 0 {
		out, ok := o.carnot.MaybeSendNewView(tqc)
		if ok {
			return out, nil
		}
	}
	return nil, nil
}

func (o *Orchestrator) processLocalTimeout(view carnot.View) (carnot.Output, error) {
	out, err := o.carnot.LocalTimeout()
	o.notifier.OnLocalTimeout(view)
	// keep retrying until the view resolves, matching the original's
	// "keep timeout until the situation is resolved" comment.
	o.scheduleLocalTimeout(o.carnot.CurrentView())
	return out, err
}

func (o *Orchestrator) onViewChange(prev, current carnot.View) {
	o.tasks.CancelUpTo(prev)
	// the local-timeout timer is re-armed on every view advance, not
	// just the first one: process_view_change re-pushes the local
	// timeout event unconditionally on every call.
	o.scheduleLocalTimeout(current)
	o.notifier.OnEnteringView(current)
}

func (o *Orchestrator) handleOutput(output carnot.Output) {
	switch out := output.(type) {
	case carnot.Send:
		env, err := network.EnvelopeFor(out.Payload)
		if err != nil {
			o.log.Error().Err(err).Msg("could not encode send payload")
			return
		}
		if err := o.adapter.Unicast(out.To, env); err != nil {
			o.log.Error().Err(err).Msg("could not unicast output")
		}
	case carnot.BroadcastTimeoutQc:
		env, err := network.Encode(network.KindTimeoutQc, out.TimeoutQC)
		if err != nil {
			o.log.Error().Err(err).Msg("could not encode timeout qc")
			return
		}
		if err := o.adapter.Broadcast(env); err != nil {
			o.log.Error().Err(err).Msg("could not broadcast timeout qc")
		}
	case carnot.BroadcastProposal:
		env, err := network.EncodeProposal(out.Block)
		if err != nil {
			o.log.Error().Err(err).Msg("could not encode proposal")
			return
		}
		if err := o.adapter.Broadcast(env); err != nil {
			o.log.Error().Err(err).Msg("could not broadcast proposal")
		}
		o.notifier.OnProposalBroadcast(out.Block.Header.ViewNumber)
	}
}
