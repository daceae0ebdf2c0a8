// Package notifications defines the Consumer interface the
// orchestrator notifies on every state-machine transition, and a
// pubsub Distributor that fans a single stream of events out to many
// consumers (metrics, logging, telemetry). Modeled on
// consensus/hotstuff/notifications' NoopConsumer-plus-Distributor split
// referenced throughout the teacher's module/metrics/consensus package.
package notifications

import "github.com/carnot-network/carnot/carnot"

// Consumer is notified of every interesting carnot event. Implementors
// typically embed NoopConsumer and override only the events they care
// about.
type Consumer interface {
	OnEnteringView(view carnot.View)
	OnBlockReceived(block carnot.Block)
	OnBlockRejected(block carnot.BlockId, err error)
	OnVoteSent(vote carnot.Vote)
	OnBlocksCommitted(ids []carnot.BlockId)
	OnLocalTimeout(view carnot.View)
	OnTimeoutQcFormed(tqc carnot.TimeoutQc)
	OnTimeoutQcReceived(tqc carnot.TimeoutQc)
	OnProposalBroadcast(view carnot.View)
	OnDoubleVoteDetected(first, second carnot.Vote)
}

// NoopConsumer implements Consumer with a no-op for every event, so
// concrete consumers only need to override the handlers they use.
type NoopConsumer struct{}

func (NoopConsumer) OnEnteringView(carnot.View)            {}
func (NoopConsumer) OnBlockReceived(carnot.Block)          {}
func (NoopConsumer) OnBlockRejected(carnot.BlockId, error) {}
func (NoopConsumer) OnVoteSent(carnot.Vote)                {}
func (NoopConsumer) OnBlocksCommitted([]carnot.BlockId)    {}
func (NoopConsumer) OnLocalTimeout(carnot.View)            {}
func (NoopConsumer) OnTimeoutQcFormed(carnot.TimeoutQc)    {}
func (NoopConsumer) OnTimeoutQcReceived(carnot.TimeoutQc)  {}
func (NoopConsumer) OnProposalBroadcast(carnot.View)       {}
func (NoopConsumer) OnDoubleVoteDetected(_, _ carnot.Vote) {}

// Distributor fans every event out to a fixed set of registered
// consumers, so the orchestrator can be built once against a single
// Consumer while the caller wires in as many concrete consumers
// (metrics, logging) as it likes.
type Distributor struct {
	consumers []Consumer
}

// NewDistributor builds a Distributor over consumers.
func NewDistributor(consumers ...Consumer) *Distributor {
	return &Distributor{consumers: consumers}
}

func (d *Distributor) OnEnteringView(view carnot.View) {
	for _, c := range d.consumers {
		c.OnEnteringView(view)
	}
}

func (d *Distributor) OnBlockReceived(block carnot.Block) {
	for _, c := range d.consumers {
		c.OnBlockReceived(block)
	}
}

func (d *Distributor) OnBlockRejected(id carnot.BlockId, err error) {
	for _, c := range d.consumers {
		c.OnBlockRejected(id, err)
	}
}

func (d *Distributor) OnVoteSent(vote carnot.Vote) {
	for _, c := range d.consumers {
		c.OnVoteSent(vote)
	}
}

func (d *Distributor) OnBlocksCommitted(ids []carnot.BlockId) {
	for _, c := range d.consumers {
		c.OnBlocksCommitted(ids)
	}
}

func (d *Distributor) OnLocalTimeout(view carnot.View) {
	for _, c := range d.consumers {
		c.OnLocalTimeout(view)
	}
}

func (d *Distributor) OnTimeoutQcFormed(tqc carnot.TimeoutQc) {
	for _, c := range d.consumers {
		c.OnTimeoutQcFormed(tqc)
	}
}

func (d *Distributor) OnTimeoutQcReceived(tqc carnot.TimeoutQc) {
	for _, c := range d.consumers {
		c.OnTimeoutQcReceived(tqc)
	}
}

func (d *Distributor) OnProposalBroadcast(view carnot.View) {
	for _, c := range d.consumers {
		c.OnProposalBroadcast(view)
	}
}

func (d *Distributor) OnDoubleVoteDetected(first, second carnot.Vote) {
	for _, c := range d.consumers {
		c.OnDoubleVoteDetected(first, second)
	}
}
