// Package metrics implements a notifications.Consumer backed by
// Prometheus, following module/metrics/verification.go's
// package-level-promauto-vars-plus-Collector-receiver layout.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/notifications"
)

var (
	currentView = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "carnot",
		Name:      "current_view",
		Help:      "The view this node is currently in",
	})
	blocksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "blocks_received_total",
		Help:      "The total number of proposals received",
	})
	blocksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "blocks_rejected_total",
		Help:      "The total number of proposals rejected by the safety rule",
	})
	votesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "votes_sent_total",
		Help:      "The total number of votes this node has cast",
	})
	blocksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "blocks_committed_total",
		Help:      "The total number of blocks committed by the two-chain rule",
	})
	localTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "local_timeouts_total",
		Help:      "The total number of local view timeouts fired",
	})
	timeoutQcsFormed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "timeout_qcs_formed_total",
		Help:      "The total number of TimeoutQcs this node has formed as root committee member",
	})
	timeoutQcsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "timeout_qcs_received_total",
		Help:      "The total number of TimeoutQcs received from the network",
	})
	proposalsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "proposals_broadcast_total",
		Help:      "The total number of proposals this node has broadcast as leader",
	})
	doubleVotesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carnot",
		Name:      "double_votes_detected_total",
		Help:      "The total number of equivocating double votes detected",
	})
)

// Collector is a notifications.Consumer that reports every event to
// Prometheus. It embeds notifications.NoopConsumer so new Consumer
// methods default to a no-op here until given a metric.
type Collector struct {
	notifications.NoopConsumer
}

// NewCollector builds a Collector. The underlying Prometheus
// collectors are process-global (registered once via promauto at
// package init), so constructing more than one Collector in the same
// process reports to the same metrics.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) OnEnteringView(view carnot.View) {
	currentView.Set(float64(view))
}

func (c *Collector) OnBlockReceived(carnot.Block) {
	blocksReceived.Inc()
}

func (c *Collector) OnBlockRejected(carnot.BlockId, error) {
	blocksRejected.Inc()
}

func (c *Collector) OnVoteSent(carnot.Vote) {
	votesSent.Inc()
}

func (c *Collector) OnBlocksCommitted(ids []carnot.BlockId) {
	blocksCommitted.Add(float64(len(ids)))
}

func (c *Collector) OnLocalTimeout(carnot.View) {
	localTimeouts.Inc()
}

func (c *Collector) OnTimeoutQcFormed(carnot.TimeoutQc) {
	timeoutQcsFormed.Inc()
}

func (c *Collector) OnTimeoutQcReceived(carnot.TimeoutQc) {
	timeoutQcsReceived.Inc()
}

func (c *Collector) OnProposalBroadcast(carnot.View) {
	proposalsBroadcast.Inc()
}

func (c *Collector) OnDoubleVoteDetected(_, _ carnot.Vote) {
	doubleVotesDetected.Inc()
}
