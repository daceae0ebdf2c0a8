package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/mempool"
	"github.com/carnot-network/carnot/network"
	"github.com/carnot-network/carnot/network/stub"
	"github.com/carnot-network/carnot/notifications"
	"github.com/carnot-network/carnot/overlay"
)

func orchNodeID(tag byte) carnot.NodeId {
	var id carnot.NodeId
	id[0] = tag
	return id
}

// commitRecorder is a notifications.Consumer that only records commits,
// so the test can observe the two-chain rule firing across a real,
// running set of orchestrators without reaching into carnot internals.
type commitRecorder struct {
	notifications.NoopConsumer
	mu        sync.Mutex
	committed []carnot.BlockId
}

func (r *commitRecorder) OnBlocksCommitted(ids []carnot.BlockId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, ids...)
}

func (r *commitRecorder) snapshot() []carnot.BlockId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]carnot.BlockId(nil), r.committed...)
}

// TestHappyPathCommitsAcrossThreeFlatNodes runs three orchestrators
// wired together over an in-memory network/stub Hub, all sharing one
// FlatOverlay committee (spec.md's S1/S2 small-cluster shape), and
// drives the first proposal in by hand: bootstrap only seeds a
// leader-side tally for genesis, and no node votes for genesis, so
// without this kick the first proposal would come only through the
// timeout path. It exercises the full round trip — proposal
// broadcast, leaf votes routed to the next leader, QC formation,
// chained proposals, and the two-chain commit rule surfaced through
// OnBlocksCommitted — with no component mocked out.
func TestHappyPathCommitsAcrossThreeFlatNodes(t *testing.T) {
	ids := []carnot.NodeId{orchNodeID(1), orchNodeID(2), orchNodeID(3)}
	members := carnot.NewCommittee(ids...)

	hub := stub.NewHub()
	recorders := make(map[carnot.NodeId]*commitRecorder, 3)
	orchestrators := make(map[carnot.NodeId]*Orchestrator, 3)
	var dones []<-chan struct{}
	var exits []func()

	for _, id := range ids {
		net := stub.NewNetwork(hub, id)
		pool := mempool.New(0)
		require.NoError(t, pool.Submit(carnot.Tx("hello")))
		beacon := mempool.NewHappyBeacon([]byte("seed"))
		rec := &commitRecorder{}
		recorders[id] = rec

		node := carnot.FromGenesis(id, overlay.NewFlat(id, members))
		o := New(node, net, pool, beacon, nil, rec, time.Minute, zerolog.Nop())
		orchestrators[id] = o

		exit, done := o.Start()
		exits = append(exits, exit)
		dones = append(dones, done)
	}
	defer func() {
		for _, exit := range exits {
			exit()
		}
		for _, done := range dones {
			<-done
		}
	}()

	flat := overlay.NewFlat(ids[0], members)
	leaderView1 := flat.Leader(1)

	// Kick off the happy path by hand: have view 1's leader propose the
	// first block on top of genesis.
	orchestrators[leaderView1].events <- EventProposeBlock{Qc: carnot.GenesisQC()}

	anyNode := recorders[ids[0]]
	require.Eventually(t, func() bool {
		return len(anyNode.snapshot()) >= 2
	}, 5*time.Second, 10*time.Millisecond, "expected genesis then the first block to commit")

	committed := anyNode.snapshot()
	assert.Equal(t, carnot.ZeroBlock, committed[0])
	assert.NotEqual(t, carnot.ZeroBlock, committed[1])
}

// TestTimeoutQcPropagatesToAllNodesUnderFlatOverlay exercises the
// timeout-recovery path: a TimeoutQc delivered to every node must
// advance current_view on all of them, independent of the happy path.
func TestTimeoutQcPropagatesToAllNodesUnderFlatOverlay(t *testing.T) {
	ids := []carnot.NodeId{orchNodeID(1), orchNodeID(2), orchNodeID(3)}
	members := carnot.NewCommittee(ids...)
	hub := stub.NewHub()

	orchestrators := make(map[carnot.NodeId]*Orchestrator, 3)
	var dones []<-chan struct{}
	var exits []func()

	for _, id := range ids {
		net := stub.NewNetwork(hub, id)
		pool := mempool.New(0)
		beacon := mempool.NewHappyBeacon([]byte("seed"))
		node := carnot.FromGenesis(id, overlay.NewFlat(id, members))
		o := New(node, net, pool, beacon, nil, notifications.NoopConsumer{}, time.Minute, zerolog.Nop())
		orchestrators[id] = o
		exit, done := o.Start()
		exits = append(exits, exit)
		dones = append(dones, done)
	}
	defer func() {
		for _, exit := range exits {
			exit()
		}
		for _, done := range dones {
			<-done
		}
	}()

	tqc := carnot.TimeoutQc{
		ViewNumber: 9,
		HighQC:     carnot.StandardQC{ViewNumber: 3, BlockID: carnot.BlockId{0x03}},
		Sender:     ids[0],
	}
	env, err := network.Encode(network.KindTimeoutQc, tqc)
	require.NoError(t, err)
	require.NoError(t, orchestrators[ids[0]].adapter.Broadcast(env))

	for _, id := range ids {
		id := id
		require.Eventually(t, func() bool {
			return orchestrators[id].carnot.CurrentView() == carnot.View(10)
		}, 5*time.Second, 10*time.Millisecond, "every node should advance past the TimeoutQc's view")
	}
}
