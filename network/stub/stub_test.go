package stub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/network"
)

func TestUnicastReachesOnlyTargetedCommittee(t *testing.T) {
	hub := NewHub()
	var a, b, c carnot.NodeId
	a[0], b[0], c[0] = 1, 2, 3
	na := NewNetwork(hub, a)
	nb := NewNetwork(hub, b)
	nc := NewNetwork(hub, c)

	env, err := network.Encode(network.KindVote, carnot.Vote{ViewNumber: 1})
	require.NoError(t, err)
	require.NoError(t, na.Unicast(carnot.NewCommittee(b), env))

	select {
	case got := <-nb.Inbox():
		assert.Equal(t, env, got)
	case <-time.After(time.Second):
		t.Fatal("b did not receive the unicast")
	}

	select {
	case <-nc.Inbox():
		t.Fatal("c should not have received a unicast addressed only to b")
	default:
	}
}

func TestBroadcastReachesEveryPluggedNode(t *testing.T) {
	hub := NewHub()
	var a, b carnot.NodeId
	a[0], b[0] = 1, 2
	na := NewNetwork(hub, a)
	nb := NewNetwork(hub, b)

	env, err := network.Encode(network.KindTimeoutQc, carnot.TimeoutQc{ViewNumber: 3})
	require.NoError(t, err)
	require.NoError(t, na.Broadcast(env))

	select {
	case got := <-na.Inbox():
		assert.Equal(t, env, got)
	case <-time.After(time.Second):
		t.Fatal("sender should also receive its own broadcast, matching gossipsub's own-subscription delivery")
	}
	select {
	case got := <-nb.Inbox():
		assert.Equal(t, env, got)
	case <-time.After(time.Second):
		t.Fatal("b did not receive the broadcast")
	}
}
