package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
)

func TestPoolDrainsOnTransactionsSince(t *testing.T) {
	p := New(0)
	require.NoError(t, p.Submit(carnot.Tx("a")))
	require.NoError(t, p.Submit(carnot.Tx("b")))
	assert.Equal(t, 2, p.Len())

	txs, err := p.TransactionsSince(carnot.BlockId{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, 0, p.Len())
}

func TestPoolRejectsOverCapacity(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Submit(carnot.Tx("a")))
	assert.ErrorIs(t, p.Submit(carnot.Tx("b")), ErrPoolFull)
}

func TestHappyBeaconIsDeterministicPerView(t *testing.T) {
	b := NewHappyBeacon([]byte("seed"))
	first := b.GenerateHappy(carnot.View(1))
	second := b.GenerateHappy(carnot.View(1))
	assert.Equal(t, first, second)

	third := b.GenerateHappy(carnot.View(2))
	assert.NotEqual(t, first, third)
}
