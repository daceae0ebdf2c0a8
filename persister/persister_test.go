package persister

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
)

func TestPersisterRoundTripsHighestVotedView(t *testing.T) {
	p, err := Open(t.TempDir())
	require.NoError(t, err)
	defer p.Close()

	view, err := p.GetHighestVotedView()
	require.NoError(t, err)
	assert.Equal(t, carnot.NoView, view)

	require.NoError(t, p.PutHighestVotedView(carnot.View(42)))
	view, err = p.GetHighestVotedView()
	require.NoError(t, err)
	assert.Equal(t, carnot.View(42), view)
}

func TestPersisterRoundTripsLocalHighQC(t *testing.T) {
	p, err := Open(t.TempDir())
	require.NoError(t, err)
	defer p.Close()

	qc, err := p.GetLocalHighQC()
	require.NoError(t, err)
	assert.Equal(t, carnot.GenesisQC(), qc)

	want := carnot.StandardQC{ViewNumber: 7, BlockID: carnot.BlockId{0xAB}}
	require.NoError(t, p.PutLocalHighQC(want))
	qc, err = p.GetLocalHighQC()
	require.NoError(t, err)
	assert.Equal(t, want, qc)
}
