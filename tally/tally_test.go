package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carnot-network/carnot/carnot"
)

func id(n byte) carnot.NodeId {
	var i carnot.NodeId
	i[31] = n
	return i
}

func TestVoteTallyReachesThreshold(t *testing.T) {
	participants := carnot.NewCommittee(id(1), id(2), id(3))
	vt := NewVoteTally(carnot.View(5), carnot.BlockId{0xAA}, 2)

	assert.False(t, vt.Add(carnot.Vote{ViewNumber: 5, BlockID: carnot.BlockId{0xAA}, Voter: id(1)}, participants))
	_, ok := vt.QC()
	assert.False(t, ok)

	assert.True(t, vt.Add(carnot.Vote{ViewNumber: 5, BlockID: carnot.BlockId{0xAA}, Voter: id(2)}, participants))
	qc, ok := vt.QC()
	assert.True(t, ok)
	assert.Equal(t, carnot.View(5), qc.ViewNumber)
}

func TestVoteTallyIgnoresDuplicateVoter(t *testing.T) {
	participants := carnot.NewCommittee(id(1), id(2), id(3))
	vt := NewVoteTally(carnot.View(1), carnot.BlockId{0x01}, 2)
	vote := carnot.Vote{ViewNumber: 1, BlockID: carnot.BlockId{0x01}, Voter: id(1)}

	vt.Add(vote, participants)
	vt.Add(vote, participants) // redelivered, must not double count
	_, ok := vt.QC()
	assert.False(t, ok, "threshold 2 must not be satisfied by one voter voting twice")
}

func TestVoteTallyIgnoresNonParticipant(t *testing.T) {
	participants := carnot.NewCommittee(id(1), id(2))
	vt := NewVoteTally(carnot.View(1), carnot.BlockId{0x01}, 1)
	vt.Add(carnot.Vote{ViewNumber: 1, BlockID: carnot.BlockId{0x01}, Voter: id(9)}, participants)
	_, ok := vt.QC()
	assert.False(t, ok)
}

func TestVoteTallyAddReturnsTrueOnlyOnFirstCrossing(t *testing.T) {
	participants := carnot.NewCommittee(id(1), id(2), id(3))
	vt := NewVoteTally(carnot.View(5), carnot.BlockId{0xAA}, 2)

	assert.False(t, vt.Add(carnot.Vote{ViewNumber: 5, BlockID: carnot.BlockId{0xAA}, Voter: id(1)}, participants))
	assert.True(t, vt.Add(carnot.Vote{ViewNumber: 5, BlockID: carnot.BlockId{0xAA}, Voter: id(2)}, participants))
	assert.False(t, vt.Add(carnot.Vote{ViewNumber: 5, BlockID: carnot.BlockId{0xAA}, Voter: id(3)}, participants),
		"threshold already crossed by the previous call; a later vote must not re-signal")
}

func TestTimeoutTallyReachesThreshold(t *testing.T) {
	participants := carnot.NewCommittee(id(1), id(2), id(3))
	tt := NewTimeoutTally(carnot.View(7), 2)
	tt.Add(carnot.Timeout{ViewNumber: 7, Sender: id(1)}, participants)
	done := tt.Add(carnot.Timeout{ViewNumber: 7, Sender: id(2)}, participants)
	assert.True(t, done)
	timeouts, ok := tt.Timeouts()
	assert.True(t, ok)
	assert.Len(t, timeouts, 2)
}

func TestNewViewTallyPicksHighestHighQC(t *testing.T) {
	participants := carnot.NewCommittee(id(1), id(2))
	nvt := NewNewViewTally(carnot.View(3), 2)
	nvt.Add(carnot.NewView{ViewNumber: 3, Sender: id(1), HighQC: carnot.StandardQC{ViewNumber: 1}}, participants)
	nvt.Add(carnot.NewView{ViewNumber: 3, Sender: id(2), HighQC: carnot.StandardQC{ViewNumber: 2}}, participants)

	agg, ok := nvt.AggregateQC()
	assert.True(t, ok)
	assert.Equal(t, carnot.View(2), agg.HighQC.ViewNumber)
	assert.Equal(t, carnot.View(3), agg.ViewNumber)
}
