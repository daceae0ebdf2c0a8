package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
)

func TestEd25519RoundTripsVoteSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var voter carnot.NodeId
	voter[0] = 0x42
	vote := carnot.Vote{ViewNumber: 9, BlockID: carnot.BlockId{0x01}, Voter: voter}

	signer := NewEd25519Signer(priv)
	sig, err := signer.SignVote(vote)
	require.NoError(t, err)

	verifier := NewEd25519Verifier(map[carnot.NodeId]ed25519.PublicKey{voter: pub})
	assert.NoError(t, verifier.VerifyVote(vote, sig))

	tampered := vote
	tampered.ViewNumber = 10
	assert.ErrorIs(t, verifier.VerifyVote(tampered, sig), ErrInvalidSignature)
}

func TestEd25519VerifyUnknownSigner(t *testing.T) {
	verifier := NewEd25519Verifier(map[carnot.NodeId]ed25519.PublicKey{})
	err := verifier.VerifyVote(carnot.Vote{}, []byte{})
	assert.ErrorIs(t, err, ErrUnknownSigner)
}
