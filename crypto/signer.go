// Package crypto provides the Signer/Verifier pair spec.md §1 names as
// an out-of-core external collaborator (the production deployment is
// expected to use a BLS-based threshold scheme so signature
// aggregation stays constant-size; this package gives a real,
// ed25519-backed reference implementation for tests and
// single-signature deployments). Interface shape follows
// engine/consensus/hotstuff/signer.go's Signer.
package crypto

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/carnot-network/carnot/carnot"
)

// Signer produces signatures over a node's Votes, Timeouts and NewViews
// before they are dispatched onto the network.
type Signer interface {
	SignVote(carnot.Vote) ([]byte, error)
	SignTimeout(carnot.Timeout) ([]byte, error)
	SignNewView(carnot.NewView) ([]byte, error)
}

// Verifier checks a signature against the claimed signer's known public
// key, looked up by carnot.NodeId.
type Verifier interface {
	VerifyVote(vote carnot.Vote, sig []byte) error
	VerifyTimeout(timeout carnot.Timeout, sig []byte) error
	VerifyNewView(nv carnot.NewView, sig []byte) error
}

// Ed25519Signer signs with a single node's ed25519 private key and
// satisfies Signer; signatures it produces are checked by
// Ed25519Verifier given the corresponding public key. This is the
// package's single-signer reference implementation rather than a
// threshold scheme.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer wraps priv for use as a Signer.
func NewEd25519Signer(priv ed25519.PrivateKey) Ed25519Signer {
	return Ed25519Signer{priv: priv}
}

func (s Ed25519Signer) SignVote(vote carnot.Vote) ([]byte, error) {
	return ed25519.Sign(s.priv, voteBytes(vote)), nil
}

func (s Ed25519Signer) SignTimeout(timeout carnot.Timeout) ([]byte, error) {
	return ed25519.Sign(s.priv, timeoutBytes(timeout)), nil
}

func (s Ed25519Signer) SignNewView(nv carnot.NewView) ([]byte, error) {
	return ed25519.Sign(s.priv, newViewBytes(nv)), nil
}

// Ed25519Verifier verifies signatures against a fixed set of known
// per-node public keys.
type Ed25519Verifier struct {
	keys map[carnot.NodeId]ed25519.PublicKey
}

// NewEd25519Verifier builds a verifier over the given node-to-key map.
func NewEd25519Verifier(keys map[carnot.NodeId]ed25519.PublicKey) Ed25519Verifier {
	return Ed25519Verifier{keys: keys}
}

var ErrUnknownSigner = errors.New("crypto: no known public key for signer")
var ErrInvalidSignature = errors.New("crypto: signature verification failed")

func (v Ed25519Verifier) VerifyVote(vote carnot.Vote, sig []byte) error {
	return v.verify(vote.Voter, voteBytes(vote), sig)
}

func (v Ed25519Verifier) VerifyTimeout(timeout carnot.Timeout, sig []byte) error {
	return v.verify(timeout.Sender, timeoutBytes(timeout), sig)
}

func (v Ed25519Verifier) VerifyNewView(nv carnot.NewView, sig []byte) error {
	return v.verify(nv.Sender, newViewBytes(nv), sig)
}

func (v Ed25519Verifier) verify(signer carnot.NodeId, msg, sig []byte) error {
	key, ok := v.keys[signer]
	if !ok {
		return errors.Wrapf(ErrUnknownSigner, "node %s", signer)
	}
	if !ed25519.Verify(key, msg, sig) {
		return errors.Wrapf(ErrInvalidSignature, "node %s", signer)
	}
	return nil
}

func voteBytes(v carnot.Vote) []byte {
	b := make([]byte, 0, 8+32+32)
	b = appendView(b, v.ViewNumber)
	b = append(b, v.BlockID[:]...)
	b = append(b, v.Voter[:]...)
	return b
}

func timeoutBytes(t carnot.Timeout) []byte {
	b := make([]byte, 0, 8+8+32+32)
	b = appendView(b, t.ViewNumber)
	b = appendView(b, t.HighQC.ViewNumber)
	b = append(b, t.HighQC.BlockID[:]...)
	b = append(b, t.Sender[:]...)
	return b
}

func newViewBytes(nv carnot.NewView) []byte {
	b := make([]byte, 0, 8+8+8+32+32+32)
	b = appendView(b, nv.ViewNumber)
	b = appendView(b, nv.TimeoutQC.ViewNumber)
	b = appendView(b, nv.HighQC.ViewNumber)
	b = append(b, nv.HighQC.BlockID[:]...)
	b = append(b, nv.Sender[:]...)
	return b
}

func appendView(b []byte, v carnot.View) []byte {
	u := uint64(v)
	return append(b, byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
