// Package network defines the wire envelope carnot messages travel in
// and the Adapter contract the orchestrator dispatches carnot.Output
// values through, plus two concrete adapters: an in-memory stub for
// tests (network/stub) and a libp2p-backed adapter for real
// deployments. Message framing follows network/gossip/libp2p/conduit.go's
// Submit/Publish/Unicast/Multicast split, narrowed to the two shapes
// Carnot actually needs: Unicast up the overlay tree, Broadcast
// network-wide.
package network

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/carnot-network/carnot/carnot"
)

// Kind tags an Envelope's payload so a receiver can decode it without
// out-of-band type information.
type Kind byte

const (
	KindVote Kind = iota + 1
	KindTimeout
	KindNewView
	KindTimeoutQc
	KindProposal
)

// Envelope is the framed message exchanged between nodes: a Kind tag
// plus the msgpack-encoded payload (vmihailenco/msgpack; see the wire
// codec row of SPEC_FULL.md §10 and the network section of DESIGN.md).
type Envelope struct {
	Kind    Kind
	Payload []byte
}

// Encode builds an Envelope around payload's msgpack-serialized form.
func Encode(kind Kind, payload interface{}) (Envelope, error) {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "could not encode payload")
	}
	return Envelope{Kind: kind, Payload: raw}, nil
}

// DecodeVote, DecodeTimeout, DecodeNewView, DecodeTimeoutQc and
// DecodeProposal decode an Envelope's payload into its concrete type.
// Callers should switch on Kind before picking which to call.
func DecodeVote(e Envelope) (carnot.Vote, error) {
	var v carnot.Vote
	err := msgpack.Unmarshal(e.Payload, &v)
	return v, err
}

func DecodeTimeout(e Envelope) (carnot.Timeout, error) {
	var t carnot.Timeout
	err := msgpack.Unmarshal(e.Payload, &t)
	return t, err
}

func DecodeNewView(e Envelope) (carnot.NewView, error) {
	var nv carnot.NewView
	err := msgpack.Unmarshal(e.Payload, &nv)
	return nv, err
}

func DecodeTimeoutQc(e Envelope) (carnot.TimeoutQc, error) {
	var tqc carnot.TimeoutQc
	err := msgpack.Unmarshal(e.Payload, &tqc)
	return tqc, err
}

// DecodeProposal is the decode side of EncodeProposal: it unmarshals
// into wireFullBlock rather than carnot.FullBlock directly, since the
// header's ParentQC/Proof fields are interface-typed and msgpack has
// nothing to decode into without the wireBlock translation.
func DecodeProposal(e Envelope) (carnot.FullBlock, error) {
	var wire wireFullBlock
	if err := msgpack.Unmarshal(e.Payload, &wire); err != nil {
		return carnot.FullBlock{}, err
	}
	header, err := wire.Header.decode()
	if err != nil {
		return carnot.FullBlock{}, err
	}
	return carnot.FullBlock{Header: header, Txs: wire.Txs, Beacon: wire.Beacon}, nil
}

// EnvelopeFor builds the Envelope carrying a Send output's payload,
// dispatched by the orchestrator once it has resolved carnot.Committee
// to concrete network addresses.
func EnvelopeFor(payload carnot.Payload) (Envelope, error) {
	switch p := payload.(type) {
	case carnot.VotePayload:
		return Encode(KindVote, p.Vote)
	case carnot.TimeoutPayload:
		return Encode(KindTimeout, p.Timeout)
	case carnot.NewViewPayload:
		return Encode(KindNewView, p.NewView)
	default:
		return Envelope{}, errors.Errorf("unknown payload type %T", payload)
	}
}

// Adapter is the network-layer contract the orchestrator dispatches
// every carnot.Output through. Unicast targets a specific committee (a
// Send output); Broadcast reaches the whole network (BroadcastTimeoutQc
// and BroadcastProposal).
type Adapter interface {
	Unicast(to carnot.Committee, msg Envelope) error
	Broadcast(msg Envelope) error
	// Inbox delivers every Envelope addressed to this node, whether by
	// direct unicast or by broadcast subscription.
	Inbox() <-chan Envelope
}
