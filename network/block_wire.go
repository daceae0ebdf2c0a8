package network

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/carnot-network/carnot/carnot"
)

// carnot.Block carries two fields typed as an interface with methods
// (QC, LeaderProof): msgpack can encode an interface field by
// reflecting on whatever concrete value it holds, but it has nothing to
// decode into on the way back, since an interface has no zero value to
// unmarshal onto. The wire types below reduce each interface field to a
// kind tag plus its concrete payload before encoding, then rebuild the
// interface on decode — the same code-plus-payload idiom
// network/codec/json's Envelope uses for polymorphic network messages,
// applied one level down for Block's own polymorphic fields.

type qcKind uint8

const (
	qcKindStandard qcKind = iota + 1
	qcKindAggregate
)

type wireQC struct {
	Kind      qcKind
	Standard  *carnot.StandardQC  `msgpack:",omitempty"`
	Aggregate *carnot.AggregateQC `msgpack:",omitempty"`
}

func encodeQC(qc carnot.QC) (wireQC, error) {
	switch q := qc.(type) {
	case carnot.StandardQC:
		return wireQC{Kind: qcKindStandard, Standard: &q}, nil
	case carnot.AggregateQC:
		return wireQC{Kind: qcKindAggregate, Aggregate: &q}, nil
	default:
		return wireQC{}, errors.Errorf("unknown QC type %T", qc)
	}
}

func (w wireQC) decode() (carnot.QC, error) {
	switch w.Kind {
	case qcKindStandard:
		if w.Standard == nil {
			return nil, errors.New("wire QC tagged standard but carries no payload")
		}
		return *w.Standard, nil
	case qcKindAggregate:
		if w.Aggregate == nil {
			return nil, errors.New("wire QC tagged aggregate but carries no payload")
		}
		return *w.Aggregate, nil
	default:
		return nil, errors.Errorf("unknown QC wire kind %d", w.Kind)
	}
}

type leaderProofKind uint8

const (
	leaderProofKindID leaderProofKind = iota + 1
)

type wireLeaderProof struct {
	Kind leaderProofKind
	ID   *carnot.LeaderID `msgpack:",omitempty"`
}

func encodeLeaderProof(p carnot.LeaderProof) (wireLeaderProof, error) {
	switch lp := p.(type) {
	case carnot.LeaderID:
		return wireLeaderProof{Kind: leaderProofKindID, ID: &lp}, nil
	default:
		return wireLeaderProof{}, errors.Errorf("unknown LeaderProof type %T", p)
	}
}

func (w wireLeaderProof) decode() (carnot.LeaderProof, error) {
	switch w.Kind {
	case leaderProofKindID:
		if w.ID == nil {
			return nil, errors.New("wire LeaderProof tagged id but carries no payload")
		}
		return *w.ID, nil
	default:
		return nil, errors.Errorf("unknown LeaderProof wire kind %d", w.Kind)
	}
}

type wireBlock struct {
	ID         carnot.BlockId
	ViewNumber carnot.View
	ParentQC   wireQC
	Proof      wireLeaderProof
}

func encodeBlock(b carnot.Block) (wireBlock, error) {
	qc, err := encodeQC(b.ParentQC)
	if err != nil {
		return wireBlock{}, errors.Wrap(err, "could not encode parent qc")
	}
	proof, err := encodeLeaderProof(b.Proof)
	if err != nil {
		return wireBlock{}, errors.Wrap(err, "could not encode leader proof")
	}
	return wireBlock{ID: b.ID, ViewNumber: b.ViewNumber, ParentQC: qc, Proof: proof}, nil
}

func (w wireBlock) decode() (carnot.Block, error) {
	qc, err := w.ParentQC.decode()
	if err != nil {
		return carnot.Block{}, errors.Wrap(err, "could not decode parent qc")
	}
	proof, err := w.Proof.decode()
	if err != nil {
		return carnot.Block{}, errors.Wrap(err, "could not decode leader proof")
	}
	return carnot.Block{ID: w.ID, ViewNumber: w.ViewNumber, ParentQC: qc, Proof: proof}, nil
}

// wireFullBlock is carnot.FullBlock's wire shape: only Header needs
// translating, since Txs and Beacon are already concrete byte-slice
// types.
type wireFullBlock struct {
	Header wireBlock
	Txs    []carnot.Tx
	Beacon carnot.BeaconState
}

// EncodeProposal builds the Envelope carrying a freshly proposed block,
// routing Header through wireBlock instead of Encode's generic
// msgpack.Marshal so ParentQC/Proof survive the round trip.
func EncodeProposal(block carnot.FullBlock) (Envelope, error) {
	header, err := encodeBlock(block.Header)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "could not encode block header")
	}
	raw, err := msgpack.Marshal(wireFullBlock{Header: header, Txs: block.Txs, Beacon: block.Beacon})
	if err != nil {
		return Envelope{}, errors.Wrap(err, "could not encode payload")
	}
	return Envelope{Kind: KindProposal, Payload: raw}, nil
}
