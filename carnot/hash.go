package carnot

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// contentHash derives a Block's id from its header fields, so BlockId
// never needs to be supplied by the proposer and two proposers
// extending the same parent at the same view with the same leader
// proof collide into the same id rather than forking silently.
//
// The parent QC is hashed field by field behind a tag byte
// distinguishing Standard from Aggregated (an Aggregated QC contributes
// its own view plus its embedded high_qc's view and block id), so the
// two variants never hash identically.
func contentHash(b Block) BlockId {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // blake2b.New256 only errors on a bad key, and we pass none
	}

	var viewBuf [8]byte
	binary.BigEndian.PutUint64(viewBuf[:], uint64(b.ViewNumber))
	h.Write(viewBuf[:])

	switch qc := b.ParentQC.(type) {
	case StandardQC:
		h.Write([]byte{0x00})
		binary.BigEndian.PutUint64(viewBuf[:], uint64(qc.ViewNumber))
		h.Write(viewBuf[:])
		h.Write(qc.BlockID[:])
	case AggregateQC:
		h.Write([]byte{0x01})
		binary.BigEndian.PutUint64(viewBuf[:], uint64(qc.ViewNumber))
		h.Write(viewBuf[:])
		binary.BigEndian.PutUint64(viewBuf[:], uint64(qc.HighQC.ViewNumber))
		h.Write(viewBuf[:])
		h.Write(qc.HighQC.BlockID[:])
	}

	h.Write([]byte(b.Proof.Leader().String()))

	var id BlockId
	copy(id[:], h.Sum(nil))
	return id
}
