package mempool

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/carnot-network/carnot/carnot"
)

// HappyBeacon is the deterministic, non-cryptographic carnot.BeaconGenerator
// used outside of production deployments: it derives a view's beacon
// state as blake2b(seed || view), standing in for the original source's
// VRF-backed RandomBeaconState::generate_happy. A production deployment
// replaces this with a real threshold-VRF beacon; nothing in the carnot
// package depends on which one is wired in.
type HappyBeacon struct {
	seed []byte
}

// NewHappyBeacon builds a beacon generator seeded by seed (typically the
// genesis block id or a run-specific nonce).
func NewHappyBeacon(seed []byte) HappyBeacon {
	return HappyBeacon{seed: append([]byte(nil), seed...)}
}

func (b HappyBeacon) GenerateHappy(view carnot.View) carnot.BeaconState {
	var viewBuf [8]byte
	binary.BigEndian.PutUint64(viewBuf[:], uint64(view))
	sum := blake2b.Sum256(append(append([]byte(nil), b.seed...), viewBuf[:]...))
	return carnot.BeaconState(sum[:])
}
