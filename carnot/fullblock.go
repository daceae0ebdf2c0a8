package carnot

// Tx is an opaque transaction as handed to the core by the mempool. The
// core never interprets transaction contents; the wire codec and the
// mempool are external collaborators (see mempool.Pool).
type Tx []byte

// BeaconState is the opaque output of the random-beacon external
// collaborator for a given view. The happy-path construction used here
// (see mempool.HappyBeacon.GenerateHappy) is a deterministic placeholder standing in for the
// VRF-backed beacon described in the original source's
// RandomBeaconState::generate_happy: it only needs to be unpredictable
// and bindable to a view in a real deployment, which is a cryptographic
// concern out of this core's scope.
type BeaconState []byte

// FullBlock is the complete block a leader proposes and gossips: the
// header the state machine reasons about, plus the transaction batch
// and beacon state. The header's content hash (contentHash) covers only
// the header fields; Txs and Beacon are not part of the block id.
type FullBlock struct {
	Header Block
	Txs    []Tx
	Beacon BeaconState
}

func (b FullBlock) View() View { return b.Header.View() }
