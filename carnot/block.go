package carnot

// LeaderProof attests that the block's proposer was entitled to lead
// the view. The core treats it opaquely; concrete schemes (round-robin
// identity proof today, a VRF-backed proof in a future iteration) live
// behind this interface so the state machine never depends on the
// random beacon or any other cryptographic primitive directly.
type LeaderProof interface {
	Leader() NodeId
	isLeaderProof()
}

// LeaderID is the simplest LeaderProof: the proposer simply asserts its
// own identity, trusted because leader selection is itself
// deterministic and publicly computable from the overlay's committee
// state (see Overlay.Leader).
type LeaderID struct {
	ID NodeId
}

func (l LeaderID) Leader() NodeId { return l.ID }
func (l LeaderID) isLeaderProof() {}

// Block is the header the consensus core operates on. The full block
// additionally carries an ordered transaction batch and a beacon state
// (see FullBlock and the genesis construction in carnot.Genesis),
// but every invariant and transition in this package only ever
// inspects the header.
type Block struct {
	ID         BlockId
	ViewNumber View
	ParentQC   QC
	Proof      LeaderProof
}

func (b Block) View() View { return b.ViewNumber }

// Genesis builds the well-known genesis block: view 0, rooted by
// GenesisQC, proposed under the zero leader proof.
func Genesis() Block {
	return Block{
		ID:         ZeroBlock,
		ViewNumber: 0,
		ParentQC:   GenesisQC(),
		Proof:      LeaderID{ID: ZeroNode},
	}
}

func (b Block) IsGenesis() bool {
	return b.ViewNumber == 0 && b.ID == ZeroBlock
}
