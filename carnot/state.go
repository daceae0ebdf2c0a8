package carnot

// State is the mutable local state owned exclusively by a Carnot
// engine instance: current_view, highest_voted_view, local_high_qc,
// safe_blocks and last_view_timeout_qc, per spec.md §3. It is never
// accessed concurrently; the orchestrator is its sole owner.
type State struct {
	currentView      View
	highestVotedView View
	localHighQC      StandardQC
	tree             *blockTree
	lastTimeoutQC    *TimeoutQc
}

func newGenesisState() State {
	genesis := Genesis()
	return State{
		currentView:      genesis.ViewNumber,
		highestVotedView: NoView,
		localHighQC:      GenesisQC(),
		tree:             newBlockTree(genesis),
		lastTimeoutQC:    nil,
	}
}

func (s State) CurrentView() View       { return s.currentView }
func (s State) HighestVotedView() View  { return s.highestVotedView }
func (s State) LocalHighQC() StandardQC { return s.localHighQC }

func (s State) SafeBlock(id BlockId) (Block, bool) { return s.tree.get(id) }

func (s State) BlocksInView(v View) []Block { return s.tree.blocksInView(v) }

func (s State) LatestCommittedBlocks() []BlockId { return s.tree.latestCommitted() }

func (s State) LastViewTimeoutQc() (TimeoutQc, bool) {
	if s.lastTimeoutQC == nil {
		return TimeoutQc{}, false
	}
	return *s.lastTimeoutQC, true
}

// SafeBlocksSnapshot copies every currently safe block, for use by the
// introspection interface; it must never be mutated by the caller.
func (s State) SafeBlocksSnapshot() map[BlockId]Block {
	out := make(map[BlockId]Block, len(s.tree.blocks))
	for id, b := range s.tree.blocks {
		out[id] = b
	}
	return out
}
