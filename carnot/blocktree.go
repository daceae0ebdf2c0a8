package carnot

import (
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

// pendingCapacity bounds how many not-yet-committed blocks blockTree
// retains at once. A long timeout storm can admit many parallel,
// never-committed forks at successive views (Invariant 2 allows more
// than one block per view); without a bound, safe_blocks would grow
// without limit for the lifetime of the node. Sized generously relative
// to the overlay depths spec.md's scenarios exercise.
const pendingCapacity = 4096

// blockTree is the safe-blocks index: an id-keyed map of blocks that
// have passed the safety rule, plus the parent links implied by each
// block's parent_qc. It never stores pointers between blocks (per the
// "cyclic references... avoided" design note) — every link is an id
// looked up through the map. Not-yet-committed entries are additionally
// tracked in an LRU so the map itself stays bounded; eviction from the
// LRU discards the corresponding entry from blocks but never touches an
// id that has since been committed (see evictPending).
type blockTree struct {
	blocks map[BlockId]Block
	// committed holds the ordered sequence of committed block ids, oldest
	// first, as derived by the two-chain commit rule.
	committed []BlockId
	// committedSet mirrors committed for O(1) membership tests.
	committedSet map[BlockId]struct{}
	// pending is an insertion-ordered LRU of not-yet-committed block ids;
	// eviction here is what keeps blocks bounded under sustained timeout
	// storms (SPEC_FULL.md §4.1).
	pending *lru.Cache
}

func newBlockTree(genesis Block) *blockTree {
	t := &blockTree{
		blocks:       map[BlockId]Block{genesis.ID: genesis},
		committed:    nil,
		committedSet: map[BlockId]struct{}{},
	}
	cache, err := lru.NewWithEvict(pendingCapacity, t.evictPending)
	if err != nil {
		panic(err) // only errors when capacity <= 0, which pendingCapacity never is
	}
	t.pending = cache
	return t
}

// evictPending is the LRU's eviction callback: it drops id from blocks
// unless id has since been committed, in which case latestCommitted()
// still needs it to stay resolvable and eviction is a no-op.
func (t *blockTree) evictPending(key, _ interface{}) {
	id := key.(BlockId)
	if t.isCommitted(id) {
		return
	}
	delete(t.blocks, id)
}

func (t *blockTree) get(id BlockId) (Block, bool) {
	b, ok := t.blocks[id]
	return b, ok
}

// blocksInView returns every safe block recorded at view v. Parallel
// proposals at the same view (e.g. from an equivocating leader) are all
// admitted to the tree, so more than one may be present.
func (t *blockTree) blocksInView(v View) []Block {
	var out []Block
	for _, b := range t.blocks {
		if b.ViewNumber == v {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (t *blockTree) latestCommitted() []BlockId {
	out := make([]BlockId, len(t.committed))
	copy(out, t.committed)
	return out
}

func (t *blockTree) isCommitted(id BlockId) bool {
	_, ok := t.committedSet[id]
	return ok
}

// safetyRule checks condition (d) of receive_block: either the happy
// extension (block.view == parent_qc.view()+1) or timeout recovery
// (parent_qc is Aggregated, block.view == parent_qc.view()+1, and the
// aggregated QC's embedded high_qc is at least as high as our own
// local_high_qc).
func safetyRule(block Block, localHighQC StandardQC) bool {
	qc := block.ParentQC
	if block.ViewNumber != qc.View().Next() {
		return false
	}
	if _, ok := AsStandard(qc); ok {
		return true // happy extension
	}
	agg, ok := AsAggregate(qc)
	if !ok {
		return false
	}
	return agg.HighQC.ViewNumber >= localHighQC.ViewNumber
}

// receiveBlock validates and, if valid, inserts block into the tree,
// then folds in the two-chain commit rule. It returns the ids newly
// committed as a result (possibly none), or a *Rejected error.
//
// Validation order mirrors spec.md §4.1: (a) parent known, (b)
// block.view > parent_qc.view(), (c) block.view >= current_view, (d)
// safety rule.
func (t *blockTree) receiveBlock(block Block, currentView View, localHighQC StandardQC) ([]BlockId, error) {
	parentID := HighQCOf(block.ParentQC).BlockID
	if !block.IsGenesis() {
		if _, ok := t.get(parentID); !ok {
			return nil, newRejection(block.ID, ErrUnknownParent)
		}
	}
	if block.ViewNumber <= block.ParentQC.View() {
		return nil, newRejection(block.ID, ErrNonIncreasingView)
	}
	if block.ViewNumber < currentView {
		return nil, newRejection(block.ID, ErrPastView)
	}
	if !safetyRule(block, localHighQC) {
		return nil, newRejection(block.ID, ErrUnsafeExtension)
	}

	// Invariant 2: at most one block per view may be admitted with a
	// given id; a different id at an already-seen view is a distinct,
	// parallel fork entry (tie-break by block id, per spec.md §4.4) and
	// is still admitted — Invariant 2 only forbids divergent payloads
	// under the *same* id, which can't happen since ids are content
	// hashes.
	if existing, ok := t.get(block.ID); ok {
		return nil, rejectIfMismatch(existing, block)
	}

	t.blocks[block.ID] = block
	t.pending.Add(block.ID, struct{}{})
	return t.tryCommit(block), nil
}

func rejectIfMismatch(existing, incoming Block) error {
	if existing.ViewNumber == incoming.ViewNumber && existing.ID == incoming.ID {
		return nil // idempotent re-delivery, not an error
	}
	return newRejection(incoming.ID, ErrUnsafeExtension)
}

// tryCommit implements the two-chain commit rule: when a block B with
// parent_qc == Standard{view: vp, id: p} is accepted and safe_blocks[p]
// itself has a Standard parent_qc at vgp == vp-1, then p's parent (gp)
// — and transitively everything below it — becomes committed.
func (t *blockTree) tryCommit(b Block) []BlockId {
	std, ok := AsStandard(b.ParentQC)
	if !ok {
		return nil // timeout-recovery extensions never directly commit
	}
	parent, ok := t.get(std.BlockID)
	if !ok {
		return nil
	}
	grandparentQC, ok := AsStandard(parent.ParentQC)
	if !ok {
		return nil
	}
	if std.ViewNumber != grandparentQC.ViewNumber.Next() {
		return nil
	}
	if t.isCommitted(grandparentQC.BlockID) {
		return nil // idempotent: already committed
	}
	return t.commitChain(grandparentQC.BlockID)
}

// commitChain marks id and every ancestor not yet committed, oldest
// first, appending them to the committed sequence.
func (t *blockTree) commitChain(id BlockId) []BlockId {
	var chain []BlockId
	cur := id
	for {
		if t.isCommitted(cur) {
			break
		}
		block, ok := t.get(cur)
		if !ok {
			break
		}
		chain = append(chain, cur)
		if block.IsGenesis() {
			break
		}
		parentQC, ok := AsStandard(block.ParentQC)
		if !ok {
			break // a timeout-recovery ancestor ends the certain chain
		}
		cur = parentQC.BlockID
	}
	// chain was built newest-first (id, then its ancestors); commit
	// oldest-first so latestCommitted() reads in chain order.
	for i := len(chain) - 1; i >= 0; i-- {
		t.committedSet[chain[i]] = struct{}{}
		t.committed = append(t.committed, chain[i])
		t.pending.Remove(chain[i])
	}
	// return in the same oldest-first order
	out := make([]BlockId, len(chain))
	for i, id := range chain {
		out[len(chain)-1-i] = id
	}
	return out
}
