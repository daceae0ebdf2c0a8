// Package mempool provides the in-memory carnot.Mempool used by a
// single-process node and by tests: a pending-transaction pool that
// rejects new submissions once a capacity is reached. Layout
// follows module/mempool/stdmap's backend-plus-typed-wrapper split,
// adapted to carnot.Tx's opaque byte-slice shape instead of flow's
// keyed, hashable entities.
package mempool

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/carnot-network/carnot/carnot"
)

// Pool is an in-memory, unordered bag of pending transactions. It
// implements carnot.Mempool: TransactionsSince ignores its ancestor
// hint (this pool does not track per-block transaction history) and
// simply drains whatever is pending, matching the happy-path mempool
// the original source's RandomBeaconState companion, the mempool
// adapter, treats as an opaque external collaborator.
type Pool struct {
	mu       sync.Mutex
	pending  [][]byte
	capacity int
}

// New builds an empty Pool. A capacity of 0 means unbounded.
func New(capacity int) *Pool {
	return &Pool{capacity: capacity}
}

// ErrPoolFull is returned by Submit when the pool is at capacity.
var ErrPoolFull = errors.New("mempool: at capacity")

// Submit adds tx to the pending set, rejecting it once the pool is at
// capacity — backpressure belongs to the network layer, not to a
// proposer silently dropping transactions.
func (p *Pool) Submit(tx carnot.Tx) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capacity > 0 && len(p.pending) >= p.capacity {
		return errors.Wrap(ErrPoolFull, "submit")
	}
	p.pending = append(p.pending, append([]byte(nil), tx...))
	return nil
}

// TransactionsSince implements carnot.Mempool: it drains and returns
// every transaction pending, regardless of ancestorHint. A production
// mempool would track which transactions a given ancestor chain already
// committed and exclude those; this pool is the single-process stand-in
// named as an external collaborator in spec.md §1 and is intentionally
// this simple.
func (p *Pool) TransactionsSince(ancestorHint carnot.BlockId) ([]carnot.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]carnot.Tx, len(p.pending))
	for i, tx := range p.pending {
		out[i] = carnot.Tx(tx)
	}
	p.pending = nil
	return out, nil
}

// Len reports how many transactions are currently pending.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
