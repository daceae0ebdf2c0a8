package carnot

// Mempool is the external collaborator consulted only by ProposeBlock:
// given an ancestor hint (the parent block id), it returns the batch of
// transactions eligible for inclusion in the next proposal. The core
// never inspects transaction contents.
type Mempool interface {
	TransactionsSince(ancestorHint BlockId) ([]Tx, error)
}

// BeaconGenerator is the external collaborator that derives the next
// view's beacon state. Like Mempool, this lives outside the pure core;
// ProposeBlock calls it exactly once per proposal.
type BeaconGenerator interface {
	GenerateHappy(view View) BeaconState
}
