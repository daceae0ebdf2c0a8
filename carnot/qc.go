package carnot

// QC is a quorum certificate: either a Standard QC, formed from a
// super-majority of votes for a single block at a single view, or an
// Aggregated QC, formed after a timeout and carrying the highest
// Standard QC observed among the NewView senders.
//
// Modeled as an interface with a marker method rather than a Rust-style
// tagged union; callers that need to distinguish the two variants use
// a type switch (see AsStandard/AsAggregate below).
type QC interface {
	View() View
	isQC()
}

// StandardQC certifies that a super-majority of votes were cast for
// BlockID at View.
type StandardQC struct {
	ViewNumber View
	BlockID    BlockId
}

func (q StandardQC) View() View { return q.ViewNumber }
func (q StandardQC) isQC()      {}

// GenesisQC is the well-known Standard QC that roots the block tree:
// it certifies the genesis block at view 0.
func GenesisQC() StandardQC {
	return StandardQC{ViewNumber: 0, BlockID: ZeroBlock}
}

// AggregateQC certifies that a super-majority of NewView messages were
// collected for View (i.e. the view after a timeout), carrying forward
// the highest StandardQC any of those NewView senders had observed.
type AggregateQC struct {
	ViewNumber View
	HighQC     StandardQC
}

func (q AggregateQC) View() View { return q.ViewNumber }
func (q AggregateQC) isQC()      {}

// AsStandard returns qc as a StandardQC and true if qc is a Standard
// QC, or the zero value and false otherwise.
func AsStandard(qc QC) (StandardQC, bool) {
	s, ok := qc.(StandardQC)
	return s, ok
}

// AsAggregate returns qc as an AggregateQC and true if qc is an
// Aggregated QC, or the zero value and false otherwise.
func AsAggregate(qc QC) (AggregateQC, bool) {
	a, ok := qc.(AggregateQC)
	return a, ok
}

// HighQCOf extracts the highest Standard QC embedded in qc: itself, if
// qc is already Standard, or its embedded HighQC, if qc is Aggregated.
func HighQCOf(qc QC) StandardQC {
	switch q := qc.(type) {
	case StandardQC:
		return q
	case AggregateQC:
		return q.HighQC
	default:
		return StandardQC{}
	}
}

// MaxStandardQC returns whichever of a, b carries the higher Standard
// QC view (a on a tie), per the "max of timeouts' high_qc and self.local_high_qc"
// rule used when forming a TimeoutQc and when merging an incoming
// TimeoutQc's high_qc into local_high_qc.
func MaxStandardQC(a, b StandardQC) StandardQC {
	if b.ViewNumber > a.ViewNumber {
		return b
	}
	return a
}
