package carnot

// Vote is cast by a committee member for a block it considers safe to
// extend at View.
type Vote struct {
	ViewNumber View
	BlockID    BlockId
	Voter      NodeId
}

func (v Vote) View() View { return v.ViewNumber }

// Timeout is cast by a root-committee member when its local timer
// fires without the view making progress. It carries the sender's
// current local_high_qc so the eventual TimeoutQc can recover the
// highest certified block across the committee.
type Timeout struct {
	ViewNumber View
	HighQC     StandardQC
	Sender     NodeId
}

func (t Timeout) View() View { return t.ViewNumber }

// TimeoutQc (TC) certifies that a super-majority of Timeout messages
// were collected for View. It carries the highest Standard QC observed
// among the timing-out replicas, which becomes the parent_qc of the
// block proposed in View+1 (the "timeout recovery" safety-rule branch).
type TimeoutQc struct {
	ViewNumber View
	HighQC     StandardQC
	Sender     NodeId
}

func (t TimeoutQc) View() View { return t.ViewNumber }

// NewView is sent up the overlay tree after a node processes a
// TimeoutQc, carrying both the TimeoutQc and the sender's own
// local_high_qc, so the next leader can pick the best one once a
// super-majority of NewViews has accumulated.
type NewView struct {
	ViewNumber View
	TimeoutQC  TimeoutQc
	HighQC     StandardQC
	Sender     NodeId
}

func (n NewView) View() View { return n.ViewNumber }
