package carnot

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Rejected describes why receive_block refused a block. It is never
// fatal: a rejected block leaves the state unchanged and the caller is
// expected to log it at debug level and move on, per the "Validation
// rejections" error class.
type Rejected struct {
	BlockID BlockId
	Reasons *multierror.Error
}

func (r *Rejected) Error() string {
	return fmt.Sprintf("block %s rejected: %v", r.BlockID, r.Reasons)
}

// Is reports whether target is one of the sentinel reasons bundled into
// r, so callers can errors.Is(err, ErrPastView) instead of string
// matching r.Error().
func (r *Rejected) Is(target error) bool {
	for _, reason := range r.Reasons.Errors {
		if reason == target {
			return true
		}
	}
	return false
}

func newRejection(id BlockId, reasons ...error) *Rejected {
	me := &multierror.Error{}
	for _, reason := range reasons {
		if reason != nil {
			me = multierror.Append(me, reason)
		}
	}
	return &Rejected{BlockID: id, Reasons: me}
}

var (
	// ErrUnknownParent means the block's parent_qc does not reference a
	// block already present in safe_blocks (and is not the genesis QC).
	ErrUnknownParent = fmt.Errorf("parent block not found in safe_blocks")
	// ErrNonIncreasingView means block.view <= parent_qc.view().
	ErrNonIncreasingView = fmt.Errorf("block view does not exceed parent QC view")
	// ErrPastView means block.view < current_view.
	ErrPastView = fmt.Errorf("block view is behind current view")
	// ErrUnsafeExtension means neither the happy-path nor the
	// timeout-recovery safety rule holds for this block.
	ErrUnsafeExtension = fmt.Errorf("block fails both safety rule branches")
)

// NoVoteError is returned by the approve/vote path when a vote would
// violate Invariant 6 (voting twice for the same or an earlier view) or
// when the node is not a member of the committee that should vote.
type NoVoteError struct {
	Reason string
}

func (e NoVoteError) Error() string { return "no vote: " + e.Reason }
