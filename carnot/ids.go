// Package carnot implements the pure, deterministic consensus state
// machine of the Carnot overlay: the block tree, the high-QC, the
// last-voted view and the committed prefix, plus the transition
// functions that decide when to vote, when to time out and when to
// propose.
package carnot

import (
	"encoding/hex"
	"fmt"
)

// NodeId identifies a participant in the overlay. It is a fixed-width
// value derived from the node's public key; the core never interprets
// its bytes beyond equality and ordering.
type NodeId [32]byte

func (id NodeId) String() string {
	return hex.EncodeToString(id[:])
}

// ZeroNode is the well-known leader identity used for the genesis
// block's leader proof.
var ZeroNode = NodeId{}

// BlockId is the content hash of a block header.
type BlockId [32]byte

func (id BlockId) String() string {
	return hex.EncodeToString(id[:])
}

// ZeroBlock is the sentinel id used by the genesis QC.
var ZeroBlock = BlockId{}

// View is a monotonically increasing round number. -1 denotes "never
// voted" and is only ever used for highestVotedView before any vote
// has been cast.
type View int64

// NoView is the sentinel value for "never voted" / "no view yet".
const NoView View = -1

func (v View) Next() View { return v + 1 }
func (v View) Prev() View { return v - 1 }

func (v View) String() string {
	if v == NoView {
		return "none"
	}
	return fmt.Sprintf("%d", int64(v))
}

// Committee is an unordered set of node ids participating together at
// some level of the overlay tree.
type Committee map[NodeId]struct{}

// NewCommittee builds a Committee from a slice of ids.
func NewCommittee(ids ...NodeId) Committee {
	c := make(Committee, len(ids))
	for _, id := range ids {
		c[id] = struct{}{}
	}
	return c
}

func (c Committee) Contains(id NodeId) bool {
	_, ok := c[id]
	return ok
}

func (c Committee) Len() int { return len(c) }

// Slice returns the committee members in arbitrary order (Go map
// iteration order, which can differ from call to call), so callers that
// need determinism, e.g. tests, should sort the result.
func (c Committee) Slice() []NodeId {
	out := make([]NodeId, 0, len(c))
	for id := range c {
		out = append(out, id)
	}
	return out
}

// Union merges several committees into one, e.g. child committees plus
// the node's own committee for the purposes of threshold computation.
func Union(committees ...Committee) Committee {
	out := make(Committee)
	for _, c := range committees {
		for id := range c {
			out[id] = struct{}{}
		}
	}
	return out
}
