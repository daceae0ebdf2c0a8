// Package overlay provides concrete carnot.Overlay implementations: a
// flat single-committee overlay for small networks and a full
// binary-tree overlay for larger ones, plus the round-robin leader
// selection rule both share.
package overlay

import (
	"github.com/carnot-network/carnot/carnot"
)

// Layout is the static committee structure computed once at
// construction (or recomputed on reshuffle) and shared by every overlay
// variant: which nodes sit in which committee, and how committees
// relate to each other in the tree.
type Layout struct {
	// Committees maps a committee index to its membership. Index 0 is
	// always the root.
	Committees map[int]carnot.Committee
	// Parent maps a non-root committee index to its parent's index.
	Parent map[int]int
	// Children maps a committee index to its child committee indices.
	Children map[int][]int
}

// committeeOf returns the index of the committee id belongs to, or -1.
func (l Layout) committeeOf(id carnot.NodeId) int {
	for idx, c := range l.Committees {
		if c.Contains(id) {
			return idx
		}
	}
	return -1
}

// roundRobinLeader selects the leader for view deterministically from
// the root committee, cycling through its members in id order. This
// mirrors the "leaders" step of the original overlay construction
// (simulations/src/overlay/tree.rs chooses leaders by sampling the node
// set), made deterministic here since the core must be able to replay
// leader selection without a shared RNG.
func roundRobinLeader(root carnot.Committee, view carnot.View) carnot.NodeId {
	members := root.Slice()
	sortNodeIds(members)
	if len(members) == 0 {
		return carnot.NodeId{}
	}
	v := int64(view)
	if v < 0 {
		v = 0
	}
	return members[v%int64(len(members))]
}

func sortNodeIds(ids []carnot.NodeId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && lessNodeId(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func lessNodeId(a, b carnot.NodeId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// superMajority returns the smallest threshold strictly greater than
// 2/3 of n, i.e. floor(2n/3)+1, the super-majority rule used throughout
// spec.md for both voting and timeout quorums.
func superMajority(n int) int {
	return (2*n)/3 + 1
}
