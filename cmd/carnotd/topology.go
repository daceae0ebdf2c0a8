package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p-core/peer"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/overlay"
)

// topology is the parsed committee-file contents: the static tree
// layout plus the address every node is dialable at, read from a single
// human-edited file so a deployment's committee membership and peer
// routing stay in one place rather than drifting apart.
type topology struct {
	layout overlay.Layout
	peers  map[carnot.NodeId]peer.AddrInfo
}

func (t topology) PeerInfo(id carnot.NodeId) (peer.AddrInfo, error) {
	info, ok := t.peers[id]
	if !ok {
		return peer.AddrInfo{}, fmt.Errorf("no known address for node %s", id)
	}
	return info, nil
}

// loadTopology parses a committee file: blank-line-separated sections,
// each line "<hex node id> <libp2p multiaddr-with-/p2p-suffix>", section
// index 0 (first in the file) is the root committee and section i's
// children are sections 2i+1 and 2i+2, matching overlay.Layout's index
// convention.
func loadTopology(path string) (topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return topology{}, fmt.Errorf("could not open committee file: %w", err)
	}
	defer f.Close()

	layout := overlay.Layout{
		Committees: make(map[int]carnot.Committee),
		Parent:     make(map[int]int),
		Children:   make(map[int][]int),
	}
	peers := make(map[carnot.NodeId]peer.AddrInfo)

	section := -1
	members := map[int][]carnot.NodeId{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			if line == "" && section >= 0 && len(members[section]) > 0 {
				section++
			}
			continue
		}
		if section < 0 {
			section = 0
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return topology{}, fmt.Errorf("malformed committee line %q", line)
		}
		id, err := parseNodeID(fields[0])
		if err != nil {
			return topology{}, err
		}
		info, err := peer.AddrInfoFromString(fields[1])
		if err != nil {
			return topology{}, fmt.Errorf("could not parse peer address %q: %w", fields[1], err)
		}
		members[section] = append(members[section], id)
		peers[id] = *info
	}
	if err := scanner.Err(); err != nil {
		return topology{}, err
	}

	for idx, ids := range members {
		layout.Committees[idx] = carnot.NewCommittee(ids...)
		left, right := 2*idx+1, 2*idx+2
		var children []int
		if _, ok := members[left]; ok {
			children = append(children, left)
		}
		if _, ok := members[right]; ok {
			children = append(children, right)
		}
		if len(children) > 0 {
			layout.Children[idx] = children
		}
		if idx > 0 {
			layout.Parent[idx] = (idx - 1) / 2
		}
	}

	return topology{layout: layout, peers: peers}, nil
}

func parseNodeID(s string) (carnot.NodeId, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return carnot.NodeId{}, fmt.Errorf("could not decode node id %q: %w", s, err)
	}
	var id carnot.NodeId
	if len(raw) != len(id) {
		return carnot.NodeId{}, fmt.Errorf("node id %q: expected %d bytes, got %d", s, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
