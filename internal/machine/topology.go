package machine

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrTopology reports a CPU topology a board cannot be built from.
var ErrTopology = errors.New("invalid topology")

// Node groups CPUs by index. On RISC-V boards a NUMA node is a socket and a
// CPU index is its hart id.
type Node struct {
	CPUs []int `yaml:"cpus"`
}

// Topology is the requested CPU layout. CPUs not listed in any node are
// placed by the default node-id rule.
type Topology struct {
	CPUs  int    `yaml:"cpus"`
	Nodes []Node `yaml:"nodes,omitempty"`
}

// CPUSlot describes one possible CPU of a topology.
type CPUSlot struct {
	Index    int
	ArchID   uint64
	SocketID int
	NodeID   int
}

// Validate checks that every CPU index is in range and assigned at most
// once.
func (t Topology) Validate() error {
	if t.CPUs < 1 {
		return fmt.Errorf("%w: %d cpus requested", ErrTopology, t.CPUs)
	}
	seen := make(map[int]int)
	for n, node := range t.Nodes {
		for _, cpu := range node.CPUs {
			if cpu < 0 || cpu >= t.CPUs {
				return fmt.Errorf("%w: node %d lists cpu %d, have %d cpus", ErrTopology, n, cpu, t.CPUs)
			}
			if prev, dup := seen[cpu]; dup {
				return fmt.Errorf("%w: cpu %d assigned to nodes %d and %d", ErrTopology, cpu, prev, n)
			}
			seen[cpu] = n
		}
	}
	return nil
}

// SocketCount returns the number of sockets: one per NUMA node, or a single
// socket when no nodes are configured.
func (t Topology) SocketCount() int {
	if len(t.Nodes) == 0 {
		return 1
	}
	return len(t.Nodes)
}

// DefaultNodeID is the node a CPU lands on when no node lists it: CPUs are
// split into equal runs, and any remainder goes to the last node.
func (t Topology) DefaultNodeID(idx int) int {
	nodes := len(t.Nodes)
	if nodes == 0 {
		return 0
	}
	per := t.CPUs / nodes
	if per == 0 {
		per = 1
	}
	nid := idx / per
	if nid >= nodes {
		nid = nodes - 1
	}
	return nid
}

// NodeID returns the node of the CPU at idx.
func (t Topology) NodeID(idx int) int {
	for n, node := range t.Nodes {
		for _, cpu := range node.CPUs {
			if cpu == idx {
				return n
			}
		}
	}
	return t.DefaultNodeID(idx)
}

func (t Topology) socketHarts(socket int) []int {
	var ids []int
	for i := 0; i < t.CPUs; i++ {
		if t.NodeID(i) == socket {
			ids = append(ids, i)
		}
	}
	return ids
}

// SocketFirstHartID returns the lowest hart id in socket. It reports false
// when the socket has no harts.
func (t Topology) SocketFirstHartID(socket int) (int, bool) {
	ids := t.socketHarts(socket)
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// SocketHartCount returns the number of harts in socket. It reports false
// when the socket has no harts.
func (t Topology) SocketHartCount(socket int) (int, bool) {
	ids := t.socketHarts(socket)
	if len(ids) == 0 {
		return 0, false
	}
	return len(ids), true
}

// SocketCheckHartIDs reports whether the hart ids of socket are contiguous.
func (t Topology) SocketCheckHartIDs(socket int) bool {
	ids := t.socketHarts(socket)
	if len(ids) == 0 {
		return false
	}
	return ids[len(ids)-1]-ids[0]+1 == len(ids)
}

// PossibleCPUs lists every CPU slot in index order.
func (t Topology) PossibleCPUs() []CPUSlot {
	slots := make([]CPUSlot, t.CPUs)
	for i := range slots {
		node := t.NodeID(i)
		slots[i] = CPUSlot{Index: i, ArchID: uint64(i), SocketID: node, NodeID: node}
	}
	return slots
}

// ParseNUMA parses a node description of the form "[node,]cpus=A[-B][,cpus=C...]".
// A bare number list such as "cpus=0-1:4" is also accepted.
func ParseNUMA(s string) (Node, error) {
	var node Node
	s = strings.TrimPrefix(strings.TrimSpace(s), "node,")
	if s == "" || s == "node" {
		return node, nil
	}
	for _, field := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return Node{}, fmt.Errorf("numa: malformed option %q", field)
		}
		switch key {
		case "cpus":
			for _, part := range strings.Split(value, ":") {
				cpus, err := parseCPURange(part)
				if err != nil {
					return Node{}, err
				}
				node.CPUs = append(node.CPUs, cpus...)
			}
		case "nodeid", "memdev", "mem":
			// Node ids follow declaration order; memory is not split per node.
		default:
			return Node{}, fmt.Errorf("numa: unknown option %q", key)
		}
	}
	sort.Ints(node.CPUs)
	return node, nil
}

func parseCPURange(s string) ([]int, error) {
	lo, hi, isRange := strings.Cut(s, "-")
	first, err := strconv.Atoi(lo)
	if err != nil || first < 0 {
		return nil, fmt.Errorf("numa: invalid cpu %q", s)
	}
	last := first
	if isRange {
		last, err = strconv.Atoi(hi)
		if err != nil || last < first {
			return nil, fmt.Errorf("numa: invalid cpu range %q", s)
		}
	}
	cpus := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		cpus = append(cpus, i)
	}
	return cpus, nil
}
