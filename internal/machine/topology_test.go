package machine

import (
	"errors"
	"reflect"
	"testing"
)

func TestDefaultNodeID(t *testing.T) {
	topo := Topology{CPUs: 5, Nodes: []Node{{}, {}}}
	want := []int{0, 0, 1, 1, 1}
	for i, w := range want {
		if got := topo.DefaultNodeID(i); got != w {
			t.Errorf("DefaultNodeID(%d) = %d, want %d", i, got, w)
		}
	}

	// Fewer CPUs than nodes must not divide by zero.
	small := Topology{CPUs: 1, Nodes: []Node{{}, {}}}
	if got := small.DefaultNodeID(0); got != 0 {
		t.Errorf("DefaultNodeID(0) = %d, want 0", got)
	}
}

func TestSocketQueries(t *testing.T) {
	tests := []struct {
		name       string
		topo       Topology
		sockets    int
		first      []int
		count      []int
		contiguous []bool
	}{
		{
			name:       "single socket",
			topo:       Topology{CPUs: 4},
			sockets:    1,
			first:      []int{0},
			count:      []int{4},
			contiguous: []bool{true},
		},
		{
			name:       "two default nodes",
			topo:       Topology{CPUs: 6, Nodes: []Node{{}, {}}},
			sockets:    2,
			first:      []int{0, 3},
			count:      []int{3, 3},
			contiguous: []bool{true, true},
		},
		{
			name:       "interleaved",
			topo:       Topology{CPUs: 4, Nodes: []Node{{CPUs: []int{0, 2}}, {CPUs: []int{1, 3}}}},
			sockets:    2,
			first:      []int{0, 1},
			count:      []int{2, 2},
			contiguous: []bool{false, false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.topo.SocketCount(); got != tt.sockets {
				t.Fatalf("SocketCount = %d, want %d", got, tt.sockets)
			}
			for s := 0; s < tt.sockets; s++ {
				first, ok := tt.topo.SocketFirstHartID(s)
				if !ok || first != tt.first[s] {
					t.Errorf("socket%d first = %d/%v, want %d", s, first, ok, tt.first[s])
				}
				count, ok := tt.topo.SocketHartCount(s)
				if !ok || count != tt.count[s] {
					t.Errorf("socket%d count = %d/%v, want %d", s, count, ok, tt.count[s])
				}
				if got := tt.topo.SocketCheckHartIDs(s); got != tt.contiguous[s] {
					t.Errorf("socket%d contiguous = %v, want %v", s, got, tt.contiguous[s])
				}
			}
		})
	}
}

func TestEmptySocket(t *testing.T) {
	topo := Topology{CPUs: 2, Nodes: []Node{{CPUs: []int{0, 1}}, {}}}
	if _, ok := topo.SocketFirstHartID(1); ok {
		t.Errorf("empty socket reported a first hart id")
	}
	if _, ok := topo.SocketHartCount(1); ok {
		t.Errorf("empty socket reported a hart count")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		topo Topology
		ok   bool
	}{
		{"one cpu", Topology{CPUs: 1}, true},
		{"no cpus", Topology{}, false},
		{"cpu out of range", Topology{CPUs: 2, Nodes: []Node{{CPUs: []int{2}}}}, false},
		{"cpu in two nodes", Topology{CPUs: 2, Nodes: []Node{{CPUs: []int{0}}, {CPUs: []int{0, 1}}}}, false},
	}
	for _, tt := range tests {
		err := tt.topo.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrTopology) {
			t.Errorf("%s: error = %v, want ErrTopology", tt.name, err)
		}
	}
}

func TestPossibleCPUs(t *testing.T) {
	topo := Topology{CPUs: 3, Nodes: []Node{{CPUs: []int{0}}, {CPUs: []int{1, 2}}}}
	want := []CPUSlot{
		{Index: 0, ArchID: 0, SocketID: 0, NodeID: 0},
		{Index: 1, ArchID: 1, SocketID: 1, NodeID: 1},
		{Index: 2, ArchID: 2, SocketID: 1, NodeID: 1},
	}
	if got := topo.PossibleCPUs(); !reflect.DeepEqual(got, want) {
		t.Errorf("PossibleCPUs = %+v, want %+v", got, want)
	}
}

func TestParseNUMA(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "cpus=0-3", want: []int{0, 1, 2, 3}},
		{in: "node,nodeid=1,cpus=4-5", want: []int{4, 5}},
		{in: "cpus=2,cpus=0", want: []int{0, 2}},
		{in: "cpus=0-1:6", want: []int{0, 1, 6}},
		{in: "node", want: nil},
		{in: "cpus=3-1", wantErr: true},
		{in: "cpus=x", wantErr: true},
		{in: "socket=1", wantErr: true},
		{in: "cpus", wantErr: true},
	}
	for _, tt := range tests {
		node, err := ParseNUMA(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseNUMA(%q) succeeded", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseNUMA(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(node.CPUs, tt.want) {
			t.Errorf("ParseNUMA(%q) = %v, want %v", tt.in, node.CPUs, tt.want)
		}
	}
}
