package tcnewman

import (
	"fmt"

	"github.com/tinyrange/tcnewman/internal/machine"
)

// Board limits.
const (
	MaxCPUs    = 8
	MaxSockets = 2
)

// SocketTopology is one validated socket: harts
// [BaseHartID, BaseHartID+HartCount) share an interrupt fabric.
type SocketTopology struct {
	Index      int
	BaseHartID uint64
	HartCount  int
}

// ValidateTopology checks topo against the board limits and returns the
// sockets in index order. It creates nothing, so a failure leaves no
// partially built board behind.
func ValidateTopology(topo machine.Topology) ([]SocketTopology, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	if topo.CPUs > MaxCPUs {
		return nil, fmt.Errorf("%w: %d cpus requested, board supports at most %d", machine.ErrTopology, topo.CPUs, MaxCPUs)
	}
	count := topo.SocketCount()
	if count > MaxSockets {
		return nil, fmt.Errorf("%w: %d sockets requested, number of sockets/nodes should be at most %d",
			machine.ErrTopology, count, MaxSockets)
	}

	sockets := make([]SocketTopology, count)
	for i := range sockets {
		base, ok := topo.SocketFirstHartID(i)
		if !ok {
			return nil, fmt.Errorf("%w: can't find hartid base for socket%d", machine.ErrTopology, i)
		}
		harts, ok := topo.SocketHartCount(i)
		if !ok {
			return nil, fmt.Errorf("%w: can't find hart count for socket%d", machine.ErrTopology, i)
		}
		if !topo.SocketCheckHartIDs(i) {
			return nil, fmt.Errorf("%w: discontinuous hartids in socket%d", machine.ErrTopology, i)
		}
		sockets[i] = SocketTopology{Index: i, BaseHartID: uint64(base), HartCount: harts}
	}
	return sockets, nil
}
