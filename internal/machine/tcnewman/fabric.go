package tcnewman

import (
	"fmt"

	"github.com/tinyrange/tcnewman/internal/devices/clint"
	"github.com/tinyrange/tcnewman/internal/devices/plic"
)

// PLIC layout.
const (
	PLICHartConfig    = "MS"
	PLICNumSources    = 127
	PLICNumPriorities = 7
	PLICPriorityBase  = 0x04
	PLICPendingBase   = 0x1000
	PLICEnableBase    = 0x2000
	PLICEnableStride  = 0x80
	PLICContextBase   = 0x200000
	PLICContextStride = 0x1000

	// PLICStride spaces sockets so that each could host MaxCPUs harts with
	// an M and an S context apiece.
	PLICStride = PLICContextBase + (2*MaxCPUs)*PLICContextStride
)

// CLINTStride spaces the per-socket CLINT instances.
const CLINTStride = clint.DefaultSize

// CLINTBase returns the CLINT base address of socket.
func CLINTBase(socket int) uint64 {
	return memmap[RegionCLINT].Base + uint64(socket)*CLINTStride
}

// PLICBase returns the PLIC base address of socket.
func PLICBase(socket int) uint64 {
	return memmap[RegionPLIC].Base + uint64(socket)*PLICStride
}

// PLICSize returns the PLIC aperture for a socket of harts harts.
func PLICSize(harts int) uint64 {
	return plic.Size(PLICContextBase, PLICContextStride, 2*harts)
}

// HartConfig returns the PLIC hart configuration for a socket of harts
// harts, e.g. "MS,MS" for two.
func HartConfig(harts int) string {
	return plic.HartConfig(PLICHartConfig, harts)
}

func clintName(s SocketTopology) string { return fmt.Sprintf("riscv.aclint.swi.%d", s.Index) }
func plicName(s SocketTopology) string  { return fmt.Sprintf("riscv.sifive.plic.%d", s.Index) }

func clintConfig(s SocketTopology) clint.Config {
	return clint.DefaultConfig(CLINTBase(s.Index), s.BaseHartID, s.HartCount)
}

func plicConfig(s SocketTopology) plic.Config {
	return plic.Config{
		Base:          PLICBase(s.Index),
		HartConfig:    HartConfig(s.HartCount),
		ID:            s.BaseHartID,
		HartIDBase:    s.BaseHartID,
		NumSources:    PLICNumSources,
		NumPriorities: PLICNumPriorities,
		PriorityBase:  PLICPriorityBase,
		PendingBase:   PLICPendingBase,
		EnableBase:    PLICEnableBase,
		EnableStride:  PLICEnableStride,
		ContextBase:   PLICContextBase,
		ContextStride: PLICContextStride,
		ApertureSize:  PLICSize(s.HartCount),
	}
}
