package tcnewman

import (
	"fmt"

	"github.com/tinyrange/tcnewman/internal/hv"
)

// Region indexes the board memory map.
type Region int

const (
	RegionMROM Region = iota
	RegionSRAM
	RegionCLINT
	RegionPLIC
	RegionUART0
	RegionUART1
	RegionUART2
	RegionFlash
	RegionDRAM
	numRegions
)

var regionNames = [numRegions]string{
	RegionMROM:  "mrom",
	RegionSRAM:  "sram",
	RegionCLINT: "clint",
	RegionPLIC:  "plic",
	RegionUART0: "uart0",
	RegionUART1: "uart1",
	RegionUART2: "uart2",
	RegionFlash: "flash",
	RegionDRAM:  "dram",
}

func (r Region) String() string {
	if r < 0 || r >= numRegions {
		return fmt.Sprintf("region(%d)", int(r))
	}
	return regionNames[r]
}

// MemMapEntry places one region. A zero size for DRAM means the size comes
// from the machine configuration.
type MemMapEntry struct {
	Base uint64
	Size uint64
}

// CLINT and PLIC entries describe the socket 0 instance; further sockets
// follow at CLINTStride and PLICStride.
var memmap = [numRegions]MemMapEntry{
	RegionMROM:  {0x0, 0x8000},
	RegionSRAM:  {0x8000, 0x8000},
	RegionCLINT: {0x2000000, 0x10000},
	RegionPLIC:  {0xc000000, PLICStride},
	RegionUART0: {0x10000000, 0x100},
	RegionUART1: {0x10001000, 0x100},
	RegionUART2: {0x10002000, 0x100},
	RegionFlash: {0x20000000, 0x2000000},
	RegionDRAM:  {0x80000000, 0x0},
}

// MemMap returns the entry for r.
func MemMap(r Region) MemMapEntry { return memmap[r] }

// footprint returns the address range r can occupy with every socket
// populated and the given RAM size.
func footprint(r Region, ramSize uint64) hv.MMIORegion {
	e := memmap[r]
	switch r {
	case RegionCLINT:
		return hv.MMIORegion{Address: e.Base, Size: (MaxSockets-1)*CLINTStride + e.Size}
	case RegionPLIC:
		return hv.MMIORegion{Address: e.Base, Size: (MaxSockets-1)*PLICStride + e.Size}
	case RegionDRAM:
		return hv.MMIORegion{Address: e.Base, Size: ramSize}
	}
	return hv.MMIORegion{Address: e.Base, Size: e.Size}
}

// CheckMemMap verifies that no two regions of the map intersect once DRAM
// has ramSize bytes and every socket's interrupt fabric is present.
func CheckMemMap(ramSize uint64) error {
	if ramSize == 0 {
		return fmt.Errorf("%w: dram size is zero", ErrGeometry)
	}
	for a := Region(0); a < numRegions; a++ {
		ra := footprint(a, ramSize)
		if ra.End() < ra.Address {
			return fmt.Errorf("%w: %s at 0x%x with size 0x%x wraps the address space", ErrGeometry, a, ra.Address, ra.Size)
		}
		for b := a + 1; b < numRegions; b++ {
			if rb := footprint(b, ramSize); ra.Overlaps(rb) {
				return fmt.Errorf("%w: %s [0x%x-0x%x) overlaps %s [0x%x-0x%x)",
					ErrGeometry, a, ra.Address, ra.End(), b, rb.Address, rb.End())
			}
		}
	}
	return nil
}
