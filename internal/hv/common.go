package hv

import (
	"errors"
)

var (
	ErrRegionOverlap = errors.New("region overlaps an existing mapping")
	ErrUnmapped      = errors.New("address not mapped")
	ErrNoBacking     = errors.New("region has no backing memory")
	ErrDuplicateHart = errors.New("hart id already registered")
)

type CpuArchitecture string

const (
	ArchitectureInvalid CpuArchitecture = "invalid"
	ArchitectureRISCV32 CpuArchitecture = "riscv32"
	ArchitectureRISCV64 CpuArchitecture = "riscv64"
)

// XLEN returns the native register width in bits, or 0 for unknown architectures.
func (a CpuArchitecture) XLEN() int {
	switch a {
	case ArchitectureRISCV32:
		return 32
	case ArchitectureRISCV64:
		return 64
	default:
		return 0
	}
}

type MMIORegion struct {
	Address uint64
	Size    uint64
}

// End returns the first address after the region.
func (r MMIORegion) End() uint64 { return r.Address + r.Size }

// Overlaps reports whether the half-open intervals of r and o intersect.
func (r MMIORegion) Overlaps(o MMIORegion) bool {
	return regionsOverlap(r.Address, r.Size, o.Address, o.Size)
}

// Device is anything that owns an I/O window in an AddressSpace.
type Device interface {
	Name() string
}

// Hart is a single hardware thread known to a HartSpace.
type Hart interface {
	HartID() uint64
}

func regionsOverlap(baseA, sizeA, baseB, sizeB uint64) bool {
	if sizeA == 0 || sizeB == 0 {
		return false
	}
	return baseA < baseB+sizeB && baseB < baseA+sizeA
}
