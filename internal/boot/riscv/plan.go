package riscv

import (
	"fmt"
	"io"
)

// BootPlan describes where a board starts executing and what it placed in
// guest memory to get there.
type BootPlan struct {
	ROMBase     uint64
	ROMSize     uint64
	EntryPoint  uint64
	DTBBase     uint64
	ResetVector *ResetVector
}

// PrepareROM assembles the reset vector for entry and fdt and installs it
// at the base of the boot ROM through mem. The vector must fit in romSize.
func PrepareROM(mem io.WriterAt, xlen int, romBase, romSize, entry, fdt uint64) (*BootPlan, error) {
	if mem == nil {
		return nil, fmt.Errorf("boot: guest memory is nil")
	}

	vec, err := NewResetVector(xlen, entry, fdt)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	if vec.Size() > romSize {
		return nil, fmt.Errorf("boot: reset vector (0x%x bytes) does not fit in rom (0x%x bytes)", vec.Size(), romSize)
	}

	if _, err := mem.WriteAt(vec.Bytes(), int64(romBase)); err != nil {
		return nil, fmt.Errorf("boot: write reset vector at 0x%x: %w", romBase, err)
	}

	return &BootPlan{
		ROMBase:     romBase,
		ROMSize:     romSize,
		EntryPoint:  entry,
		DTBBase:     fdt,
		ResetVector: vec,
	}, nil
}
