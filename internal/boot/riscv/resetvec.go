// Package riscv synthesizes the boot ROM contents for RISC-V boards.
package riscv

import (
	"fmt"
	"math"

	"github.com/tinyrange/tcnewman/internal/asm"
	rv "github.com/tinyrange/tcnewman/internal/asm/riscv"
)

// ResetVectorWords is the length of the reset vector in 32-bit words.
const ResetVectorWords = 10

const (
	labelStart     asm.Label = "start"
	labelStartAddr asm.Label = "start_addr"
	labelFDTAddr   asm.Label = "fdt_laddr"
	labelFWDynamic asm.Label = "fw_dyn"
)

// ResetVector is the code a hart runs out of boot ROM before firmware:
//
//	1: auipc t0, %pcrel_hi(fw_dyn)
//	   addi  a2, t0, %pcrel_lo(1b)
//	   csrr  a0, mhartid
//	   ld    a1, fdt_laddr - 1b(t0)   (lw on 32-bit harts)
//	   ld    t0, start_addr - 1b(t0)  (lw on 32-bit harts)
//	   jr    t0
//	start_addr: .dword entry
//	fdt_laddr:  .dword fdt
//	fw_dyn:
type ResetVector struct {
	XLEN  int
	Entry uint64
	FDT   uint64

	program asm.Program
}

// NewResetVector assembles the reset vector for harts of the given register
// width. On 32-bit harts both addresses must fit in 32 bits and the high
// words are zero.
func NewResetVector(xlen int, entry, fdt uint64) (*ResetVector, error) {
	if xlen == 32 {
		if entry > math.MaxUint32 {
			return nil, fmt.Errorf("reset vector: entry 0x%x not addressable by a 32-bit hart", entry)
		}
		if fdt > math.MaxUint32 {
			return nil, fmt.Errorf("reset vector: fdt address 0x%x not addressable by a 32-bit hart", fdt)
		}
	}

	loadFDT, err := rv.LoadXLEN(xlen, rv.A1, rv.T0, labelStart, labelFDTAddr)
	if err != nil {
		return nil, fmt.Errorf("reset vector: %w", err)
	}
	loadEntry, err := rv.LoadXLEN(xlen, rv.T0, rv.T0, labelStart, labelStartAddr)
	if err != nil {
		return nil, fmt.Errorf("reset vector: %w", err)
	}

	prog, err := rv.EmitProgram(asm.Group{
		asm.MarkLabel(labelStart),
		rv.Auipc(rv.T0, 0),
		rv.AddiOffset(rv.A2, rv.T0, labelStart, labelFWDynamic),
		rv.Csrr(rv.A0, rv.CSRMhartid),
		loadFDT,
		loadEntry,
		rv.Jr(rv.T0),

		asm.MarkLabel(labelStartAddr),
		rv.Word(uint32(entry)),
		rv.Word(uint32(entry >> 32)),

		asm.MarkLabel(labelFDTAddr),
		rv.Word(uint32(fdt)),
		rv.Word(uint32(fdt >> 32)),

		asm.MarkLabel(labelFWDynamic),
	})
	if err != nil {
		return nil, fmt.Errorf("reset vector: %w", err)
	}
	if prog.Len() != ResetVectorWords*4 {
		return nil, fmt.Errorf("reset vector: assembled %d bytes, want %d", prog.Len(), ResetVectorWords*4)
	}

	return &ResetVector{XLEN: xlen, Entry: entry, FDT: fdt, program: prog}, nil
}

// Words returns the instruction and data words in ROM order.
func (v *ResetVector) Words() []uint32 { return v.program.Words() }

// Bytes returns the little-endian ROM image.
func (v *ResetVector) Bytes() []byte { return v.program.Bytes() }

// Size is the ROM footprint in bytes.
func (v *ResetVector) Size() uint64 { return uint64(v.program.Len()) }
