package riscv

import (
	"encoding/binary"
	"fmt"

	"github.com/tinyrange/tcnewman/internal/asm"
)

const (
	X0 asm.Variable = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29
	X30
	X31
)

// ABI register names.
const (
	T0 = X5
	A0 = X10
	A1 = X11
	A2 = X12
)

// CSR numbers.
const (
	CSRMhartid uint16 = 0xf14
)

const (
	opLoad   = 0x03
	opOpImm  = 0x13
	opAuipc  = 0x17
	opJalr   = 0x67
	opSystem = 0x73

	f3LW   = 2
	f3LD   = 3
	f3CSRS = 2
)

type addImmediate struct {
	rd  asm.Variable
	rs1 asm.Variable
	imm int32
}

type addLabelOffset struct {
	rd       asm.Variable
	rs1      asm.Variable
	from, to asm.Label
}

// AddiOffset emits ADDI rd, rs1, (to - from). Paired with an AUIPC at from
// this forms a %pcrel_lo reference to to.
func AddiOffset(rd, rs1 asm.Variable, from, to asm.Label) asm.Fragment {
	return addLabelOffset{rd: rd, rs1: rs1, from: from, to: to}
}

type auipc struct {
	rd  asm.Variable
	imm int32
}

// Auipc emits AUIPC rd, imm (imm is the upper 20 bits).
func Auipc(rd asm.Variable, imm int32) asm.Fragment {
	return auipc{rd: rd, imm: imm}
}

type csrRead struct {
	rd  asm.Variable
	csr uint16
}

// Csrr emits CSRRS rd, csr, x0.
func Csrr(rd asm.Variable, csr uint16) asm.Fragment {
	return csrRead{rd: rd, csr: csr}
}

type load struct {
	rd  asm.Variable
	rs1 asm.Variable
	imm int32
	f3  uint32
}

type loadLabel struct {
	rd       asm.Variable
	rs1      asm.Variable
	from, to asm.Label
	f3       uint32
}

// LoadXLEN loads a register-width value from [rs1 + (to - from)]: LW for
// 32-bit harts and LD for 64-bit harts.
func LoadXLEN(xlen int, rd, base asm.Variable, from, to asm.Label) (asm.Fragment, error) {
	switch xlen {
	case 32:
		return loadLabel{rd: rd, rs1: base, from: from, to: to, f3: f3LW}, nil
	case 64:
		return loadLabel{rd: rd, rs1: base, from: from, to: to, f3: f3LD}, nil
	default:
		return nil, fmt.Errorf("riscv: unsupported register width %d", xlen)
	}
}

type jumpRegister struct {
	rs1 asm.Variable
}

// Jr emits JALR x0, 0(rs1).
func Jr(rs1 asm.Variable) asm.Fragment {
	return jumpRegister{rs1: rs1}
}

type word uint32

// Word emits a raw little-endian 32-bit value.
func Word(v uint32) asm.Fragment { return word(v) }

func (l addImmediate) Emit(ctx asm.Context) error {
	insn, err := encodeI(l.imm, uint32(l.rs1), 0, uint32(l.rd), opOpImm)
	if err != nil {
		return err
	}
	emitInsn(ctx, insn)
	return nil
}

func (l addLabelOffset) Emit(ctx asm.Context) error {
	imm, err := labelDistance(ctx, l.from, l.to)
	if err != nil {
		return err
	}
	return addImmediate{rd: l.rd, rs1: l.rs1, imm: imm}.Emit(ctx)
}

func (a auipc) Emit(ctx asm.Context) error {
	insn, err := encodeU(a.imm, uint32(a.rd), opAuipc)
	if err != nil {
		return err
	}
	emitInsn(ctx, insn)
	return nil
}

func (c csrRead) Emit(ctx asm.Context) error {
	if c.csr > 0xfff {
		return fmt.Errorf("riscv: csr 0x%x out of range", c.csr)
	}
	emitInsn(ctx, uint32(c.csr)<<20|uint32(X0)<<15|f3CSRS<<12|uint32(c.rd)<<7|opSystem)
	return nil
}

func (l load) Emit(ctx asm.Context) error {
	insn, err := encodeI(l.imm, uint32(l.rs1), l.f3, uint32(l.rd), opLoad)
	if err != nil {
		return err
	}
	emitInsn(ctx, insn)
	return nil
}

func (l loadLabel) Emit(ctx asm.Context) error {
	imm, err := labelDistance(ctx, l.from, l.to)
	if err != nil {
		return err
	}
	return load{rd: l.rd, rs1: l.rs1, imm: imm, f3: l.f3}.Emit(ctx)
}

func (j jumpRegister) Emit(ctx asm.Context) error {
	insn, err := encodeI(0, uint32(j.rs1), 0, uint32(X0), opJalr)
	if err != nil {
		return err
	}
	emitInsn(ctx, insn)
	return nil
}

func (w word) Emit(ctx asm.Context) error {
	emitInsn(ctx, uint32(w))
	return nil
}

func labelDistance(ctx asm.Context, from, to asm.Label) (int32, error) {
	start, ok := ctx.GetLabel(from)
	if !ok {
		return 0, fmt.Errorf("riscv: undefined label %q", from)
	}
	end, ok := ctx.GetLabel(to)
	if !ok {
		return 0, fmt.Errorf("riscv: undefined label %q", to)
	}
	return int32(end - start), nil
}

func emitInsn(ctx asm.Context, insn uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], insn)
	ctx.EmitBytes(buf[:])
}

func encodeI(imm int32, rs1 uint32, funct3 uint32, rd uint32, opcode uint32) (uint32, error) {
	if imm < -2048 || imm > 2047 {
		return 0, fmt.Errorf("riscv: immediate %d out of range for I-type", imm)
	}
	uimm := uint32(imm) & 0xfff
	return (uimm << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode, nil
}

func encodeU(imm int32, rd uint32, opcode uint32) (uint32, error) {
	if imm < -(1<<19) || imm >= 1<<20 {
		return 0, fmt.Errorf("riscv: immediate %d out of range for U-type", imm)
	}
	uimm := uint32(imm) & 0xfffff
	return (uimm << 12) | (rd << 7) | opcode, nil
}
