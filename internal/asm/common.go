package asm

import (
	"encoding/binary"
)

type Variable int

type Context interface {
	EmitBytes(data []byte)

	// Offset returns the number of bytes emitted so far.
	Offset() int

	// GetLabel resolves a label to its byte offset. Contexts that lay code
	// out in more than one pass may resolve forward references.
	GetLabel(label Label) (int, bool)
	SetLabel(label Label) error
}

type Fragment interface {
	Emit(ctx Context) error
}

type Group []Fragment

var (
	_ Fragment = Group{}
)

func (g Group) Emit(ctx Context) error {
	for _, frag := range g {
		if err := frag.Emit(ctx); err != nil {
			return err
		}
	}
	return nil
}

type Label string

type labelDef struct {
	label Label
}

func MarkLabel(label Label) Fragment {
	return &labelDef{label: label}
}

func (l *labelDef) Emit(ctx Context) error {
	return ctx.SetLabel(l.label)
}

type Program struct {
	code []byte
}

func (p Program) Bytes() []byte {
	return append([]byte(nil), p.code...)
}

func (p Program) Len() int { return len(p.code) }

// Words splits the program into little-endian 32-bit words. A trailing
// partial word is zero padded.
func (p Program) Words() []uint32 {
	words := make([]uint32, (len(p.code)+3)/4)
	for i := range words {
		var buf [4]byte
		copy(buf[:], p.code[i*4:])
		words[i] = binary.LittleEndian.Uint32(buf[:])
	}
	return words
}

func NewProgram(code []byte) Program {
	return Program{code: append([]byte(nil), code...)}
}
