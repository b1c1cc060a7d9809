package riscv

import (
	"fmt"

	"github.com/tinyrange/tcnewman/internal/asm"
)

type emitter struct {
	code   []byte
	labels map[asm.Label]int

	// layout holds label offsets from the sizing pass. It is nil while sizing.
	layout map[asm.Label]int
	sizing bool
}

// EmitBytes implements asm.Context.
func (e *emitter) EmitBytes(data []byte) {
	e.code = append(e.code, data...)
}

// Offset implements asm.Context.
func (e *emitter) Offset() int { return len(e.code) }

// GetLabel implements asm.Context.
func (e *emitter) GetLabel(label asm.Label) (int, bool) {
	if e.sizing {
		if offset, ok := e.labels[label]; ok {
			return offset, true
		}
		// Placeholder for a forward reference; the final pass resolves it.
		return 0, true
	}
	offset, ok := e.layout[label]
	return offset, ok
}

// SetLabel implements asm.Context.
func (e *emitter) SetLabel(label asm.Label) error {
	if _, exists := e.labels[label]; exists {
		return fmt.Errorf("riscv: label %q already defined", label)
	}
	if !e.sizing && e.layout[label] != len(e.code) {
		return fmt.Errorf("riscv: label %q moved from 0x%x to 0x%x between passes",
			label, e.layout[label], len(e.code))
	}
	e.labels[label] = len(e.code)
	return nil
}

// EmitProgram lowers the provided fragment into an asm.Program. Code is laid
// out twice so fragments can refer to labels defined after them; fragments
// must therefore emit the same number of bytes in both passes.
func EmitProgram(frag asm.Fragment) (asm.Program, error) {
	if frag == nil {
		return asm.Program{}, fmt.Errorf("riscv: fragment must be non-nil")
	}

	sizing := &emitter{
		code:   make([]byte, 0, 64),
		labels: make(map[asm.Label]int),
		sizing: true,
	}
	if err := frag.Emit(sizing); err != nil {
		return asm.Program{}, err
	}

	em := &emitter{
		code:   make([]byte, 0, len(sizing.code)),
		labels: make(map[asm.Label]int),
		layout: sizing.labels,
	}
	if err := frag.Emit(em); err != nil {
		return asm.Program{}, err
	}
	if len(em.code) != len(sizing.code) {
		return asm.Program{}, fmt.Errorf("riscv: program size changed between passes (%d != %d)",
			len(sizing.code), len(em.code))
	}

	return asm.NewProgram(em.code), nil
}
