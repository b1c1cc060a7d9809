package riscv

import (
	"testing"

	"github.com/tinyrange/tcnewman/internal/asm"
)

// reaching places insn at label "from" and pads so that label "to" sits
// offset bytes later. The instruction is the first word of the program.
func reaching(insn func(from, to asm.Label) asm.Fragment, offset int) asm.Fragment {
	g := asm.Group{asm.MarkLabel("from"), insn("from", "to")}
	for i := 4; i < offset; i += 4 {
		g = append(g, Word(0))
	}
	return append(g, asm.MarkLabel("to"))
}

func loadXLEN(t *testing.T, xlen int, rd, base asm.Variable) func(from, to asm.Label) asm.Fragment {
	t.Helper()
	return func(from, to asm.Label) asm.Fragment {
		frag, err := LoadXLEN(xlen, rd, base, from, to)
		if err != nil {
			t.Fatal(err)
		}
		return frag
	}
}

func addiTo(rd, rs1 asm.Variable) func(from, to asm.Label) asm.Fragment {
	return func(from, to asm.Label) asm.Fragment { return AddiOffset(rd, rs1, from, to) }
}

func TestEncodings(t *testing.T) {
	tests := []struct {
		name string
		frag asm.Fragment
		want uint32
	}{
		{"auipc t0, 0", Auipc(T0, 0), 0x00000297},
		{"addi a2, t0, 40", reaching(addiTo(A2, T0), 40), 0x02828613},
		{"csrr a0, mhartid", Csrr(A0, CSRMhartid), 0xf1402573},
		{"ld a1, 32(t0)", reaching(loadXLEN(t, 64, A1, T0), 32), 0x0202b583},
		{"ld t0, 24(t0)", reaching(loadXLEN(t, 64, T0, T0), 24), 0x0182b283},
		{"lw a1, 32(t0)", reaching(loadXLEN(t, 32, A1, T0), 32), 0x0202a583},
		{"lw t0, 24(t0)", reaching(loadXLEN(t, 32, T0, T0), 24), 0x0182a283},
		{"jr t0", Jr(T0), 0x00028067},
		{".word", Word(0xdeadbeef), 0xdeadbeef},
	}

	for _, tc := range tests {
		prog, err := EmitProgram(tc.frag)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		words := prog.Words()
		if len(words) == 0 || words[0] != tc.want {
			t.Errorf("%s: expected 0x%08x, got %x", tc.name, tc.want, words)
		}
	}
}

func TestBackwardOffset(t *testing.T) {
	// addi a0, a0, -4: "to" precedes "from".
	prog, err := EmitProgram(asm.Group{
		asm.MarkLabel("to"),
		Word(0),
		asm.MarkLabel("from"),
		AddiOffset(A0, A0, "from", "to"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := prog.Words()[1]; got != 0xffc50513 {
		t.Errorf("expected 0xffc50513, got 0x%08x", got)
	}
}

func TestLittleEndianBytes(t *testing.T) {
	prog, err := EmitProgram(Auipc(T0, 0))
	if err != nil {
		t.Fatal(err)
	}
	got := prog.Bytes()
	want := []byte{0x97, 0x02, 0x00, 0x00}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %x, got %x", want, got)
		}
	}
}

func TestForwardLabelReferences(t *testing.T) {
	load, err := LoadXLEN(64, A1, T0, "start", "data")
	if err != nil {
		t.Fatal(err)
	}
	prog, err := EmitProgram(asm.Group{
		asm.MarkLabel("start"),
		Auipc(T0, 0),
		AddiOffset(A2, T0, "start", "end"),
		load,
		asm.MarkLabel("data"),
		Word(1),
		Word(0),
		asm.MarkLabel("end"),
	})
	if err != nil {
		t.Fatalf("EmitProgram: %v", err)
	}
	words := prog.Words()
	if words[1] != 0x01428613 { // addi a2, t0, 20
		t.Errorf("addi: got 0x%08x", words[1])
	}
	if words[2] != 0x00c2b583 { // ld a1, 12(t0)
		t.Errorf("ld: got 0x%08x", words[2])
	}
}

func TestLabelErrors(t *testing.T) {
	if _, err := EmitProgram(asm.Group{asm.MarkLabel("a"), asm.MarkLabel("a")}); err == nil {
		t.Errorf("expected duplicate label error")
	}
	if _, err := EmitProgram(AddiOffset(A0, A0, "missing", "also-missing")); err == nil {
		t.Errorf("expected undefined label error")
	}
	if _, err := LoadXLEN(128, A0, A0, "a", "b"); err == nil {
		t.Errorf("expected width error")
	}
	if _, err := EmitProgram(reaching(addiTo(A0, A0), 2048)); err == nil {
		t.Errorf("expected immediate range error")
	}
}
