package serial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tinyrange/tcnewman/internal/chipset"
	"github.com/tinyrange/tcnewman/internal/hv"
)

type testIRQLine struct {
	events []bool
}

func (t *testIRQLine) SetLevel(level bool) { t.events = append(t.events, level) }
func (t *testIRQLine) PulseInterrupt()     { t.SetLevel(true); t.SetLevel(false) }

func TestNewMMMapsWindow(t *testing.T) {
	as := hv.NewAddressSpace("system")
	irq := &testIRQLine{}
	var backend bytes.Buffer

	u, err := NewMM(as, "serial0", Config{Base: 0x10000000, BaudBase: DefaultBaudBase}, irq, &backend)
	if err != nil {
		t.Fatalf("NewMM: %v", err)
	}
	if u.Region() != (hv.MMIORegion{Address: 0x10000000, Size: MMIOSize}) {
		t.Errorf("unexpected region %+v", u.Region())
	}
	m, ok := as.Lookup(0x100000ff)
	if !ok || m.Region.Owner() != u {
		t.Fatalf("uart window not mapped")
	}
	if _, ok := as.Lookup(0x10000100); ok {
		t.Errorf("window should end at 0x10000100")
	}

	u.IRQ().PulseInterrupt()
	if len(irq.events) != 2 {
		t.Errorf("irq line not connected")
	}
	if u.Backend() != &backend {
		t.Errorf("backend not retained")
	}
}

func TestNewMMValidation(t *testing.T) {
	as := hv.NewAddressSpace("system")
	if _, err := NewMM(as, "s", Config{Base: 0, BaudBase: 0}, nil, nil); err == nil {
		t.Errorf("zero baud base should fail")
	}
	if _, err := NewMM(as, "s", Config{Base: 0, BaudBase: DefaultBaudBase, RegShift: 6}, nil, nil); err == nil {
		t.Errorf("registers beyond window should fail")
	}

	u, err := NewMM(as, "a", Config{Base: 0x1000, BaudBase: DefaultBaudBase}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	u.IRQ().SetLevel(true) // detached line must not panic
	if _, err := NewMM(as, "b", Config{Base: 0x1080, BaudBase: DefaultBaudBase}, chipset.LineInterruptDetached(), nil); !errors.Is(err, hv.ErrRegionOverlap) {
		t.Errorf("expected overlap, got %v", err)
	}
}
