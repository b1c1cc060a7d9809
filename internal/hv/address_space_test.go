package hv

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type testDevice string

func (d testDevice) Name() string { return string(d) }

func mustRAM(t *testing.T, name string, size uint64) *MemoryRegion {
	t.Helper()
	r, err := NewRAM(name, size)
	if err != nil {
		t.Fatalf("NewRAM(%s): %v", name, err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestMapRejectsOverlap(t *testing.T) {
	as := NewAddressSpace("test")

	if err := as.Map(0x1000, mustRAM(t, "a", 0x1000)); err != nil {
		t.Fatalf("map a: %v", err)
	}

	tests := []struct {
		name    string
		base    uint64
		size    uint64
		overlap bool
	}{
		{"below", 0x0, 0x1000, false},
		{"above", 0x2000, 0x1000, false},
		{"inside", 0x1800, 0x100, true},
		{"straddle-start", 0x0800, 0x1000, true},
		{"straddle-end", 0x1fff, 0x10, true},
		{"cover", 0x0, 0x4000, true},
	}

	for _, tc := range tests {
		scratch := NewAddressSpace("scratch")
		if err := scratch.Map(0x1000, mustRAM(t, "a-"+tc.name, 0x1000)); err != nil {
			t.Fatalf("%s: map base: %v", tc.name, err)
		}
		err := scratch.Map(tc.base, mustRAM(t, tc.name, tc.size))
		if tc.overlap && !errors.Is(err, ErrRegionOverlap) {
			t.Errorf("%s: expected overlap error, got %v", tc.name, err)
		}
		if !tc.overlap && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestMapRejectsDuplicateNameAndWrap(t *testing.T) {
	as := NewAddressSpace("test")
	r := mustRAM(t, "dup", 0x100)
	if err := as.Map(0x0, r); err != nil {
		t.Fatalf("map: %v", err)
	}
	if err := as.Map(0x1000, r); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
	if err := as.Map(^uint64(0)-0x10, mustRAM(t, "wrap", 0x100)); err == nil {
		t.Fatalf("expected wrapping region to be rejected")
	}
}

func TestMappingsSortedAndLookup(t *testing.T) {
	as := NewAddressSpace("test")
	for _, m := range []struct {
		name string
		base uint64
	}{{"high", 0x8000}, {"low", 0x0}, {"mid", 0x4000}} {
		if err := as.Map(m.base, mustRAM(t, m.name, 0x1000)); err != nil {
			t.Fatalf("map %s: %v", m.name, err)
		}
	}

	got := as.Mappings()
	want := []string{"low", "mid", "high"}
	for i, m := range got {
		if m.Region.Name() != want[i] {
			t.Errorf("mapping %d: expected %s, got %s", i, want[i], m.Region.Name())
		}
	}

	if m, ok := as.Lookup(0x4fff); !ok || m.Region.Name() != "mid" {
		t.Errorf("Lookup(0x4fff) = %v, %v", m, ok)
	}
	if _, ok := as.Lookup(0x5000); ok {
		t.Errorf("Lookup(0x5000) should miss")
	}
}

func TestLoaderWritesReachROM(t *testing.T) {
	as := NewAddressSpace("test")
	rom, err := NewROM("rom", 0x100)
	if err != nil {
		t.Fatalf("NewROM: %v", err)
	}
	defer rom.Close()
	if !rom.ReadOnly() {
		t.Fatalf("rom should be read-only")
	}
	if err := as.Map(0x0, rom); err != nil {
		t.Fatalf("map: %v", err)
	}

	blob := []byte{0x97, 0x02, 0x00, 0x00}
	if _, err := as.WriteAt(blob, 0x10); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, 4)
	if _, err := as.ReadAt(got, 0x10); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("expected %x, got %x", blob, got)
	}
}

func TestAccessAcrossMappings(t *testing.T) {
	as := NewAddressSpace("test")
	if err := as.Map(0x0, mustRAM(t, "a", 0x10)); err != nil {
		t.Fatal(err)
	}
	if err := as.Map(0x10, mustRAM(t, "b", 0x10)); err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0xaa}, 0x18)
	if n, err := as.WriteAt(data, 0x4); err != nil || n != len(data) {
		t.Fatalf("WriteAt = %d, %v", n, err)
	}

	if _, err := as.ReadAt(make([]byte, 0x10), 0x18); !errors.Is(err, ErrUnmapped) {
		t.Errorf("expected ErrUnmapped reading past the end, got %v", err)
	}
}

func TestIORegionHasNoBacking(t *testing.T) {
	as := NewAddressSpace("test")
	io, err := NewIO("uart", 0x100, testDevice("uart"))
	if err != nil {
		t.Fatalf("NewIO: %v", err)
	}
	if err := as.Map(0x1000_0000, io); err != nil {
		t.Fatalf("map: %v", err)
	}
	if _, err := as.ReadAt(make([]byte, 1), 0x1000_0000); !errors.Is(err, ErrNoBacking) {
		t.Errorf("expected ErrNoBacking, got %v", err)
	}
}

func TestDump(t *testing.T) {
	as := NewAddressSpace("system")
	if err := as.Map(0x8000_0000, mustRAM(t, "dram", 0x1000)); err != nil {
		t.Fatal(err)
	}
	var buf strings.Builder
	if err := as.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0000000080000000-0000000080000fff (prio 0, ram): dram") {
		t.Errorf("unexpected dump:\n%s", buf.String())
	}
}

type testHart uint64

func (h testHart) HartID() uint64 { return uint64(h) }

func TestHartSpace(t *testing.T) {
	s := NewHartSpace()
	for _, id := range []uint64{3, 1, 2} {
		if err := s.Register(testHart(id)); err != nil {
			t.Fatalf("register %d: %v", id, err)
		}
	}
	if err := s.Register(testHart(2)); !errors.Is(err, ErrDuplicateHart) {
		t.Fatalf("expected ErrDuplicateHart, got %v", err)
	}
	ids := s.IDs()
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Errorf("unexpected ids %v", ids)
	}
	if _, ok := s.Lookup(4); ok {
		t.Errorf("Lookup(4) should miss")
	}
}
