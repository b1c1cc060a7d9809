package pflash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tinyrange/tcnewman/internal/hv"
)

func TestBlockCount(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		want    uint32
		wantErr bool
	}{
		{name: "board flash", size: 0x2000000, want: 0x80},
		{name: "one sector", size: DefaultSectorSize, want: 1},
		{name: "partial sector", size: 0x2000001, wantErr: true},
		{name: "half sector", size: DefaultSectorSize / 2, wantErr: true},
		{name: "empty", size: 0, wantErr: true},
		{name: "too many blocks", size: (1 << 32) * DefaultSectorSize, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BlockCount(tt.size, DefaultSectorSize)
			if tt.wantErr {
				if !errors.Is(err, ErrGeometry) {
					t.Fatalf("BlockCount(0x%x) error = %v, want ErrGeometry", tt.size, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BlockCount(0x%x): %v", tt.size, err)
			}
			if got != tt.want {
				t.Errorf("BlockCount(0x%x) = 0x%x, want 0x%x", tt.size, got, tt.want)
			}
		})
	}
}

func TestMap(t *testing.T) {
	f, err := New(DefaultConfig("tc_newman.flash0"))
	if err != nil {
		t.Fatal(err)
	}
	as := hv.NewAddressSpace("system")
	defer as.Close()

	if err := f.Map(as, 0x20000000, 0x2000000); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if f.NumBlocks() != 0x80 {
		t.Errorf("NumBlocks = 0x%x, want 0x80", f.NumBlocks())
	}
	m, ok := as.Lookup(0x21ffffff)
	if !ok || m.Base != 0x20000000 || m.Region.Kind() != hv.RegionROMDevice || m.Region.Owner() != f {
		t.Fatalf("flash window not mapped: %+v", m)
	}
	if err := f.Map(as, 0x40000000, 0x2000000); err == nil {
		t.Errorf("second Map should fail")
	}
}

func TestMapRejectsPartialSector(t *testing.T) {
	f, err := New(DefaultConfig("flash"))
	if err != nil {
		t.Fatal(err)
	}
	as := hv.NewAddressSpace("system")
	if err := f.Map(as, 0x20000000, 0x2000001); !errors.Is(err, ErrGeometry) {
		t.Fatalf("Map error = %v, want ErrGeometry", err)
	}
	if f.Mapped() || len(as.Mappings()) != 0 {
		t.Errorf("rejected flash must not be mapped")
	}
}

func TestNewRejectsBadWidths(t *testing.T) {
	cfg := DefaultConfig("flash")
	cfg.BankWidth = 3
	if _, err := New(cfg); err == nil {
		t.Errorf("bank width 3 accepted")
	}
	cfg = DefaultConfig("flash")
	cfg.DeviceWidth = 8
	if _, err := New(cfg); err == nil {
		t.Errorf("device wider than bank accepted")
	}
}

func TestLoadImage(t *testing.T) {
	f, err := New(DefaultConfig("flash"))
	if err != nil {
		t.Fatal(err)
	}
	as := hv.NewAddressSpace("system")
	defer as.Close()
	if err := f.Map(as, 0x20000000, DefaultSectorSize); err != nil {
		t.Fatal(err)
	}

	if _, err := f.LoadImage(bytes.NewReader(bytes.Repeat([]byte{0xaa}, 8))); err != nil {
		t.Fatal(err)
	}
	image := []byte{0x6f, 0x00, 0x00, 0x00}
	n, err := f.LoadImage(bytes.NewReader(image))
	if err != nil || n != int64(len(image)) {
		t.Fatalf("LoadImage = %d, %v", n, err)
	}
	got := make([]byte, 8)
	if _, err := as.ReadAt(got, 0x20000000); err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, image...), 0xaa, 0xaa, 0xaa, 0xaa)
	if !bytes.Equal(got, want) {
		t.Errorf("flash contents = %x, want %x", got, want)
	}

	if _, err := f.LoadImage(bytes.NewReader(make([]byte, DefaultSectorSize+1))); err == nil {
		t.Errorf("oversized image accepted")
	}
}
