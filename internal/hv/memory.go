package hv

import (
	"fmt"
	"io"
	"math"
)

type RegionKind int

const (
	RegionRAM RegionKind = iota
	RegionROM
	// RegionROMDevice is read as memory but guest writes belong to the owning device.
	RegionROMDevice
	RegionIO
)

func (k RegionKind) String() string {
	switch k {
	case RegionRAM:
		return "ram"
	case RegionROM:
		return "rom"
	case RegionROMDevice:
		return "romd"
	case RegionIO:
		return "i/o"
	default:
		return fmt.Sprintf("RegionKind(%d)", int(k))
	}
}

// MemoryRegion is a named, sized window that can be mapped into an AddressSpace.
// RAM, ROM and ROM-device regions carry host backing memory; I/O regions only
// record the device that owns them.
type MemoryRegion struct {
	name  string
	kind  RegionKind
	size  uint64
	owner Device

	data    []byte
	release func() error
}

// NewRAM allocates a writable region of the given size.
func NewRAM(name string, size uint64) (*MemoryRegion, error) {
	return newBacked(name, RegionRAM, size, nil)
}

// NewROM allocates a region the guest can only read. Host-side loaders may
// still fill it through WriteAt.
func NewROM(name string, size uint64) (*MemoryRegion, error) {
	return newBacked(name, RegionROM, size, nil)
}

// NewROMDevice allocates a readable region whose writes are owned by dev,
// as used by NOR flash in read-array mode.
func NewROMDevice(name string, size uint64, dev Device) (*MemoryRegion, error) {
	if dev == nil {
		return nil, fmt.Errorf("memory: rom device %s has no owner", name)
	}
	return newBacked(name, RegionROMDevice, size, dev)
}

// NewIO describes an MMIO window owned by dev.
func NewIO(name string, size uint64, dev Device) (*MemoryRegion, error) {
	if size == 0 {
		return nil, fmt.Errorf("memory: i/o region %s has zero size", name)
	}
	if dev == nil {
		return nil, fmt.Errorf("memory: i/o region %s has no owner", name)
	}
	return &MemoryRegion{name: name, kind: RegionIO, size: size, owner: dev}, nil
}

func newBacked(name string, kind RegionKind, size uint64, dev Device) (*MemoryRegion, error) {
	if name == "" {
		return nil, fmt.Errorf("memory: region name is empty")
	}
	if size == 0 {
		return nil, fmt.Errorf("memory: region %s has zero size", name)
	}
	if size > math.MaxInt {
		return nil, fmt.Errorf("memory: region %s size 0x%x exceeds host limits", name, size)
	}
	data, release, err := allocBacking(int(size))
	if err != nil {
		return nil, fmt.Errorf("memory: allocate %s (0x%x bytes): %w", name, size, err)
	}
	return &MemoryRegion{
		name:    name,
		kind:    kind,
		size:    size,
		owner:   dev,
		data:    data,
		release: release,
	}, nil
}

func (m *MemoryRegion) Name() string     { return m.name }
func (m *MemoryRegion) Kind() RegionKind { return m.kind }
func (m *MemoryRegion) Size() uint64     { return m.size }
func (m *MemoryRegion) Owner() Device    { return m.owner }

// ReadOnly reports whether guest stores are rejected by the region itself.
func (m *MemoryRegion) ReadOnly() bool {
	return m.kind == RegionROM || m.kind == RegionROMDevice
}

// Backed reports whether the region has host memory behind it.
func (m *MemoryRegion) Backed() bool { return m.data != nil }

// ReadAt implements io.ReaderAt over the region's backing memory.
func (m *MemoryRegion) ReadAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, fmt.Errorf("memory: read %s: %w", m.name, ErrNoBacking)
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt for host-side loaders. The write must fit
// entirely inside the region.
func (m *MemoryRegion) WriteAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, fmt.Errorf("memory: write %s: %w", m.name, ErrNoBacking)
	}
	if off < 0 || uint64(off)+uint64(len(p)) > m.size {
		return 0, fmt.Errorf("memory: write of %d bytes at offset 0x%x overflows %s (size 0x%x)",
			len(p), off, m.name, m.size)
	}
	return copy(m.data[off:], p), nil
}

// Close releases the backing memory. The region must not be used afterwards.
func (m *MemoryRegion) Close() error {
	if m.release == nil {
		return nil
	}
	err := m.release()
	m.release = nil
	m.data = nil
	return err
}

var (
	_ io.ReaderAt = (*MemoryRegion)(nil)
	_ io.WriterAt = (*MemoryRegion)(nil)
)
