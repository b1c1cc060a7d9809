// Package pflash implements construction of CFI (Intel command set) parallel
// NOR flash: geometry validation, block-count derivation and mapping of the
// read-array window.
package pflash

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tinyrange/tcnewman/internal/hv"
)

// DefaultSectorSize is the erase block size of the board flash.
const DefaultSectorSize = 256 * 1024

// ErrGeometry reports a flash window that does not divide into whole blocks.
var ErrGeometry = errors.New("invalid flash geometry")

// Config holds the device geometry. The block count is derived when the
// device is mapped.
type Config struct {
	Name        string
	SectorSize  uint64
	BankWidth   uint8
	DeviceWidth uint8
	BigEndian   bool
	ID          [4]uint16
}

// DefaultConfig returns the geometry used by the board: 256 KiB sectors on a
// 4 byte bank of 2 byte devices, little-endian, Intel 28F128 identifiers.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		SectorSize:  DefaultSectorSize,
		BankWidth:   4,
		DeviceWidth: 2,
		ID:          [4]uint16{0x89, 0x18, 0x00, 0x00},
	}
}

// Flash is a CFI01 NOR flash device.
type Flash struct {
	cfg Config

	numBlocks uint32
	base      uint64
	region    *hv.MemoryRegion
}

// New validates the geometry. The device has no storage until Map.
func New(cfg Config) (*Flash, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("pflash: name is empty")
	}
	if cfg.SectorSize == 0 {
		return nil, fmt.Errorf("pflash %s: %w: sector size is zero", cfg.Name, ErrGeometry)
	}
	switch cfg.BankWidth {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("pflash %s: %w: bank width %d", cfg.Name, ErrGeometry, cfg.BankWidth)
	}
	if cfg.DeviceWidth != 0 && (cfg.DeviceWidth > cfg.BankWidth || cfg.BankWidth%cfg.DeviceWidth != 0) {
		return nil, fmt.Errorf("pflash %s: %w: device width %d does not divide bank width %d",
			cfg.Name, ErrGeometry, cfg.DeviceWidth, cfg.BankWidth)
	}
	return &Flash{cfg: cfg}, nil
}

// BlockCount returns size / sectorSize, failing unless size is a whole,
// non-zero number of sectors that fits in 32 bits.
func BlockCount(size, sectorSize uint64) (uint32, error) {
	if sectorSize == 0 {
		return 0, fmt.Errorf("%w: sector size is zero", ErrGeometry)
	}
	if size == 0 || size%sectorSize != 0 {
		return 0, fmt.Errorf("%w: size 0x%x is not a multiple of sector size 0x%x", ErrGeometry, size, sectorSize)
	}
	blocks := size / sectorSize
	if blocks >= math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d blocks exceed the device limit", ErrGeometry, blocks)
	}
	return uint32(blocks), nil
}

// Map derives the block count from size, allocates the flash storage and
// maps it at base.
func (f *Flash) Map(as *hv.AddressSpace, base, size uint64) error {
	if f.region != nil {
		return fmt.Errorf("pflash %s: already mapped at 0x%x", f.cfg.Name, f.base)
	}
	blocks, err := BlockCount(size, f.cfg.SectorSize)
	if err != nil {
		return fmt.Errorf("pflash %s: %w", f.cfg.Name, err)
	}

	region, err := hv.NewROMDevice(f.cfg.Name, size, f)
	if err != nil {
		return fmt.Errorf("pflash %s: %w", f.cfg.Name, err)
	}
	if err := as.Map(base, region); err != nil {
		region.Close()
		return fmt.Errorf("pflash %s: %w", f.cfg.Name, err)
	}

	f.numBlocks = blocks
	f.base = base
	f.region = region
	return nil
}

// LoadImage copies a raw image into the start of the flash array. The image
// may be shorter than the device; bytes past it are left as they were.
func (f *Flash) LoadImage(r io.Reader) (int64, error) {
	if f.region == nil {
		return 0, fmt.Errorf("pflash %s: not mapped", f.cfg.Name)
	}
	limit := int64(f.region.Size())
	w := io.NewOffsetWriter(f.region, 0)
	n, err := io.Copy(w, io.LimitReader(r, limit))
	if err != nil {
		return n, fmt.Errorf("pflash %s: load image: %w", f.cfg.Name, err)
	}
	if n == limit {
		var extra [1]byte
		if m, _ := r.Read(extra[:]); m > 0 {
			return n, fmt.Errorf("pflash %s: image larger than device (0x%x bytes)", f.cfg.Name, limit)
		}
	}
	return n, nil
}

func (f *Flash) Name() string      { return f.cfg.Name }
func (f *Flash) Config() Config    { return f.cfg }
func (f *Flash) NumBlocks() uint32 { return f.numBlocks }
func (f *Flash) Base() uint64      { return f.base }
func (f *Flash) Mapped() bool      { return f.region != nil }

// Size returns the mapped size, or 0 before Map.
func (f *Flash) Size() uint64 {
	if f.region == nil {
		return 0
	}
	return f.region.Size()
}

// ReadAt reads the flash array in read-array mode.
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if f.region == nil {
		return 0, fmt.Errorf("pflash %s: not mapped", f.cfg.Name)
	}
	return f.region.ReadAt(p, off)
}

var _ hv.Device = (*Flash)(nil)
