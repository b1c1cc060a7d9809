// Package clint implements construction of the core-local interruptor: the
// per-socket device that gives every hart a software interrupt and a
// machine timer.
package clint

import (
	"fmt"

	"github.com/tinyrange/tcnewman/internal/chipset"
	"github.com/tinyrange/tcnewman/internal/hv"
	"github.com/tinyrange/tcnewman/internal/hv/riscv/hart"
)

// Register layout defaults.
const (
	DefaultSize         = 0x10000
	DefaultTimecmpBase  = 0x4000 // mtimecmp, 8 bytes per hart
	DefaultTimeBase     = 0xbff8 // mtime
	DefaultTimebaseFreq = 10_000_000

	// SoftwareSize is the span of the msip block, 4 bytes per hart.
	SoftwareSize = 0x4000

	MaxHarts = 4095
)

// Config describes one CLINT instance.
type Config struct {
	Base         uint64
	Size         uint64
	HartIDBase   uint64
	NumHarts     int
	TimecmpBase  uint64
	TimeBase     uint64
	TimebaseFreq uint64
}

// DefaultConfig returns the standard layout for numHarts harts starting at
// hartIDBase.
func DefaultConfig(base, hartIDBase uint64, numHarts int) Config {
	return Config{
		Base:         base,
		Size:         DefaultSize,
		HartIDBase:   hartIDBase,
		NumHarts:     numHarts,
		TimecmpBase:  DefaultTimecmpBase,
		TimeBase:     DefaultTimeBase,
		TimebaseFreq: DefaultTimebaseFreq,
	}
}

func (c Config) validate() error {
	if c.NumHarts < 1 || c.NumHarts > MaxHarts {
		return fmt.Errorf("num-harts %d out of range [1, %d]", c.NumHarts, MaxHarts)
	}
	if c.Size == 0 {
		return fmt.Errorf("size is zero")
	}
	if uint64(c.NumHarts)*4 > SoftwareSize || SoftwareSize > c.TimecmpBase {
		return fmt.Errorf("msip block for %d harts overlaps mtimecmp at 0x%x", c.NumHarts, c.TimecmpBase)
	}
	if c.TimecmpBase+uint64(c.NumHarts)*8 > c.TimeBase {
		return fmt.Errorf("mtimecmp block for %d harts overlaps mtime at 0x%x", c.NumHarts, c.TimeBase)
	}
	if c.TimeBase+8 > c.Size {
		return fmt.Errorf("mtime at 0x%x lies outside the 0x%x byte window", c.TimeBase, c.Size)
	}
	if c.TimebaseFreq == 0 {
		return fmt.Errorf("timebase frequency is zero")
	}
	return nil
}

// CLINT is a realized core-local interruptor.
type CLINT struct {
	name string
	cfg  Config

	msip []chipset.LineInterrupt
	mtip []chipset.LineInterrupt
}

// New validates cfg, connects the software and timer interrupt outputs to
// the harts [HartIDBase, HartIDBase+NumHarts) found in harts and maps the
// register window into as.
func New(as *hv.AddressSpace, harts *hv.HartSpace, name string, cfg Config) (*CLINT, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("clint %s: %w", name, err)
	}

	c := &CLINT{
		name: name,
		cfg:  cfg,
		msip: make([]chipset.LineInterrupt, cfg.NumHarts),
		mtip: make([]chipset.LineInterrupt, cfg.NumHarts),
	}

	for i := 0; i < cfg.NumHarts; i++ {
		h, err := hart.Resolve(harts, cfg.HartIDBase+uint64(i))
		if err != nil {
			return nil, fmt.Errorf("clint %s: %w", name, err)
		}
		if c.msip[i], err = h.Input(hart.IRQMSoftware); err != nil {
			return nil, fmt.Errorf("clint %s: %w", name, err)
		}
		if c.mtip[i], err = h.Input(hart.IRQMTimer); err != nil {
			return nil, fmt.Errorf("clint %s: %w", name, err)
		}
	}

	region, err := hv.NewIO(name, cfg.Size, c)
	if err != nil {
		return nil, fmt.Errorf("clint %s: %w", name, err)
	}
	if err := as.Map(cfg.Base, region); err != nil {
		return nil, fmt.Errorf("clint %s: %w", name, err)
	}
	return c, nil
}

func (c *CLINT) Name() string   { return c.name }
func (c *CLINT) Config() Config { return c.cfg }

// Region returns the register window in the physical address space.
func (c *CLINT) Region() hv.MMIORegion {
	return hv.MMIORegion{Address: c.cfg.Base, Size: c.cfg.Size}
}

// SoftwareInterrupt returns the msip output wired to the i-th hart.
func (c *CLINT) SoftwareInterrupt(i int) chipset.LineInterrupt { return c.msip[i] }

// TimerInterrupt returns the mtip output wired to the i-th hart.
func (c *CLINT) TimerInterrupt(i int) chipset.LineInterrupt { return c.mtip[i] }

var _ hv.Device = (*CLINT)(nil)
