// Package serial implements construction of memory-mapped 16550-compatible
// serial controllers.
package serial

import (
	"fmt"
	"io"

	"github.com/tinyrange/tcnewman/internal/chipset"
	"github.com/tinyrange/tcnewman/internal/hv"
)

const (
	// DefaultBaudBase is the reference clock divided by 16 that guests use to
	// compute divisor latches.
	DefaultBaudBase = 399193

	// MMIOSize is the window reserved for one controller.
	MMIOSize = 0x100

	registerCount = 8
)

// Config describes one memory-mapped UART.
type Config struct {
	Base      uint64
	Size      uint64
	RegShift  uint
	BaudBase  uint32
	BigEndian bool
}

// UART is a 16550-compatible serial controller mapped into an address space.
type UART struct {
	name    string
	cfg     Config
	irq     chipset.LineInterrupt
	backend io.ReadWriter
}

// NewMM creates a UART at cfg.Base in as. Its interrupt output drives irq; a
// nil backend behaves like a disconnected line.
func NewMM(as *hv.AddressSpace, name string, cfg Config, irq chipset.LineInterrupt, backend io.ReadWriter) (*UART, error) {
	if cfg.Size == 0 {
		cfg.Size = MMIOSize
	}
	if cfg.BaudBase == 0 {
		return nil, fmt.Errorf("serial %s: baud base is zero", name)
	}
	if span := uint64(registerCount) << cfg.RegShift; span > cfg.Size {
		return nil, fmt.Errorf("serial %s: %d registers at shift %d need 0x%x bytes, window is 0x%x",
			name, registerCount, cfg.RegShift, span, cfg.Size)
	}
	if irq == nil {
		irq = chipset.LineInterruptDetached()
	}

	u := &UART{name: name, cfg: cfg, irq: irq, backend: backend}

	region, err := hv.NewIO(name, cfg.Size, u)
	if err != nil {
		return nil, fmt.Errorf("serial %s: %w", name, err)
	}
	if err := as.Map(cfg.Base, region); err != nil {
		return nil, fmt.Errorf("serial %s: %w", name, err)
	}
	return u, nil
}

func (u *UART) Name() string   { return u.name }
func (u *UART) Config() Config { return u.cfg }

// Region returns the register window in the physical address space.
func (u *UART) Region() hv.MMIORegion {
	return hv.MMIORegion{Address: u.cfg.Base, Size: u.cfg.Size}
}

// IRQ returns the interrupt line the controller drives.
func (u *UART) IRQ() chipset.LineInterrupt { return u.irq }

// Backend returns the host side of the serial line, or nil.
func (u *UART) Backend() io.ReadWriter { return u.backend }

var _ hv.Device = (*UART)(nil)
