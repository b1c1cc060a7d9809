// Package hart models RISC-V harts and hart arrays as far as board
// construction needs them: identity, register width, reset vector and the
// interrupt input pins that timers and interrupt controllers drive.
package hart

import (
	"fmt"
	"sync"

	"github.com/tinyrange/tcnewman/internal/chipset"
	"github.com/tinyrange/tcnewman/internal/hv"
)

// Local interrupt numbers (mip/mie bit positions).
const (
	IRQSSoftware = 1
	IRQMSoftware = 3
	IRQSTimer    = 5
	IRQMTimer    = 7
	IRQSExternal = 9
	IRQMExternal = 11
)

// mip/mie bits
const (
	MipSSIP uint64 = 1 << IRQSSoftware
	MipMSIP uint64 = 1 << IRQMSoftware
	MipSTIP uint64 = 1 << IRQSTimer
	MipMTIP uint64 = 1 << IRQMTimer
	MipSEIP uint64 = 1 << IRQSExternal
	MipMEIP uint64 = 1 << IRQMExternal
)

const inputMask = MipSSIP | MipMSIP | MipSTIP | MipMTIP | MipSEIP | MipMEIP

// Hart is a single hardware thread.
type Hart struct {
	id      uint64
	cpuType CPUType
	resetPC uint64

	mu  sync.Mutex
	mip uint64
}

func (h *Hart) HartID() uint64      { return h.id }
func (h *Hart) CPUType() CPUType    { return h.cpuType }
func (h *Hart) XLEN() int           { return h.cpuType.XLEN() }
func (h *Hart) ResetVector() uint64 { return h.resetPC }

// Input returns the interrupt pin for the given local interrupt number.
func (h *Hart) Input(irq int) (chipset.LineInterrupt, error) {
	if irq < 0 || irq >= 64 || inputMask&(1<<uint(irq)) == 0 {
		return nil, fmt.Errorf("hart %d: no interrupt input %d", h.id, irq)
	}
	bit := uint64(1) << uint(irq)
	return chipset.LineInterruptFromFunc(func(level bool) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if level {
			h.mip |= bit
		} else {
			h.mip &^= bit
		}
	}), nil
}

// Pending returns the interrupt pins currently held high, as mip bits.
func (h *Hart) Pending() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mip
}

// Resolve finds the hart registered under id.
func Resolve(space *hv.HartSpace, id uint64) (*Hart, error) {
	if space == nil {
		return nil, fmt.Errorf("hart: hart space is nil")
	}
	h, ok := space.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("hart: no hart with id %d", id)
	}
	rh, ok := h.(*Hart)
	if !ok {
		return nil, fmt.Errorf("hart: id %d is registered by %T", id, h)
	}
	return rh, nil
}

var _ hv.Hart = (*Hart)(nil)
