package tcnewman

import (
	"fmt"
	"io"

	"github.com/tinyrange/tcnewman/internal/devices/pflash"
	"github.com/tinyrange/tcnewman/internal/devices/serial"
)

// UART interrupt sources on the socket 0 PLIC.
const (
	UART0IRQ = 10
	UART1IRQ = 11
	UART2IRQ = 12
)

var uarts = []struct {
	region Region
	irq    uint32
}{
	{RegionUART0, UART0IRQ},
	{RegionUART1, UART1IRQ},
	{RegionUART2, UART2IRQ},
}

func (b *Board) buildPeripherals(backends []io.ReadWriter) error {
	sink := b.InterruptSink()
	for i, u := range uarts {
		var backend io.ReadWriter
		if i < len(backends) {
			backend = backends[i]
		}

		irq, err := sink.Source(u.irq)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConstruction, u.region, err)
		}
		e := memmap[u.region]
		dev, err := b.dev.NewSerial(b.as, fmt.Sprintf("serial%d", i), serial.Config{
			Base:     e.Base,
			Size:     e.Size,
			RegShift: 0,
			BaudBase: serial.DefaultBaudBase,
		}, irq, backend)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConstruction, u.region, err)
		}
		b.uarts = append(b.uarts, dev)
		b.log.Debug("created uart",
			"name", dev.Name(),
			"base", fmt.Sprintf("%#x", e.Base),
			"irq", u.irq,
		)
	}

	e := memmap[RegionFlash]
	f, err := b.dev.NewFlash(pflash.DefaultConfig("tc_newman.flash0"))
	if err != nil {
		return fmt.Errorf("%w: flash: %w", ErrConstruction, err)
	}
	if err := f.Map(b.as, e.Base, e.Size); err != nil {
		return fmt.Errorf("flash: %w", err)
	}
	b.flash = f
	b.log.Debug("mapped flash",
		"base", fmt.Sprintf("%#x", e.Base),
		"size", fmt.Sprintf("%#x", e.Size),
		"blocks", f.NumBlocks(),
	)
	return nil
}

// LoadFirmware copies a raw firmware image into the start of flash, where
// the reset vector jumps.
func (b *Board) LoadFirmware(r io.Reader) (int64, error) {
	n, err := b.flash.LoadImage(r)
	if err != nil {
		return n, fmt.Errorf("tcnewman: %w", err)
	}
	b.log.Debug("loaded firmware", "bytes", n)
	return n, nil
}
