// Package chipset carries interrupt lines between devices: a peripheral
// drives a LineInterrupt and the interrupt controller sees the level change
// through an InterruptSink.
package chipset

// LineInterrupt is the output pin of a device.
type LineInterrupt interface {
	SetLevel(high bool)

	// PulseInterrupt raises and lowers the line, for edge-triggered
	// consumers.
	PulseInterrupt()
}

// lineFunc forwards levels to a function. A nil lineFunc is a pin with
// nothing attached.
type lineFunc func(high bool)

func (f lineFunc) SetLevel(high bool) {
	if f != nil {
		f(high)
	}
}

func (f lineFunc) PulseInterrupt() {
	f.SetLevel(true)
	f.SetLevel(false)
}

// LineInterruptDetached returns a pin that is not wired to anything.
func LineInterruptDetached() LineInterrupt { return lineFunc(nil) }

// LineInterruptFromFunc wires a pin to fn.
func LineInterruptFromFunc(fn func(high bool)) LineInterrupt { return lineFunc(fn) }
