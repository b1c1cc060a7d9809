package chipset

import "sync"

// InterruptSink receives interrupt assertions for a given line.
type InterruptSink interface {
	SetIRQ(line uint32, level bool)
}

// LineSet hands out interrupt lines that forward level changes to a sink,
// typically the source inputs of a platform interrupt controller.
type LineSet struct {
	mu sync.Mutex

	sink  InterruptSink
	limit uint32

	lines map[uint32]*lineState
}

// NewLineSet builds a LineSet that forwards assertions to the provided sink.
// Lines numbered limit or above cannot be allocated; a zero limit means no
// bound.
func NewLineSet(sink InterruptSink, limit uint32) *LineSet {
	if sink == nil {
		sink = noopInterruptSink{}
	}
	return &LineSet{
		sink:  sink,
		limit: limit,
		lines: make(map[uint32]*lineState),
	}
}

// AllocateLine returns a LineInterrupt handle for the given IRQ line. The
// second result is false when irq is outside the set.
func (l *LineSet) AllocateLine(irq uint32) (LineInterrupt, bool) {
	if irq == 0 || (l.limit != 0 && irq >= l.limit) {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lines[irq]; !ok {
		l.lines[irq] = &lineState{}
	}
	return &lineHandle{owner: l, irq: irq}, true
}

// Allocated reports whether irq has been handed out.
func (l *LineSet) Allocated(irq uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.lines[irq]
	return ok
}

type lineState struct {
	level bool
}

type lineHandle struct {
	owner *LineSet
	irq   uint32
}

func (h *lineHandle) SetLevel(high bool) {
	h.owner.setLevel(h.irq, high)
}

func (h *lineHandle) PulseInterrupt() {
	h.owner.pulse(h.irq)
}

func (l *LineSet) setLevel(irq uint32, high bool) {
	l.mu.Lock()
	state := l.lines[irq]
	if state == nil {
		state = &lineState{}
		l.lines[irq] = state
	}
	changed := state.level != high
	state.level = high
	l.mu.Unlock()

	if changed {
		l.sink.SetIRQ(irq, high)
	}
}

func (l *LineSet) pulse(irq uint32) {
	l.sink.SetIRQ(irq, true)
	l.sink.SetIRQ(irq, false)
}

type noopInterruptSink struct{}

func (noopInterruptSink) SetIRQ(uint32, bool) {}
