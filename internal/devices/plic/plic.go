// Package plic implements construction of the platform-level interrupt
// controller: context layout from a hart configuration string, wiring of
// context outputs to hart external-interrupt pins and the source input lines
// peripherals drive.
package plic

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tinyrange/tcnewman/internal/chipset"
	"github.com/tinyrange/tcnewman/internal/hv"
	"github.com/tinyrange/tcnewman/internal/hv/riscv/hart"
)

// Mode is a privilege level that owns an interrupt context.
type Mode byte

const (
	ModeUser       Mode = 'U'
	ModeSupervisor Mode = 'S'
	ModeMachine    Mode = 'M'
)

func (m Mode) String() string { return string(rune(m)) }

// Context is one (hart, privilege mode) interrupt target.
type Context struct {
	HartID uint64
	Mode   Mode
}

// Config describes one PLIC instance. Offsets are relative to Base.
type Config struct {
	Base uint64

	// HartConfig lists the modes of each hart, comma separated, e.g. "MS,MS".
	HartConfig string
	ID         uint64
	HartIDBase uint64

	NumSources    uint32
	NumPriorities uint32

	PriorityBase  uint64
	PendingBase   uint64
	EnableBase    uint64
	EnableStride  uint64
	ContextBase   uint64
	ContextStride uint64
	ApertureSize  uint64
}

// HartConfig builds the hart configuration string that gives each of
// numHarts harts the same mode tag.
func HartConfig(tag string, numHarts int) string {
	if numHarts <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < numHarts; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tag)
	}
	return b.String()
}

// ParseHartConfig splits a hart configuration string into per-hart mode
// lists. Empty entries are skipped; a mode may appear once per hart.
func ParseHartConfig(cfg string) ([][]Mode, error) {
	var harts [][]Mode
	for _, entry := range strings.Split(cfg, ",") {
		if entry == "" {
			continue
		}
		var modes []Mode
		var seen [256]bool
		for i := 0; i < len(entry); i++ {
			m := Mode(entry[i])
			switch m {
			case ModeUser, ModeSupervisor, ModeMachine:
			default:
				return nil, fmt.Errorf("plic: invalid mode %q in hart config %q", entry[i], cfg)
			}
			if seen[m] {
				return nil, fmt.Errorf("plic: duplicate mode %q in hart config %q", entry[i], cfg)
			}
			seen[m] = true
			modes = append(modes, m)
		}
		harts = append(harts, modes)
	}
	if len(harts) == 0 {
		return nil, fmt.Errorf("plic: hart config %q names no harts", cfg)
	}
	return harts, nil
}

// PLIC is a realized platform-level interrupt controller.
type PLIC struct {
	name     string
	cfg      Config
	numHarts int
	contexts []Context
	outputs  []chipset.LineInterrupt
	lines    *chipset.LineSet

	mu      sync.Mutex
	pending []uint32
}

// New lays out the contexts described by cfg.HartConfig, wires each M or S
// context to the external interrupt pin of its hart and maps the register
// aperture into as.
func New(as *hv.AddressSpace, harts *hv.HartSpace, name string, cfg Config) (*PLIC, error) {
	modes, err := ParseHartConfig(cfg.HartConfig)
	if err != nil {
		return nil, fmt.Errorf("plic %s: %w", name, err)
	}

	p := &PLIC{
		name:     name,
		cfg:      cfg,
		numHarts: len(modes),
		pending:  make([]uint32, (cfg.NumSources+31)/32),
	}
	for i, hartModes := range modes {
		for _, m := range hartModes {
			p.contexts = append(p.contexts, Context{HartID: cfg.HartIDBase + uint64(i), Mode: m})
		}
	}

	if err := p.validateLayout(); err != nil {
		return nil, fmt.Errorf("plic %s: %w", name, err)
	}

	p.outputs = make([]chipset.LineInterrupt, len(p.contexts))
	for i, ctx := range p.contexts {
		h, err := hart.Resolve(harts, ctx.HartID)
		if err != nil {
			return nil, fmt.Errorf("plic %s: context %d: %w", name, i, err)
		}
		switch ctx.Mode {
		case ModeMachine:
			p.outputs[i], err = h.Input(hart.IRQMExternal)
		case ModeSupervisor:
			p.outputs[i], err = h.Input(hart.IRQSExternal)
		default:
			p.outputs[i] = chipset.LineInterruptDetached()
		}
		if err != nil {
			return nil, fmt.Errorf("plic %s: context %d: %w", name, i, err)
		}
	}

	p.lines = chipset.NewLineSet(p, cfg.NumSources)

	region, err := hv.NewIO(name, cfg.ApertureSize, p)
	if err != nil {
		return nil, fmt.Errorf("plic %s: %w", name, err)
	}
	if err := as.Map(cfg.Base, region); err != nil {
		return nil, fmt.Errorf("plic %s: %w", name, err)
	}
	return p, nil
}

func (p *PLIC) validateLayout() error {
	cfg := p.cfg
	if cfg.NumSources < 2 {
		return fmt.Errorf("num-sources %d too small", cfg.NumSources)
	}
	if cfg.NumPriorities == 0 {
		return fmt.Errorf("num-priorities is zero")
	}
	if cfg.EnableStride == 0 || cfg.ContextStride == 0 {
		return fmt.Errorf("enable and context strides must be non-zero")
	}
	n := uint64(len(p.contexts))
	if end := cfg.PriorityBase + uint64(cfg.NumSources)*4; end > cfg.PendingBase {
		return fmt.Errorf("priority block [0x%x-0x%x) overlaps pending at 0x%x", cfg.PriorityBase, end, cfg.PendingBase)
	}
	if end := cfg.PendingBase + uint64(len(p.pending))*4; end > cfg.EnableBase {
		return fmt.Errorf("pending block [0x%x-0x%x) overlaps enables at 0x%x", cfg.PendingBase, end, cfg.EnableBase)
	}
	if end := cfg.EnableBase + n*cfg.EnableStride; end > cfg.ContextBase {
		return fmt.Errorf("%d enable blocks end at 0x%x past context base 0x%x", n, end, cfg.ContextBase)
	}
	if need := Size(cfg.ContextBase, cfg.ContextStride, len(p.contexts)); cfg.ApertureSize < need {
		return fmt.Errorf("aperture 0x%x too small for %d contexts (need 0x%x)", cfg.ApertureSize, n, need)
	}
	return nil
}

// Size returns the aperture needed for contexts interrupt contexts.
func Size(contextBase, contextStride uint64, contexts int) uint64 {
	return contextBase + uint64(contexts)*contextStride
}

func (p *PLIC) Name() string   { return p.name }
func (p *PLIC) Config() Config { return p.cfg }
func (p *PLIC) NumHarts() int  { return p.numHarts }

// Region returns the register aperture in the physical address space.
func (p *PLIC) Region() hv.MMIORegion {
	return hv.MMIORegion{Address: p.cfg.Base, Size: p.cfg.ApertureSize}
}

// Contexts returns the interrupt contexts in register order.
func (p *PLIC) Contexts() []Context {
	return append([]Context(nil), p.contexts...)
}

// Output returns the interrupt output of context i.
func (p *PLIC) Output(i int) chipset.LineInterrupt { return p.outputs[i] }

// Source returns the input line for interrupt source irq.
func (p *PLIC) Source(irq uint32) (chipset.LineInterrupt, error) {
	line, ok := p.lines.AllocateLine(irq)
	if !ok {
		return nil, fmt.Errorf("plic %s: source %d out of range [1, %d)", p.name, irq, p.cfg.NumSources)
	}
	return line, nil
}

// Connected reports whether a peripheral holds the input line for irq.
func (p *PLIC) Connected(irq uint32) bool { return p.lines.Allocated(irq) }

// SetIRQ implements chipset.InterruptSink by latching the source level.
func (p *PLIC) SetIRQ(source uint32, level bool) {
	if source == 0 || source >= p.cfg.NumSources {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	word := source / 32
	bit := source % 32
	if level {
		p.pending[word] |= 1 << bit
	} else {
		p.pending[word] &^= 1 << bit
	}
}

// Pending reports whether source is currently asserted.
func (p *PLIC) Pending(source uint32) bool {
	if source >= p.cfg.NumSources {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[source/32]&(1<<(source%32)) != 0
}

var (
	_ hv.Device             = (*PLIC)(nil)
	_ chipset.InterruptSink = (*PLIC)(nil)
)
