// Package tcnewman assembles the tc-newman RISC-V board: up to two sockets of
// harts, a CLINT and PLIC per socket, boot ROM, SRAM, DRAM, three UARTs and
// a CFI flash that the reset vector jumps into.
package tcnewman

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	bootriscv "github.com/tinyrange/tcnewman/internal/boot/riscv"
	"github.com/tinyrange/tcnewman/internal/devices/clint"
	"github.com/tinyrange/tcnewman/internal/devices/pflash"
	"github.com/tinyrange/tcnewman/internal/devices/plic"
	"github.com/tinyrange/tcnewman/internal/devices/serial"
	"github.com/tinyrange/tcnewman/internal/hv"
	"github.com/tinyrange/tcnewman/internal/hv/riscv/hart"
	"github.com/tinyrange/tcnewman/internal/machine"
)

const (
	MachineName = "tc-newman"
	Description = "RISC-V Tc newman board"

	regionPrefix = "riscv_tc_newman_board"
)

var (
	// ErrGeometry reports a memory map or flash layout that cannot be built.
	ErrGeometry = pflash.ErrGeometry

	// ErrConstruction reports a device that failed to build.
	ErrConstruction = errors.New("device construction failed")
)

// Options carries what the board is built with besides its configuration.
type Options struct {
	Logger *slog.Logger

	// Devices defaults to DefaultDevices.
	Devices Devices

	// Serial backends for UART0..UART2. Missing entries discard output.
	Serial []io.ReadWriter
}

// Board is a fully constructed tc-newman machine.
type Board struct {
	cfg machine.Config
	log *slog.Logger
	dev Devices

	as    *hv.AddressSpace
	harts *hv.HartSpace

	sockets  []SocketTopology
	clusters []*hart.Cluster
	clints   []*clint.CLINT
	plics    []*plic.PLIC

	mrom, sram, dram *hv.MemoryRegion

	uarts []*serial.UART
	flash *pflash.Flash
	boot  *bootriscv.BootPlan
}

// New builds the board. The topology and memory map are validated before any
// device exists; after that any failure releases what was built and returns
// the error, so no partially built board is ever returned.
func New(cfg machine.Config, opts Options) (*Board, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Devices == nil {
		opts.Devices = DefaultDevices{}
	}
	if cfg.CPUType == "" {
		cfg.CPUType = hart.DefaultCPUType
	}
	if cfg.RAMSize == 0 {
		cfg.RAMSize = machine.DefaultRAMSize
	}
	if cfg.Topology.CPUs == 0 {
		cfg.Topology.CPUs = 1
	}

	sockets, err := ValidateTopology(cfg.Topology)
	if err != nil {
		return nil, fmt.Errorf("tcnewman: %w", err)
	}
	if err := CheckMemMap(uint64(cfg.RAMSize)); err != nil {
		return nil, fmt.Errorf("tcnewman: %w", err)
	}
	if _, err := hart.LookupCPUType(cfg.CPUType); err != nil {
		return nil, fmt.Errorf("tcnewman: %w: %w", ErrConstruction, err)
	}

	b := &Board{
		cfg:     cfg,
		log:     opts.Logger.With("machine", MachineName),
		dev:     opts.Devices,
		as:      hv.NewAddressSpace("system"),
		harts:   hv.NewHartSpace(),
		sockets: sockets,
	}
	if err := b.build(opts.Serial); err != nil {
		if cerr := b.as.Close(); cerr != nil {
			b.log.Warn("release address space", "err", cerr)
		}
		return nil, fmt.Errorf("tcnewman: %w", err)
	}

	b.log.Info("board ready",
		"sockets", len(b.sockets),
		"harts", b.harts.Len(),
		"cpu", cfg.CPUType,
		"ram", cfg.RAMSize.String(),
		"entry", fmt.Sprintf("%#x", b.boot.EntryPoint),
	)
	return b, nil
}

func (b *Board) build(backends []io.ReadWriter) error {
	for _, s := range b.sockets {
		if err := b.buildSocket(s); err != nil {
			return err
		}
	}
	if err := b.buildMemory(); err != nil {
		return err
	}
	if err := b.buildResetVector(); err != nil {
		return err
	}
	return b.buildPeripherals(backends)
}

func (b *Board) buildSocket(s SocketTopology) error {
	cluster, err := b.dev.NewHartCluster(b.harts, hart.ClusterConfig{
		Name:        fmt.Sprintf("soc%d", s.Index),
		CPUType:     b.cfg.CPUType,
		HartIDBase:  s.BaseHartID,
		NumHarts:    s.HartCount,
		ResetVector: memmap[RegionMROM].Base,
	})
	if err != nil {
		return fmt.Errorf("socket%d: %w: harts: %w", s.Index, ErrConstruction, err)
	}
	b.clusters = append(b.clusters, cluster)
	b.log.Debug("realized hart cluster",
		"socket", s.Index,
		"hartid_base", s.BaseHartID,
		"harts", s.HartCount,
		"cpu", cluster.CPUType().Name,
	)

	cl, err := b.dev.NewCLINT(b.as, b.harts, clintName(s), clintConfig(s))
	if err != nil {
		return fmt.Errorf("socket%d: %w: clint: %w", s.Index, ErrConstruction, err)
	}
	b.clints = append(b.clints, cl)
	b.log.Debug("created clint", "socket", s.Index, "base", fmt.Sprintf("%#x", cl.Config().Base))

	p, err := b.dev.NewPLIC(b.as, b.harts, plicName(s), plicConfig(s))
	if err != nil {
		return fmt.Errorf("socket%d: %w: plic: %w", s.Index, ErrConstruction, err)
	}
	b.plics = append(b.plics, p)
	b.log.Debug("created plic",
		"socket", s.Index,
		"base", fmt.Sprintf("%#x", p.Config().Base),
		"size", fmt.Sprintf("%#x", p.Config().ApertureSize),
		"hart_config", p.Config().HartConfig,
	)
	return nil
}

func (b *Board) buildMemory() error {
	regions := []struct {
		r    Region
		kind hv.RegionKind
		size uint64
		dst  **hv.MemoryRegion
	}{
		{RegionDRAM, hv.RegionRAM, uint64(b.cfg.RAMSize), &b.dram},
		{RegionSRAM, hv.RegionRAM, memmap[RegionSRAM].Size, &b.sram},
		{RegionMROM, hv.RegionROM, memmap[RegionMROM].Size, &b.mrom},
	}
	for _, mem := range regions {
		name := regionPrefix + "." + mem.r.String()
		mr, err := b.dev.NewMemory(mem.kind, name, mem.size)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConstruction, name, err)
		}
		if err := b.as.Map(memmap[mem.r].Base, mr); err != nil {
			mr.Close()
			return fmt.Errorf("%w: %s: %w", ErrConstruction, name, err)
		}
		*mem.dst = mr
		b.log.Debug("mapped memory",
			"region", name,
			"kind", mem.kind.String(),
			"base", fmt.Sprintf("%#x", memmap[mem.r].Base),
			"size", fmt.Sprintf("%#x", mem.size),
		)
	}
	return nil
}

// buildResetVector installs the boot ROM program. Every hart starts at the
// ROM base and jumps to the start of flash; no device tree is provided.
func (b *Board) buildResetVector() error {
	rom := memmap[RegionMROM]
	plan, err := bootriscv.PrepareROM(b.as, b.clusters[0].CPUType().XLEN(), rom.Base, rom.Size, memmap[RegionFlash].Base, 0)
	if err != nil {
		return fmt.Errorf("%w: mrom: %w", ErrConstruction, err)
	}
	b.boot = plan
	b.log.Debug("wrote reset vector",
		"base", fmt.Sprintf("%#x", rom.Base),
		"xlen", plan.ResetVector.XLEN,
		"entry", fmt.Sprintf("%#x", plan.EntryPoint),
	)
	return nil
}

func (b *Board) Name() string                   { return MachineName }
func (b *Board) Config() machine.Config         { return b.cfg }
func (b *Board) AddressSpace() *hv.AddressSpace { return b.as }
func (b *Board) HartSpace() *hv.HartSpace       { return b.harts }
func (b *Board) Sockets() []SocketTopology      { return append([]SocketTopology(nil), b.sockets...) }
func (b *Board) Clusters() []*hart.Cluster      { return append([]*hart.Cluster(nil), b.clusters...) }
func (b *Board) CLINTs() []*clint.CLINT         { return append([]*clint.CLINT(nil), b.clints...) }
func (b *Board) PLICs() []*plic.PLIC            { return append([]*plic.PLIC(nil), b.plics...) }
func (b *Board) UARTs() []*serial.UART          { return append([]*serial.UART(nil), b.uarts...) }
func (b *Board) Flash() *pflash.Flash           { return b.flash }
func (b *Board) BootPlan() *bootriscv.BootPlan  { return b.boot }

// InterruptSink is the socket 0 PLIC, which serves every device that is not
// tied to a socket.
func (b *Board) InterruptSink() *plic.PLIC { return b.plics[0] }

// Close releases guest memory.
func (b *Board) Close() error { return b.as.Close() }

var (
	_ machine.Board          = (*Board)(nil)
	_ machine.FirmwareLoader = (*Board)(nil)
)
