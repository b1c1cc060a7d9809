// Package machine holds the board registry and the board-independent pieces
// of machine configuration: topology, sizes and YAML config files.
package machine

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/tinyrange/tcnewman/internal/hv"
)

// Board is a constructed machine.
type Board interface {
	Name() string
	AddressSpace() *hv.AddressSpace
	Close() error
}

// FirmwareLoader is implemented by boards that boot from a flash image.
type FirmwareLoader interface {
	LoadFirmware(r io.Reader) (int64, error)
}

// Options carries host-side resources a board is built with.
type Options struct {
	Logger *slog.Logger

	// Serial holds one backend per serial port; missing or nil entries
	// are left unconnected.
	Serial []io.ReadWriter
}

// InitFunc builds a board from a normalized configuration.
type InitFunc func(cfg Config, opts Options) (Board, error)

// Descriptor is a registered board type.
type Descriptor struct {
	Name             string
	Description      string
	MaxCPUs          int
	DefaultCPUType   string
	NUMAMemSupported bool
	Init             InitFunc
}

var (
	boardsMu sync.RWMutex
	boards   = make(map[string]Descriptor)
)

// Register adds a board type. It panics on an invalid or duplicate
// descriptor so mistakes are caught during init.
func Register(d Descriptor) {
	if d.Name == "" {
		panic("machine: cannot register board without a name")
	}
	if d.Init == nil {
		panic(fmt.Sprintf("machine: board %s has no init function", d.Name))
	}

	boardsMu.Lock()
	defer boardsMu.Unlock()

	if _, exists := boards[d.Name]; exists {
		panic(fmt.Sprintf("machine: board %s already registered", d.Name))
	}
	boards[d.Name] = d
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, error) {
	boardsMu.RLock()
	defer boardsMu.RUnlock()

	if d, ok := boards[name]; ok {
		return d, nil
	}
	if name == "" {
		return Descriptor{}, fmt.Errorf("machine: no machine specified")
	}
	return Descriptor{}, fmt.Errorf("machine: unsupported machine %q", name)
}

// Descriptors returns every registered board sorted by name.
func Descriptors() []Descriptor {
	boardsMu.RLock()
	defer boardsMu.RUnlock()

	out := make([]Descriptor, 0, len(boards))
	for _, d := range boards {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// New builds the board named by cfg.Machine. The CPU type defaults to the
// board's default and the CPU count is checked against the board maximum
// before the board's init runs.
func New(cfg Config, opts Options) (Board, error) {
	d, err := Lookup(cfg.Machine)
	if err != nil {
		return nil, err
	}
	cfg.normalize()
	if cfg.CPUType == "" {
		cfg.CPUType = d.DefaultCPUType
	}
	if d.MaxCPUs > 0 && cfg.Topology.CPUs > d.MaxCPUs {
		return nil, fmt.Errorf("machine: %w: %s supports at most %d cpus, %d requested",
			ErrTopology, d.Name, d.MaxCPUs, cfg.Topology.CPUs)
	}
	if err := cfg.Topology.Validate(); err != nil {
		return nil, fmt.Errorf("machine: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return d.Init(cfg, opts)
}
