package tcnewman

import (
	"fmt"
	"io"

	"github.com/tinyrange/tcnewman/internal/chipset"
	"github.com/tinyrange/tcnewman/internal/devices/clint"
	"github.com/tinyrange/tcnewman/internal/devices/pflash"
	"github.com/tinyrange/tcnewman/internal/devices/plic"
	"github.com/tinyrange/tcnewman/internal/devices/serial"
	"github.com/tinyrange/tcnewman/internal/hv"
	"github.com/tinyrange/tcnewman/internal/hv/riscv/hart"
)

// Devices creates the components a board is assembled from. The board only
// ever reaches its devices through this interface.
type Devices interface {
	// NewHartCluster creates a cluster and realizes it into space.
	NewHartCluster(space *hv.HartSpace, cfg hart.ClusterConfig) (*hart.Cluster, error)
	NewCLINT(as *hv.AddressSpace, harts *hv.HartSpace, name string, cfg clint.Config) (*clint.CLINT, error)
	NewPLIC(as *hv.AddressSpace, harts *hv.HartSpace, name string, cfg plic.Config) (*plic.PLIC, error)
	NewMemory(kind hv.RegionKind, name string, size uint64) (*hv.MemoryRegion, error)
	NewSerial(as *hv.AddressSpace, name string, cfg serial.Config, irq chipset.LineInterrupt, backend io.ReadWriter) (*serial.UART, error)
	NewFlash(cfg pflash.Config) (*pflash.Flash, error)
}

// DefaultDevices builds the in-tree device models.
type DefaultDevices struct{}

func (DefaultDevices) NewHartCluster(space *hv.HartSpace, cfg hart.ClusterConfig) (*hart.Cluster, error) {
	c, err := hart.NewCluster(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Realize(space); err != nil {
		return nil, err
	}
	return c, nil
}

func (DefaultDevices) NewCLINT(as *hv.AddressSpace, harts *hv.HartSpace, name string, cfg clint.Config) (*clint.CLINT, error) {
	return clint.New(as, harts, name, cfg)
}

func (DefaultDevices) NewPLIC(as *hv.AddressSpace, harts *hv.HartSpace, name string, cfg plic.Config) (*plic.PLIC, error) {
	return plic.New(as, harts, name, cfg)
}

func (DefaultDevices) NewMemory(kind hv.RegionKind, name string, size uint64) (*hv.MemoryRegion, error) {
	switch kind {
	case hv.RegionRAM:
		return hv.NewRAM(name, size)
	case hv.RegionROM:
		return hv.NewROM(name, size)
	default:
		return nil, fmt.Errorf("memory %s: cannot create %s region without a device", name, kind)
	}
}

func (DefaultDevices) NewSerial(as *hv.AddressSpace, name string, cfg serial.Config, irq chipset.LineInterrupt, backend io.ReadWriter) (*serial.UART, error) {
	return serial.NewMM(as, name, cfg, irq, backend)
}

func (DefaultDevices) NewFlash(cfg pflash.Config) (*pflash.Flash, error) {
	return pflash.New(cfg)
}

var _ Devices = DefaultDevices{}
