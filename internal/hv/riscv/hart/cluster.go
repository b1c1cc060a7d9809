package hart

import (
	"fmt"

	"github.com/tinyrange/tcnewman/internal/hv"
)

// ClusterConfig describes one hart array.
type ClusterConfig struct {
	Name        string
	CPUType     string
	HartIDBase  uint64
	NumHarts    int
	ResetVector uint64
}

// Cluster is a contiguous run of harts of a single CPU type.
type Cluster struct {
	cfg      ClusterConfig
	cpuType  CPUType
	harts    []*Hart
	realized bool
}

// NewCluster validates cfg. No harts exist until Realize.
func NewCluster(cfg ClusterConfig) (*Cluster, error) {
	if cfg.NumHarts < 1 {
		return nil, fmt.Errorf("hart: cluster %s: num-harts must be at least 1 (got %d)", cfg.Name, cfg.NumHarts)
	}
	if cfg.HartIDBase+uint64(cfg.NumHarts) < cfg.HartIDBase {
		return nil, fmt.Errorf("hart: cluster %s: hart ids overflow", cfg.Name)
	}
	cpuType, err := LookupCPUType(cfg.CPUType)
	if err != nil {
		return nil, fmt.Errorf("hart: cluster %s: %w", cfg.Name, err)
	}
	return &Cluster{cfg: cfg, cpuType: cpuType}, nil
}

// Realize creates the harts and registers each with space. Once realized the
// harts expose their interrupt inputs.
func (c *Cluster) Realize(space *hv.HartSpace) error {
	if c.realized {
		return fmt.Errorf("hart: cluster %s already realized", c.cfg.Name)
	}
	if space == nil {
		return fmt.Errorf("hart: cluster %s: hart space is nil", c.cfg.Name)
	}

	harts := make([]*Hart, c.cfg.NumHarts)
	for i := range harts {
		harts[i] = &Hart{
			id:      c.cfg.HartIDBase + uint64(i),
			cpuType: c.cpuType,
			resetPC: c.cfg.ResetVector,
		}
		if err := space.Register(harts[i]); err != nil {
			return fmt.Errorf("hart: cluster %s: %w", c.cfg.Name, err)
		}
	}

	c.harts = harts
	c.realized = true
	return nil
}

func (c *Cluster) Name() string        { return c.cfg.Name }
func (c *Cluster) CPUType() CPUType    { return c.cpuType }
func (c *Cluster) HartIDBase() uint64  { return c.cfg.HartIDBase }
func (c *Cluster) NumHarts() int       { return c.cfg.NumHarts }
func (c *Cluster) Realized() bool      { return c.realized }
func (c *Cluster) Is32Bit() bool       { return c.cpuType.XLEN() == 32 }
func (c *Cluster) ResetVector() uint64 { return c.cfg.ResetVector }

// Harts returns the realized harts in id order.
func (c *Cluster) Harts() []*Hart {
	return append([]*Hart(nil), c.harts...)
}
