package tcnewman

import (
	"github.com/tinyrange/tcnewman/internal/hv/riscv/hart"
	"github.com/tinyrange/tcnewman/internal/machine"
)

func init() {
	machine.Register(Descriptor())
}

// Descriptor returns the registry entry for the board.
func Descriptor() machine.Descriptor {
	return machine.Descriptor{
		Name:             MachineName,
		Description:      Description,
		MaxCPUs:          MaxCPUs,
		DefaultCPUType:   hart.DefaultCPUType,
		NUMAMemSupported: true,
		Init: func(cfg machine.Config, opts machine.Options) (machine.Board, error) {
			b, err := New(cfg, Options{Logger: opts.Logger, Serial: opts.Serial})
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}
