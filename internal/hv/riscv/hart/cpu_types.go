package hart

import (
	"fmt"
	"sort"

	"github.com/tinyrange/tcnewman/internal/hv"
)

// DefaultCPUType is used when a machine config does not name one.
const DefaultCPUType = "rv64"

// CPUType identifies a hart model.
type CPUType struct {
	Name string
	Arch hv.CpuArchitecture
}

// XLEN returns the register width of the model.
func (t CPUType) XLEN() int { return t.Arch.XLEN() }

var cpuTypes = map[string]CPUType{
	"rv32":         {Name: "rv32", Arch: hv.ArchitectureRISCV32},
	"rv64":         {Name: "rv64", Arch: hv.ArchitectureRISCV64},
	"sifive-e31":   {Name: "sifive-e31", Arch: hv.ArchitectureRISCV32},
	"sifive-e51":   {Name: "sifive-e51", Arch: hv.ArchitectureRISCV64},
	"sifive-u34":   {Name: "sifive-u34", Arch: hv.ArchitectureRISCV32},
	"sifive-u54":   {Name: "sifive-u54", Arch: hv.ArchitectureRISCV64},
	"lowrisc-ibex": {Name: "lowrisc-ibex", Arch: hv.ArchitectureRISCV32},
}

// LookupCPUType resolves a CPU type name.
func LookupCPUType(name string) (CPUType, error) {
	t, ok := cpuTypes[name]
	if !ok {
		return CPUType{}, fmt.Errorf("hart: unknown cpu type %q", name)
	}
	return t, nil
}

// CPUTypeNames lists the known CPU types in name order.
func CPUTypeNames() []string {
	names := make([]string, 0, len(cpuTypes))
	for name := range cpuTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
