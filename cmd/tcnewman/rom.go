package main

import (
	"fmt"
	"io"

	bootriscv "github.com/tinyrange/tcnewman/internal/boot/riscv"
	"github.com/tinyrange/tcnewman/internal/machine"
)

func dumpResetVector(w io.Writer, board machine.Board) error {
	b, ok := board.(interface{ BootPlan() *bootriscv.BootPlan })
	if !ok || b.BootPlan() == nil {
		return fmt.Errorf("machine %s has no boot rom", board.Name())
	}
	plan := b.BootPlan()

	fmt.Fprintf(w, "reset vector @ 0x%08x (rv%d, entry 0x%x, fdt 0x%x)\n",
		plan.ROMBase, plan.ResetVector.XLEN, plan.EntryPoint, plan.DTBBase)
	for i, word := range plan.ResetVector.Words() {
		if _, err := fmt.Fprintf(w, "  %08x: %08x\n", plan.ROMBase+uint64(i*4), word); err != nil {
			return err
		}
	}
	return nil
}
