//go:build unix

package hv

import (
	"golang.org/x/sys/unix"
)

// allocBacking maps anonymous private memory so large guest RAM stays lazily
// committed by the host kernel.
func allocBacking(size int) ([]byte, func() error, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, nil, err
	}
	return mem, func() error { return unix.Munmap(mem) }, nil
}
