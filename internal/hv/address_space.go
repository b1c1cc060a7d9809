package hv

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Mapping places a MemoryRegion at a guest physical base address.
type Mapping struct {
	Base   uint64
	Region *MemoryRegion
}

// End returns the first address after the mapping.
func (m Mapping) End() uint64 { return m.Base + m.Region.Size() }

// AddressSpace is a guest physical address space. Regions are mapped at
// fixed offsets and may never overlap one another.
type AddressSpace struct {
	mu sync.Mutex

	name string

	// mappings is kept sorted by base address.
	mappings []Mapping
}

// NewAddressSpace creates an empty address space.
func NewAddressSpace(name string) *AddressSpace {
	return &AddressSpace{name: name}
}

func (a *AddressSpace) Name() string { return a.name }

// Map adds region at base. It fails if the region wraps the end of the
// address space, if its name is already mapped, or if [base, base+size)
// intersects any existing mapping.
func (a *AddressSpace) Map(base uint64, region *MemoryRegion) error {
	if region == nil {
		return fmt.Errorf("address_space: cannot map nil region at 0x%x", base)
	}
	size := region.Size()
	if size == 0 {
		return fmt.Errorf("address_space: cannot map zero-size region %s", region.Name())
	}
	if base+size < base || base+size == 0 {
		return fmt.Errorf("address_space: region %s at 0x%x with size 0x%x overflows", region.Name(), base, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, existing := range a.mappings {
		if existing.Region.Name() == region.Name() {
			return fmt.Errorf("address_space: region %s already mapped at 0x%x", region.Name(), existing.Base)
		}
		if regionsOverlap(base, size, existing.Base, existing.Region.Size()) {
			return fmt.Errorf("address_space: %s [0x%x-0x%x) vs %s [0x%x-0x%x): %w",
				region.Name(), base, base+size,
				existing.Region.Name(), existing.Base, existing.End(),
				ErrRegionOverlap)
		}
	}

	a.mappings = append(a.mappings, Mapping{Base: base, Region: region})
	sort.Slice(a.mappings, func(i, j int) bool {
		return a.mappings[i].Base < a.mappings[j].Base
	})
	return nil
}

// Mappings returns a copy of all mappings ordered by base address.
func (a *AddressSpace) Mappings() []Mapping {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]Mapping, len(a.mappings))
	copy(result, a.mappings)
	return result
}

// Lookup returns the mapping containing addr.
func (a *AddressSpace) Lookup(addr uint64) (Mapping, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lookupLocked(addr)
}

func (a *AddressSpace) lookupLocked(addr uint64) (Mapping, bool) {
	i := sort.Search(len(a.mappings), func(i int) bool {
		return a.mappings[i].End() > addr
	})
	if i < len(a.mappings) && a.mappings[i].Base <= addr {
		return a.mappings[i], true
	}
	return Mapping{}, false
}

// Find returns the mapping of the region with the given name.
func (a *AddressSpace) Find(name string) (Mapping, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range a.mappings {
		if m.Region.Name() == name {
			return m, true
		}
	}
	return Mapping{}, false
}

// ReadAt reads guest physical memory. The range may span several adjacent
// mappings but every byte must be backed.
func (a *AddressSpace) ReadAt(p []byte, off int64) (int, error) {
	return a.access(p, off, func(r *MemoryRegion, buf []byte, roff int64) (int, error) {
		return r.ReadAt(buf, roff)
	})
}

// WriteAt stores into guest physical memory on behalf of a host-side loader.
// Read-only regions accept these writes: this is how boot ROM contents are
// installed.
func (a *AddressSpace) WriteAt(p []byte, off int64) (int, error) {
	return a.access(p, off, func(r *MemoryRegion, buf []byte, roff int64) (int, error) {
		return r.WriteAt(buf, roff)
	})
}

func (a *AddressSpace) access(p []byte, off int64, op func(*MemoryRegion, []byte, int64) (int, error)) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("address_space: negative offset %d", off)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	done := 0
	for done < len(p) {
		addr := uint64(off) + uint64(done)
		m, ok := a.lookupLocked(addr)
		if !ok {
			return done, fmt.Errorf("address_space: 0x%x: %w", addr, ErrUnmapped)
		}
		chunk := p[done:]
		if remain := m.End() - addr; uint64(len(chunk)) > remain {
			chunk = chunk[:remain]
		}
		n, err := op(m.Region, chunk, int64(addr-m.Base))
		done += n
		if err != nil && !(errors.Is(err, io.EOF) && n == len(chunk)) {
			return done, fmt.Errorf("address_space: 0x%x: %w", addr, err)
		}
	}
	return done, nil
}

// Dump writes a memory tree listing in address order.
func (a *AddressSpace) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "address-space: %s\n", a.name); err != nil {
		return err
	}
	for _, m := range a.Mappings() {
		if _, err := fmt.Fprintf(w, "  %016x-%016x (prio 0, %s): %s\n",
			m.Base, m.End()-1, m.Region.Kind(), m.Region.Name()); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the backing memory of every mapped region.
func (a *AddressSpace) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, m := range a.mappings {
		if err := m.Region.Close(); err != nil {
			errs = append(errs, fmt.Errorf("address_space: release %s: %w", m.Region.Name(), err))
		}
	}
	a.mappings = nil
	return errors.Join(errs...)
}

var (
	_ io.ReaderAt = (*AddressSpace)(nil)
	_ io.WriterAt = (*AddressSpace)(nil)
)
