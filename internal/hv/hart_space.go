package hv

import (
	"fmt"
	"sort"
	"sync"
)

// HartSpace is the machine-wide registry of hart ids. Hart clusters register
// their harts here when realized; interrupt controllers resolve hart ids
// through it.
type HartSpace struct {
	mu    sync.Mutex
	harts map[uint64]Hart
}

func NewHartSpace() *HartSpace {
	return &HartSpace{harts: make(map[uint64]Hart)}
}

// Register adds h under its hart id.
func (s *HartSpace) Register(h Hart) error {
	if h == nil {
		return fmt.Errorf("hart_space: cannot register nil hart")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := h.HartID()
	if _, exists := s.harts[id]; exists {
		return fmt.Errorf("hart_space: hart %d: %w", id, ErrDuplicateHart)
	}
	s.harts[id] = h
	return nil
}

// Lookup returns the hart registered under id.
func (s *HartSpace) Lookup(id uint64) (Hart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.harts[id]
	return h, ok
}

// IDs returns every registered hart id in ascending order.
func (s *HartSpace) IDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.harts))
	for id := range s.harts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *HartSpace) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.harts)
}
