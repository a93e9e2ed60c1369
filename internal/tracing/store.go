package tracing

import "sync"

// Store is a capacity-bounded, insertion-ordered container of sealed
// traces. Eviction happens synchronously on insert - there is no
// background sweeping, so memory is strictly bounded by the capacity
// between inserts. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	traces   map[string]*Trace
}

// NewStore creates a store that retains at most capacity traces.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultMaxTraces
	}
	return &Store{
		capacity: capacity,
		traces:   make(map[string]*Trace),
	}
}

// Insert adds a sealed trace, evicting the oldest-inserted trace while
// over capacity. Re-inserting an existing id refreshes its position.
func (s *Store) Insert(t *Trace) {
	if t == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.traces[t.ID]; exists {
		s.removeFromOrder(t.ID)
	}
	s.traces[t.ID] = t
	s.order = append(s.order, t.ID)

	for len(s.order) > s.capacity {
		s.evictOldestLocked()
	}
}

// Get looks a retained trace up by id.
func (s *Store) Get(id string) (*Trace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[id]
	return t, ok
}

// All returns the retained traces in insertion order.
func (s *Store) All() []*Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Trace, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.traces[id])
	}
	return out
}

// EvictOldest removes the oldest-inserted trace, if any.
func (s *Store) EvictOldest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictOldestLocked()
}

// Len returns the number of retained traces.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) evictOldestLocked() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.traces, oldest)
}

func (s *Store) removeFromOrder(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
