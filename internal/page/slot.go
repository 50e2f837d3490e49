package page

import "sync"

// Slot holds a replaceable entry point of the page. Instrumentation swaps the
// value; callers always go through Load so they see the current one.
type Slot[T any] struct {
	mu sync.RWMutex
	v  T
}

func NewSlot[T any](v T) *Slot[T] {
	return &Slot[T]{v: v}
}

func (s *Slot[T]) Load() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

func (s *Slot[T]) Store(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
}

// Reporter is attached to a host timing feed by instrumentation.
type Reporter interface {
	Report()
}

type idleReporter struct{}

func (idleReporter) Report() {}
