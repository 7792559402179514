package gc

import (
	"sync"
	"sync/atomic"
)

// Safepoint coordinates stop-the-world phases: mutator threads poll
// Requested at safe points (through Heap.PollSafepoint: loop back-edges,
// application, and continuation invocation; allocation does not poll) and
// block in Park until the collector releases the safepoint.
type Safepoint struct {
	requested atomic.Bool

	mu     sync.Mutex
	parked sync.WaitGroup
	resume chan struct{}
}

// NewSafepoint creates a safepoint with no request in flight.
func NewSafepoint() *Safepoint {
	return &Safepoint{resume: make(chan struct{})}
}

// Requested reports whether the collector currently wants mutators
// parked. Intended to be polled cheaply at safepoint sites.
func (s *Safepoint) Requested() bool { return s.requested.Load() }

// Request asks expectedMutators mutators to park and blocks until all of
// them have called Park.
func (s *Safepoint) Request(expectedMutators int) {
	s.mu.Lock()
	s.resume = make(chan struct{})
	s.parked.Add(expectedMutators)
	s.mu.Unlock()

	s.requested.Store(true)
	s.parked.Wait()
}

// Park is called by a mutator thread when it observes Requested(); it
// blocks until Release is called.
func (s *Safepoint) Park() {
	s.mu.Lock()
	ch := s.resume
	s.mu.Unlock()
	s.parked.Done()
	<-ch
}

// Release resumes every parked mutator.
func (s *Safepoint) Release() {
	s.requested.Store(false)
	s.mu.Lock()
	close(s.resume)
	s.mu.Unlock()
}
