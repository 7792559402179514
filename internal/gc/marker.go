package gc

import (
	"sync"
	"sync/atomic"

	"github.com/lambdust-scheme/lambdust/internal/value"
)

// Marker performs a mark phase over the managed object graph: starting
// from a root set, it discovers every object transitively reachable and
// sets Header.Marked on each (spec §4.8's "iterate roots ... mark").
//
// Reference discovery needs a way to find a value's child Headers; the
// Heap that owns the objects supplies this via a lookup function so
// Marker itself stays independent of allocation bookkeeping.
type Marker struct {
	mu       sync.Mutex
	marked   map[*Header]struct{}
	queue    []*Header
	complete atomic.Bool

	headerFor func(value.Value) (*Header, bool)
}

// NewMarker creates a Marker. headerFor resolves a child value.Value back
// to the Header tracking it, or reports false for values the collector
// doesn't manage (immediates, interned symbols, etc).
func NewMarker(headerFor func(value.Value) (*Header, bool)) *Marker {
	return &Marker{marked: make(map[*Header]struct{}), headerFor: headerFor}
}

// MarkFromRoots resets marker state and marks every object transitively
// reachable from roots.
func (m *Marker) MarkFromRoots(roots []*Header) {
	m.complete.Store(false)

	m.mu.Lock()
	m.marked = make(map[*Header]struct{})
	m.queue = m.queue[:0]
	for _, r := range roots {
		if r != nil {
			m.queue = append(m.queue, r)
		}
	}
	m.mu.Unlock()

	m.processMarking()
	m.complete.Store(true)
}

func (m *Marker) processMarking() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		obj := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		if obj == nil {
			continue
		}
		if m.markObject(obj) {
			m.scanObjectReferences(obj)
		}
	}
}

// markObject marks obj live, returning true if it was not already marked
// (i.e. its references still need scanning).
func (m *Marker) markObject(obj *Header) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, already := m.marked[obj]
	if already {
		return false
	}
	m.marked[obj] = struct{}{}
	obj.Marked = true
	return true
}

// scanObjectReferences enqueues every child of obj's value that the heap
// tracks with its own Header (spec §4.8: pairs and vectors are the
// reference-carrying compound types; everything else is a leaf).
func (m *Marker) scanObjectReferences(obj *Header) {
	children := directChildren(obj.Value)
	if len(children) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, child := range children {
		h, ok := m.headerFor(child)
		if ok && h != nil {
			m.queue = append(m.queue, h)
		}
	}
}

// directChildren returns the immediate value.Value references held by v,
// for the compound types the collector must trace through.
func directChildren(v value.Value) []value.Value {
	switch t := v.(type) {
	case *value.Pair:
		return []value.Value{t.Car, t.Cdr}
	case *value.MutablePair:
		return []value.Value{t.Car, t.Cdr}
	case *value.Vector:
		return t.Items
	default:
		return nil
	}
}

// IsMarked reports whether obj was marked by the most recent MarkFromRoots.
func (m *Marker) IsMarked(obj *Header) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.marked[obj]
	return ok
}

// MarkedObjects returns every object marked by the most recent pass.
func (m *Marker) MarkedObjects() []*Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Header, 0, len(m.marked))
	for h := range m.marked {
		out = append(out, h)
	}
	return out
}

// Reset clears marker state outside of a MarkFromRoots call.
func (m *Marker) Reset() {
	m.mu.Lock()
	m.marked = make(map[*Header]struct{})
	m.queue = nil
	m.mu.Unlock()
	m.complete.Store(false)
}

// IsComplete reports whether the most recently started mark pass has
// finished.
func (m *Marker) IsComplete() bool { return m.complete.Load() }
