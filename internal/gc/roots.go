// Package gc implements the parallel generational garbage collector of
// spec §4.8: a young-generation stop-the-world copying collector and an
// old-generation concurrent mark-and-sweep collector, coordinated
// through a safepoint protocol, plus an optional incremental driver.
//
// Go already manages the heap this module's objects actually live on; gc
// layers an instrumented object-graph model on top (root set, write
// barrier, marker, generation/age bookkeeping) so the collection
// algorithms, promotion policy, and statistics spec §4.8 names are
// faithfully reproduced and independently testable, the same way
// original_source/src/runtime/gc/collector.rs's own reference
// implementation simulates object movement rather than hand-rolling an
// allocator. Grounded directly on that file for the structures and
// algorithms; the mutex-guarded-registry and atomic-counter idioms follow
// the teacher's internal/interp/runtime/pool.go and method_registry.go.
package gc

import (
	"sync"

	"github.com/lambdust-scheme/lambdust/internal/value"
)

// GenerationID names which generation an object currently lives in.
type GenerationID int

const (
	Young GenerationID = iota
	Old
)

// Header is the per-object bookkeeping record tracked by the collector:
// Go's own pointer identity for the object stands in for
// original_source's raw ObjectHeader pointer.
type Header struct {
	Value      value.Value
	Generation GenerationID
	Marked     bool
	Age        int // number of young collections this object has survived
	Size       int // approximate bytes, for Statistics accounting
}

// RootSet is the set of objects always considered reachable: global
// bindings, each thread's active frames, and the remembered set of
// old-to-young pointers populated by the write barrier (spec §4.8).
type RootSet struct {
	mu          sync.RWMutex
	globalRoots map[*Header]struct{}
	threadRoots map[string]map[*Header]struct{}
	remembered  map[*Header]struct{}
}

// NewRootSet creates an empty root set.
func NewRootSet() *RootSet {
	return &RootSet{
		globalRoots: make(map[*Header]struct{}),
		threadRoots: make(map[string]map[*Header]struct{}),
		remembered:  make(map[*Header]struct{}),
	}
}

// AddGlobalRoot registers obj as reachable from the global environment.
func (r *RootSet) AddGlobalRoot(obj *Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globalRoots[obj] = struct{}{}
}

// RemoveGlobalRoot unregisters obj as a global root.
func (r *RootSet) RemoveGlobalRoot(obj *Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.globalRoots, obj)
}

// AddThreadRoot registers obj as reachable from threadID's active frames.
func (r *RootSet) AddThreadRoot(threadID string, obj *Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.threadRoots[threadID]
	if !ok {
		set = make(map[*Header]struct{})
		r.threadRoots[threadID] = set
	}
	set[obj] = struct{}{}
}

// RemoveThreadRoot unregisters obj from threadID's roots, dropping the
// thread's entry entirely once it holds no more roots.
func (r *RootSet) RemoveThreadRoot(threadID string, obj *Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.threadRoots[threadID]
	if !ok {
		return
	}
	delete(set, obj)
	if len(set) == 0 {
		delete(r.threadRoots, threadID)
	}
}

// ClearThreadRoots drops every root threadID registered, mirroring thread
// teardown elsewhere in the runtime (errprop.UnregisterThread,
// io.UnregisterThread).
func (r *RootSet) ClearThreadRoots(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threadRoots, threadID)
}

// AddToRememberedSet records obj (an old-generation object) as holding a
// pointer into the young generation, so young collections treat it as a
// root (spec §4.8's remembered set).
func (r *RootSet) AddToRememberedSet(obj *Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remembered[obj] = struct{}{}
}

// ClearRememberedSet discards the remembered set, typically done after a
// young collection has processed it.
func (r *RootSet) ClearRememberedSet() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remembered = make(map[*Header]struct{})
}

// AllRoots returns every object currently reachable as a root: global,
// every thread's, and the remembered set.
func (r *RootSet) AllRoots() []*Header {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Header, 0, len(r.globalRoots)+len(r.remembered))
	for h := range r.globalRoots {
		out = append(out, h)
	}
	for _, set := range r.threadRoots {
		for h := range set {
			out = append(out, h)
		}
	}
	for h := range r.remembered {
		out = append(out, h)
	}
	return out
}
