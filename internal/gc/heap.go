package gc

import (
	"sync"
	"sync/atomic"
	"time"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// Policies tunes the collector's generation-promotion and concurrency
// behavior (spec §8's GC config surface: promotion age, old-gen
// concurrency, card size, incremental step budget).
type Policies struct {
	PromotionAge            int
	CardSize                uintptr
	ConcurrentOldGenEnabled bool
	IncrementalStepBudget   time.Duration
	MaxHeapBytes            int // 0 disables the limit
}

// DefaultPolicies matches the documented defaults (config.GC): promote
// after 3 young survivals, 4 KiB cards, concurrent old-gen collection on.
func DefaultPolicies() Policies {
	return Policies{
		PromotionAge:            3,
		CardSize:                DefaultCardSize,
		ConcurrentOldGenEnabled: true,
		IncrementalStepBudget:   500 * time.Microsecond,
	}
}

// Heap owns the tracked object graph and wires the root set, write
// barrier, marker, safepoint, and the three collectors together — the
// facade the evaluator and primitives allocate through.
type Heap struct {
	mu      sync.Mutex
	objects map[*Header]struct{}

	roots        *RootSet
	writeBarrier *WriteBarrier
	marker       *Marker
	safepoint    *Safepoint
	statistics   *Statistics

	copying     *CopyingCollector
	markSweep   *MarkSweepCollector
	incremental *IncrementalCollector

	policies     Policies
	mutatorCount atomic.Int64
}

// New creates a Heap with the given policies.
func New(policies Policies) *Heap {
	h := &Heap{
		objects:      make(map[*Header]struct{}),
		roots:        NewRootSet(),
		writeBarrier: NewWriteBarrier(policies.CardSize),
		safepoint:    NewSafepoint(),
		statistics:   NewStatistics(),
		policies:     policies,
	}
	// The heap's barrier records writes only while a concurrent old-gen
	// mark is running; MarkSweepCollector switches it on for that phase.
	h.writeBarrier.SetActive(false)
	h.marker = NewMarker(h.headerFor)
	h.copying = NewCopyingCollector(h.safepoint, h.roots, h.marker, h, h.statistics, policies.PromotionAge)
	h.markSweep = NewMarkSweepCollector(h.roots, h.marker, h.writeBarrier, h, h.statistics).WithSafepoint(h.safepoint)
	h.markSweep.SetConcurrentEnabled(policies.ConcurrentOldGenEnabled)
	h.incremental = NewIncrementalCollector(h.markSweep, policies.IncrementalStepBudget, 0.2)
	return h
}

// headerFor resolves a value.Value back to the Header tracking it, used
// by Marker to discover children. Compound values don't carry their
// Header, so this does an O(n) scan; acceptable for this model's
// instrumentation role rather than a production allocator's hot path.
func (h *Heap) headerFor(v value.Value) (*Header, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for obj := range h.objects {
		if obj.Value == v {
			return obj, true
		}
	}
	return nil, false
}

// Allocate registers v as a new young-generation object of approximately
// size bytes, triggering a young-then-old collection if the configured
// heap limit would otherwise be exceeded, and failing with
// out-of-memory if the limit still can't be met afterward (spec §4.8
// failure handling).
func (h *Heap) Allocate(v value.Value, size int) (*Header, error) {
	if h.policies.MaxHeapBytes > 0 && h.TotalBytes()+size > h.policies.MaxHeapBytes {
		if _, err := h.CollectYoung(); err != nil {
			return nil, err
		}
		if _, err := h.CollectOld(false); err != nil {
			return nil, err
		}
		if h.TotalBytes()+size > h.policies.MaxHeapBytes {
			return nil, lerrors.Newf(lerrors.OutOfMemory, "heap limit of %d bytes exceeded", h.policies.MaxHeapBytes)
		}
	}

	obj := &Header{Value: v, Generation: Young, Size: size}
	h.mu.Lock()
	h.objects[obj] = struct{}{}
	h.mu.Unlock()
	return obj, nil
}

// TotalBytes sums the approximate size of every live tracked object.
func (h *Heap) TotalBytes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for obj := range h.objects {
		total += obj.Size
	}
	return total
}

// ObjectCount returns the number of live tracked objects.
func (h *Heap) ObjectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

func (h *Heap) liveInGeneration(gen GenerationID) []*Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Header, 0, len(h.objects))
	for obj := range h.objects {
		if obj.Generation == gen {
			out = append(out, obj)
		}
	}
	return out
}

func (h *Heap) sizeOf(obj *Header) int { return obj.Size }

func (h *Heap) free(obj *Header) {
	h.mu.Lock()
	delete(h.objects, obj)
	h.mu.Unlock()
}

func (h *Heap) promote(obj *Header) {
	obj.Generation = Old
	obj.Age = 0
}

// RegisterThread counts threadID as a live mutator for safepoint
// coordination; call before the thread allocates or calls PollSafepoint.
func (h *Heap) RegisterThread(threadID string) {
	h.mutatorCount.Add(1)
}

// UnregisterThread drops threadID's roots and mutator accounting
// (mirroring io.Coordinator.UnregisterThread / errprop.UnregisterThread).
func (h *Heap) UnregisterThread(threadID string) {
	h.mutatorCount.Add(-1)
	h.roots.ClearThreadRoots(threadID)
}

// PollSafepoint is called by the evaluator at its poll sites (every
// driver-loop iteration and every application, which covers continuation
// invocation): if a collection is in progress, the calling mutator parks
// until it completes. Allocate does not poll.
func (h *Heap) PollSafepoint() {
	if h.safepoint.Requested() {
		h.safepoint.Park()
	}
}

// RecordWrite notifies the write barrier that obj was just stored into,
// for old-gen concurrent-mark bookkeeping.
func (h *Heap) RecordWrite(obj *Header) {
	h.writeBarrier.RecordWrite(obj)
}

// AddGlobalRoot registers obj as reachable from the global environment.
func (h *Heap) AddGlobalRoot(obj *Header) { h.roots.AddGlobalRoot(obj) }

// RemoveGlobalRoot unregisters a global root.
func (h *Heap) RemoveGlobalRoot(obj *Header) { h.roots.RemoveGlobalRoot(obj) }

// AddThreadRoot registers obj as reachable from threadID's active frames.
func (h *Heap) AddThreadRoot(threadID string, obj *Header) { h.roots.AddThreadRoot(threadID, obj) }

// RemoveThreadRoot unregisters a thread-local root.
func (h *Heap) RemoveThreadRoot(threadID string, obj *Header) {
	h.roots.RemoveThreadRoot(threadID, obj)
}

// CollectYoung runs one stop-the-world young-generation collection.
func (h *Heap) CollectYoung() (CollectionResult, error) {
	return h.copying.Collect(int(h.mutatorCount.Load()))
}

// CollectOld runs one old-generation mark-and-sweep collection,
// concurrently when requested and enabled by policy.
func (h *Heap) CollectOld(concurrent bool) (CollectionResult, error) {
	return h.markSweep.Collect(concurrent, int(h.mutatorCount.Load()))
}

// IncrementalStep advances the incremental driver by one bounded step,
// returning true once the cycle completes.
func (h *Heap) IncrementalStep() (bool, error) {
	return h.incremental.Step()
}

// Statistics exposes the heap's collection statistics for reporting.
func (h *Heap) Statistics() *Statistics { return h.statistics }
