package gc

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// DefaultCardSize is the card-aligned region size write barriers track by
// default (spec §4.8: "default 4 KiB cards").
const DefaultCardSize = 4096

// WriteBarrier records which card-aligned memory regions were touched by
// a mutator store, trading pointer-level precision for an O(1) barrier:
// concurrent marking rescans whole dirty cards during final mark rather
// than tracking individual pointers (spec §4.8 rationale).
type WriteBarrier struct {
	mu         sync.Mutex
	dirtyCards map[uintptr]struct{}
	cardSize   uintptr
	active     atomic.Bool
}

// NewWriteBarrier creates an active write barrier with the given card
// size in bytes.
func NewWriteBarrier(cardSize uintptr) *WriteBarrier {
	if cardSize == 0 {
		cardSize = DefaultCardSize
	}
	wb := &WriteBarrier{dirtyCards: make(map[uintptr]struct{}), cardSize: cardSize}
	wb.active.Store(true)
	return wb
}

// RecordWrite marks the card containing obj dirty. Called by the mutator
// on every store that could create an inter-generational or
// already-scanned-region reference; a no-op when the barrier is inactive.
func (wb *WriteBarrier) RecordWrite(obj *Header) {
	if !wb.active.Load() {
		return
	}
	card := uintptr(unsafe.Pointer(obj)) / wb.cardSize
	wb.mu.Lock()
	wb.dirtyCards[card] = struct{}{}
	wb.mu.Unlock()
}

// GetAndClearDirtyCards returns the set of dirty cards accumulated since
// the last call and clears it.
func (wb *WriteBarrier) GetAndClearDirtyCards() []uintptr {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	cards := make([]uintptr, 0, len(wb.dirtyCards))
	for c := range wb.dirtyCards {
		cards = append(cards, c)
	}
	wb.dirtyCards = make(map[uintptr]struct{})
	return cards
}

// SetActive enables or disables the barrier (active only during
// concurrent-mark phases, per collector.go).
func (wb *WriteBarrier) SetActive(active bool) { wb.active.Store(active) }

// IsActive reports whether the barrier is currently recording writes.
func (wb *WriteBarrier) IsActive() bool { return wb.active.Load() }
