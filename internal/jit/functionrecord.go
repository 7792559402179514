package jit

import (
	"strings"
	"sync"
	"time"
)

// FunctionID identifies a tracked function independent of Go pointer
// identity (a closure's backing allocation can move or be reused once
// collected; a uuid survives that). Assigned once, on first observation,
// by Controller.
type FunctionID string

// CacheKey names one compiled artifact slot: a function at a tier.
type CacheKey struct {
	ID   FunctionID
	Tier Tier
}

// FunctionRecord is the JIT function record of spec §3: execution count,
// current tier, last deoptimization reason, and aggregated timing for one
// tracked function.
type FunctionRecord struct {
	ID   FunctionID
	Name string

	mu              sync.Mutex
	executionCount  uint64
	tier            Tier
	lastDeoptReason string
	totalTime       time.Duration
	argWindow       []string
	stabilityWindow int
}

func newFunctionRecord(id FunctionID, name string, stabilityWindow int) *FunctionRecord {
	if stabilityWindow <= 0 {
		stabilityWindow = 8
	}
	return &FunctionRecord{ID: id, Name: name, stabilityWindow: stabilityWindow}
}

// argTypeTuple joins a call's argument type names into one comparable key.
func argTypeTuple(argTypes []string) string {
	return strings.Join(argTypes, ",")
}

// recordCall tallies one execution and pushes its argument-type tuple into
// the stability window, dropping the oldest tuple once the window is full.
func (r *FunctionRecord) recordCall(argTypes []string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executionCount++
	r.totalTime += elapsed

	r.argWindow = append(r.argWindow, argTypeTuple(argTypes))
	if len(r.argWindow) > r.stabilityWindow {
		r.argWindow = r.argWindow[1:]
	}
}

// argTypesStable reports whether the last stabilityWindow calls all
// carried identical argument-type tuples (spec §4.9's argument-type
// stability predicate, resolved per SPEC_FULL: K consecutive identical
// tuples, K defaulting to 8).
func (r *FunctionRecord) argTypesStable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.argWindow) < r.stabilityWindow {
		return false
	}
	first := r.argWindow[0]
	for _, t := range r.argWindow[1:] {
		if t != first {
			return false
		}
	}
	return true
}

func (r *FunctionRecord) snapshotCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executionCount
}

func (r *FunctionRecord) currentTier() Tier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tier
}

func (r *FunctionRecord) setTier(t Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tier = t
}

func (r *FunctionRecord) deoptimize(reason string) Tier {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tier = r.tier.prev()
	r.lastDeoptReason = reason
	// A deoptimization invalidates any argument-type stability observed
	// so far; re-promotion must re-earn it.
	r.argWindow = nil
	return r.tier
}

func (r *FunctionRecord) lastDeopt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDeoptReason
}
