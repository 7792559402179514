package jit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lambdust-scheme/lambdust/internal/value"
)

// Policies tunes tier-promotion thresholds, the compilation cache bound,
// and the metrics sampling/stability windows (spec §8's JIT config
// surface; field names mirror config.JIT).
type Policies struct {
	TierThresholdN1    uint64
	TierThresholdN2    uint64
	TierThresholdN3    uint64
	CodeCacheSize      int
	SamplingWindowSize int
	ArgStabilityWindow int
}

// DefaultPolicies matches config.Default().JIT: promote to Bytecode at 10
// calls, JitBasic at 100, JitOptimized at 1000 calls with 8 consecutive
// stable argument-type tuples.
func DefaultPolicies() Policies {
	return Policies{
		TierThresholdN1:    10,
		TierThresholdN2:    100,
		TierThresholdN3:    1000,
		CodeCacheSize:      512,
		SamplingWindowSize: 256,
		ArgStabilityWindow: 8,
	}
}

// Controller is the per-function tier controller of spec §4.9: tracks
// execution counts and argument-type stability per function, promotes
// across tiers, and drives a size-bounded compilation cache.
type Controller struct {
	mu       sync.Mutex
	records  map[*value.Procedure]*FunctionRecord
	byID     map[FunctionID]*FunctionRecord
	policies Policies
	metrics  *Metrics
	cache    *CompilationCache
	logger   *zap.Logger
}

// New builds a Controller. A nil logger discards log output.
func New(policies Policies, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics(policies.SamplingWindowSize)
	return &Controller{
		records:  make(map[*value.Procedure]*FunctionRecord),
		byID:     make(map[FunctionID]*FunctionRecord),
		policies: policies,
		metrics:  metrics,
		cache:    NewCompilationCache(policies.CodeCacheSize, metrics),
		logger:   logger,
	}
}

// Metrics exposes the collector for reporting.
func (c *Controller) Metrics() *Metrics { return c.metrics }

func (c *Controller) recordFor(proc *value.Procedure) *FunctionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[proc]
	if ok {
		return rec
	}
	id := FunctionID(uuid.New().String())
	rec = newFunctionRecord(id, proc.Name, c.policies.ArgStabilityWindow)
	c.records[proc] = rec
	c.byID[id] = rec
	return rec
}

// RecordCall tallies one execution of proc, observes its argument types
// for the stability window, and promotes its tier if a threshold (and,
// for the top tier, argument-type stability) has been crossed. It returns
// the function's tier after this call.
func (c *Controller) RecordCall(proc *value.Procedure, args []value.Value, elapsed time.Duration) Tier {
	rec := c.recordFor(proc)
	argTypes := make([]string, len(args))
	for i, a := range args {
		argTypes[i] = a.TypeName()
	}
	rec.recordCall(argTypes, elapsed)
	c.metrics.RecordExecution(elapsed)

	count := rec.snapshotCount()
	switch rec.currentTier() {
	case Interpreter:
		if count >= c.policies.TierThresholdN1 {
			c.promote(rec, Bytecode)
		}
	case Bytecode:
		if count >= c.policies.TierThresholdN2 {
			c.promote(rec, JitBasic)
		}
	case JitBasic:
		if count >= c.policies.TierThresholdN3 && rec.argTypesStable() {
			c.promote(rec, JitOptimized)
		}
	}
	return rec.currentTier()
}

// estimateArtifactSize is a synthetic per-tier memory cost used only for
// the memory-accounting metrics; higher tiers hold more compiled state.
func estimateArtifactSize(tier Tier) int {
	return 256 * (int(tier) + 1)
}

func (c *Controller) promote(rec *FunctionRecord, target Tier) {
	key := CacheKey{ID: rec.ID, Tier: target}
	if artifact, hit := c.cache.Get(key); hit {
		_ = artifact
		rec.setTier(target)
		c.metrics.RecordTierPromotion()
		return
	}

	start := time.Now()
	artifact := Artifact{Key: key, Tier: target, Size: estimateArtifactSize(target)}
	elapsed := time.Since(start)
	c.metrics.RecordCompilation(target, elapsed)
	c.metrics.RecordMemoryAllocation(artifact.Size)
	c.cache.Put(artifact)
	rec.setTier(target)
	c.metrics.RecordTierPromotion()
	if target >= JitBasic {
		c.metrics.RecordHotspotDetected()
	}
	c.logger.Debug("jit tier promotion",
		zap.String("function", rec.Name),
		zap.String("id", string(rec.ID)),
		zap.Stringer("tier", target))
}

// Deoptimize bails a compiled function out to the next tier down,
// invalidating its cached artifacts so a re-promotion recompiles (spec
// §4.9: "the function's current tier is decremented and a deopt counter
// incremented").
func (c *Controller) Deoptimize(proc *value.Procedure, reason string) (Tier, error) {
	c.mu.Lock()
	rec, ok := c.records[proc]
	c.mu.Unlock()
	if !ok {
		return Interpreter, fmt.Errorf("jit: deoptimize called on untracked function")
	}
	newTier := rec.deoptimize(reason)
	c.cache.Invalidate(rec.ID)
	c.metrics.RecordDeoptimization()
	c.logger.Warn("jit deoptimization",
		zap.String("function", rec.Name),
		zap.String("reason", reason),
		zap.Stringer("tier", newTier))
	return newTier, nil
}

// Tier reports proc's current tier, or Interpreter if it has never been
// observed.
func (c *Controller) Tier(proc *value.Procedure) Tier {
	c.mu.Lock()
	rec, ok := c.records[proc]
	c.mu.Unlock()
	if !ok {
		return Interpreter
	}
	return rec.currentTier()
}

// LastDeoptReason returns the most recent deoptimization reason recorded
// for proc, or "" if none.
func (c *Controller) LastDeoptReason(proc *value.Procedure) string {
	c.mu.Lock()
	rec, ok := c.records[proc]
	c.mu.Unlock()
	if !ok {
		return ""
	}
	return rec.lastDeopt()
}

// CacheLen reports the compilation cache's current entry count.
func (c *Controller) CacheLen() int { return c.cache.Len() }
