package jit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/sjson"
)

// Percentiles summarizes a bounded sample window (spec §4.9: p50/p90/p95/p99
// plus min/max).
type Percentiles struct {
	P50, P90, P95, P99 time.Duration
	Min, Max           time.Duration
}

func calculatePercentiles(samples []time.Duration) Percentiles {
	if len(samples) == 0 {
		return Percentiles{}
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(p float64) time.Duration {
		i := int(float64(len(sorted)) * p)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return sorted[i]
	}
	return Percentiles{
		P50: idx(0.50),
		P90: idx(0.90),
		P95: idx(0.95),
		P99: idx(0.99),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
	}
}

// executionStats tracks total/min/max/average execution time plus a
// bounded recent-samples window for percentile analysis.
type executionStats struct {
	mu              sync.Mutex
	totalExecutions uint64
	totalTime       time.Duration
	minTime         time.Duration
	maxTime         time.Duration
	recent          []time.Duration
	windowSize      int
}

func newExecutionStats(windowSize int) *executionStats {
	return &executionStats{minTime: time.Duration(1<<63 - 1), windowSize: windowSize}
}

func (s *executionStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalExecutions++
	s.totalTime += d
	if d < s.minTime {
		s.minTime = d
	}
	if d > s.maxTime {
		s.maxTime = d
	}
	s.recent = append(s.recent, d)
	if len(s.recent) > s.windowSize {
		s.recent = s.recent[1:]
	}
}

func (s *executionStats) average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalExecutions == 0 {
		return 0
	}
	return s.totalTime / time.Duration(s.totalExecutions)
}

func (s *executionStats) percentiles() Percentiles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calculatePercentiles(s.recent)
}

func (s *executionStats) total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalExecutions
}

// compilationStats tracks compilation attempts/failures/timing for one tier.
type compilationStats struct {
	mu           sync.Mutex
	attempts     uint64
	failures     uint64
	totalTime    time.Duration
	minTime      time.Duration
	maxTime      time.Duration
	recentTimes  []time.Duration
	windowSize   int
}

func newCompilationStats(windowSize int) *compilationStats {
	return &compilationStats{minTime: time.Duration(1<<63 - 1), windowSize: windowSize}
}

func (s *compilationStats) recordSuccess(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	s.totalTime += d
	if d < s.minTime {
		s.minTime = d
	}
	if d > s.maxTime {
		s.maxTime = d
	}
	s.recentTimes = append(s.recentTimes, d)
	if len(s.recentTimes) > s.windowSize {
		s.recentTimes = s.recentTimes[1:]
	}
}

func (s *compilationStats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	s.failures++
}

func (s *compilationStats) averageTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == 0 {
		return 0
	}
	return s.totalTime / time.Duration(s.attempts)
}

func (s *compilationStats) successRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == 0 {
		return 1.0
	}
	return float64(s.attempts-s.failures) / float64(s.attempts)
}

func (s *compilationStats) snapshot() (attempts, failures uint64, avg time.Duration, rate float64) {
	return s.attempts, s.failures, s.averageTime(), s.successRate()
}

func (s *compilationStats) totalElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTime
}

// performanceCounters is the atomic event tally (spec §4.9 metrics list).
type performanceCounters struct {
	compilations         atomic.Uint64
	compilationFailures  atomic.Uint64
	cacheHits            atomic.Uint64
	cacheMisses          atomic.Uint64
	hotspotsDetected     atomic.Uint64
	tierPromotions       atomic.Uint64
	deoptimizations      atomic.Uint64
	cacheEvictions       atomic.Uint64
}

func (c *performanceCounters) cacheHitRate() float64 {
	hits := c.cacheHits.Load()
	misses := c.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// memoryStats tracks compiled-artifact memory usage.
type memoryStats struct {
	current atomic.Int64
	peak    atomic.Int64
	allocs  atomic.Uint64
	frees   atomic.Uint64
}

func (m *memoryStats) recordAllocation(size int) {
	m.allocs.Add(1)
	cur := m.current.Add(int64(size))
	for {
		peak := m.peak.Load()
		if cur <= peak || m.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
}

func (m *memoryStats) recordDeallocation(size int) {
	m.frees.Add(1)
	m.current.Add(-int64(size))
}

// PerformanceSummary is a point-in-time rollup suitable for a status line
// or a dashboard tile.
type PerformanceSummary struct {
	Uptime               time.Duration
	TotalExecutions      uint64
	ExecutionsPerSecond  float64
	AverageExecutionTime time.Duration
	TotalCompilationTime time.Duration
	CacheHitRate         float64
	MemoryUsage          int64
}

// Metrics is the JIT subsystem's metrics collector: execution timing,
// per-tier compilation stats, atomic event counters, cache stats, and
// compiled-artifact memory accounting (spec §4.9).
type Metrics struct {
	execution    *executionStats
	compilation  map[Tier]*compilationStats
	counters     performanceCounters
	memory       memoryStats
	startTime    time.Time
	samplingSize int
}

// NewMetrics builds an empty collector with the given percentile sampling
// window (spec §8's JIT.SamplingWindowSize).
func NewMetrics(samplingWindowSize int) *Metrics {
	if samplingWindowSize <= 0 {
		samplingWindowSize = 256
	}
	compilation := make(map[Tier]*compilationStats, len(allTiers()))
	for _, t := range allTiers() {
		compilation[t] = newCompilationStats(samplingWindowSize)
	}
	return &Metrics{
		execution:    newExecutionStats(samplingWindowSize),
		compilation:  compilation,
		startTime:    time.Now(),
		samplingSize: samplingWindowSize,
	}
}

func (m *Metrics) RecordExecution(d time.Duration) {
	m.execution.record(d)
}

func (m *Metrics) RecordCompilation(tier Tier, d time.Duration) {
	if s, ok := m.compilation[tier]; ok {
		s.recordSuccess(d)
	}
	m.counters.compilations.Add(1)
}

func (m *Metrics) RecordCompilationFailure(tier Tier) {
	if s, ok := m.compilation[tier]; ok {
		s.recordFailure()
	}
	m.counters.compilationFailures.Add(1)
}

func (m *Metrics) RecordCacheHit()  { m.counters.cacheHits.Add(1) }
func (m *Metrics) RecordCacheMiss() { m.counters.cacheMisses.Add(1) }

func (m *Metrics) RecordHotspotDetected() { m.counters.hotspotsDetected.Add(1) }
func (m *Metrics) RecordTierPromotion()   { m.counters.tierPromotions.Add(1) }
func (m *Metrics) RecordDeoptimization()  { m.counters.deoptimizations.Add(1) }
func (m *Metrics) RecordCacheEviction()   { m.counters.cacheEvictions.Add(1) }

func (m *Metrics) RecordMemoryAllocation(size int)   { m.memory.recordAllocation(size) }
func (m *Metrics) RecordMemoryDeallocation(size int) { m.memory.recordDeallocation(size) }

// TotalExecutions returns the cumulative count across every tier.
func (m *Metrics) TotalExecutions() uint64 { return m.execution.total() }

// ExecutionPercentiles returns the execution-time percentiles over the
// current sampling window.
func (m *Metrics) ExecutionPercentiles() Percentiles { return m.execution.percentiles() }

// CompilationPercentiles returns tier's compilation-time percentiles.
func (m *Metrics) CompilationPercentiles(tier Tier) Percentiles {
	s, ok := m.compilation[tier]
	if !ok {
		return Percentiles{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return calculatePercentiles(s.recentTimes)
}

func (m *Metrics) totalCompilationTime() time.Duration {
	var total time.Duration
	for _, t := range allTiers() {
		total += m.compilation[t].totalElapsed()
	}
	return total
}

// Summary computes the current PerformanceSummary.
func (m *Metrics) Summary() PerformanceSummary {
	uptime := time.Since(m.startTime)
	totalExec := m.execution.total()
	var execPerSec float64
	if uptime.Seconds() > 0 {
		execPerSec = float64(totalExec) / uptime.Seconds()
	}
	return PerformanceSummary{
		Uptime:               uptime,
		TotalExecutions:      totalExec,
		ExecutionsPerSecond:  execPerSec,
		AverageExecutionTime: m.execution.average(),
		TotalCompilationTime: m.totalCompilationTime(),
		CacheHitRate:         m.counters.cacheHitRate(),
		MemoryUsage:          m.memory.current.Load(),
	}
}

// GenerateReport renders the human-readable text report (spec §4.9's
// "on-demand report renders human-readable text").
func (m *Metrics) GenerateReport() string {
	summary := m.Summary()
	var b strings.Builder
	b.WriteString("=== JIT Performance Report ===\n")
	fmt.Fprintf(&b, "Uptime: %.2fs\n", summary.Uptime.Seconds())
	fmt.Fprintf(&b, "Total Executions: %d\n", summary.TotalExecutions)
	fmt.Fprintf(&b, "Executions/sec: %.2f\n", summary.ExecutionsPerSecond)
	fmt.Fprintf(&b, "Avg Execution Time: %s\n", summary.AverageExecutionTime)
	fmt.Fprintf(&b, "Total Compilation Time: %s\n", summary.TotalCompilationTime)
	fmt.Fprintf(&b, "Cache Hit Rate: %.2f%%\n", summary.CacheHitRate*100)
	fmt.Fprintf(&b, "Memory Usage: %d bytes\n", summary.MemoryUsage)

	b.WriteString("\n=== Compilation Stats by Tier ===\n")
	for _, t := range allTiers() {
		attempts, _, avg, rate := m.compilation[t].snapshot()
		fmt.Fprintf(&b, "%s: %d compilations, %s avg, %.2f%% success\n", t, attempts, avg, rate*100)
	}

	b.WriteString("\n=== Performance Counters ===\n")
	fmt.Fprintf(&b, "Hotspots Detected: %d\n", m.counters.hotspotsDetected.Load())
	fmt.Fprintf(&b, "Tier Promotions: %d\n", m.counters.tierPromotions.Load())
	fmt.Fprintf(&b, "Deoptimizations: %d\n", m.counters.deoptimizations.Load())
	fmt.Fprintf(&b, "Code Cache Evictions: %d\n", m.counters.cacheEvictions.Load())
	return b.String()
}

// ReportJSON renders the same data as a JSON document, built incrementally
// with sjson.Set rather than a struct marshal so a caller can patch
// individual fields into an existing document (e.g. attaching the JIT
// section to a larger status payload) the same way config.PatchField
// composes a document one dotted path at a time.
func (m *Metrics) ReportJSON() (string, error) {
	summary := m.Summary()
	doc := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		doc, err = sjson.Set(doc, path, value)
	}

	set("uptime_seconds", summary.Uptime.Seconds())
	set("total_executions", summary.TotalExecutions)
	set("executions_per_second", summary.ExecutionsPerSecond)
	set("average_execution_time_ns", summary.AverageExecutionTime.Nanoseconds())
	set("total_compilation_time_ns", summary.TotalCompilationTime.Nanoseconds())
	set("cache_hit_rate", summary.CacheHitRate)
	set("memory_usage_bytes", summary.MemoryUsage)
	set("hotspots_detected", m.counters.hotspotsDetected.Load())
	set("tier_promotions", m.counters.tierPromotions.Load())
	set("deoptimizations", m.counters.deoptimizations.Load())
	set("code_cache_evictions", m.counters.cacheEvictions.Load())

	for _, t := range allTiers() {
		attempts, failures, avg, rate := m.compilation[t].snapshot()
		prefix := "compilation_tiers." + t.String() + "."
		set(prefix+"attempts", attempts)
		set(prefix+"failures", failures)
		set(prefix+"average_time_ns", avg.Nanoseconds())
		set(prefix+"success_rate", rate)
	}
	if err != nil {
		return "", err
	}
	return doc, nil
}
