// Package config holds the recognized configuration options of spec §6.5:
// type level, GC tuning, JIT tier thresholds, IO coordinator limits, error
// propagator policy, and macro expander limits.
package config

import (
	"time"

	"github.com/goccy/go-yaml"
)

// TypeLevel selects the type-system discipline (spec §6.5).
type TypeLevel int

const (
	Dynamic TypeLevel = iota
	Gradual
	Static
)

// GC holds garbage-collector tuning parameters.
type GC struct {
	YoungPromotionAge    int           `yaml:"young_promotion_age"`
	OldGenConcurrent     bool          `yaml:"old_gen_concurrent"`
	CardSizeBytes        int           `yaml:"card_size_bytes"`
	IncrementalStepBudget time.Duration `yaml:"incremental_step_budget"`
}

// JIT holds tier-promotion thresholds and cache bounds.
type JIT struct {
	TierThresholdN1     uint64 `yaml:"tier_threshold_n1"`
	TierThresholdN2     uint64 `yaml:"tier_threshold_n2"`
	TierThresholdN3     uint64 `yaml:"tier_threshold_n3"`
	CodeCacheSize       int    `yaml:"code_cache_size"`
	SamplingWindowSize  int    `yaml:"sampling_window_size"`
	ArgStabilityWindow  int    `yaml:"arg_stability_window"`
}

// IOCoordinator holds IO coordinator limits.
type IOCoordinator struct {
	DefaultLockTimeout      time.Duration `yaml:"default_lock_timeout"`
	PerThreadOperationCap   int           `yaml:"per_thread_operation_cap"`
	ConcurrentReadsEnabled  bool          `yaml:"concurrent_reads_enabled"`
	HistoryBound            int           `yaml:"history_bound"`
}

// ErrorPropagator holds the error propagation coordinator's policy.
type ErrorPropagator struct {
	Strategy          string `yaml:"strategy"` // broadcast|targeted|parent|severity-based|custom
	HistoryBound      int    `yaml:"history_bound"`
	StackTraceMaxDepth int   `yaml:"stack_trace_max_depth"`
	FatalShutsDownAll bool   `yaml:"fatal_shuts_down_all"`
}

// MacroExpander holds expander limits.
type MacroExpander struct {
	MaxRecursionDepth int `yaml:"max_recursion_depth"`
}

// Config aggregates every recognized option (spec §6.5).
type Config struct {
	TypeLevel       TypeLevel       `yaml:"type_level"`
	GC              GC              `yaml:"gc"`
	JIT             JIT             `yaml:"jit"`
	IOCoordinator   IOCoordinator   `yaml:"io_coordinator"`
	ErrorPropagator ErrorPropagator `yaml:"error_propagator"`
	MacroExpander   MacroExpander   `yaml:"macro_expander"`
}

// Default returns the documented defaults (spec §4.9, §4.8, §4.6, §4.7).
func Default() Config {
	return Config{
		TypeLevel: Dynamic,
		GC: GC{
			YoungPromotionAge:     3,
			OldGenConcurrent:      true,
			CardSizeBytes:         4096,
			IncrementalStepBudget: 500 * time.Microsecond,
		},
		JIT: JIT{
			TierThresholdN1:    10,
			TierThresholdN2:    100,
			TierThresholdN3:    1000,
			CodeCacheSize:      512,
			SamplingWindowSize: 256,
			ArgStabilityWindow: 8,
		},
		IOCoordinator: IOCoordinator{
			DefaultLockTimeout:     5 * time.Second,
			PerThreadOperationCap:  64,
			ConcurrentReadsEnabled: true,
			HistoryBound:           1024,
		},
		ErrorPropagator: ErrorPropagator{
			Strategy:          "severity-based",
			HistoryBound:      1024,
			StackTraceMaxDepth: 64,
			FatalShutsDownAll: true,
		},
		MacroExpander: MacroExpander{
			MaxRecursionDepth: 500,
		},
	}
}

// Load parses YAML bytes over the documented defaults: fields absent from
// the document keep their default value.
func Load(data []byte) (Config, error) {
	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders cfg back to YAML, the inverse of Load.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
