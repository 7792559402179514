// Package lambdust is the public facade: it wires the value model, thread-
// safe environment, macro expander, evaluator, GC heap, JIT tier
// controller, IO coordinator, and error propagation coordinator into one
// embeddable Runtime, the way the teacher's pkg/dwscript wires its lexer,
// parser, semantic analyzer, and interpreter behind a single entry point.
//
// Building the AST that Eval consumes is the caller's responsibility
// (spec §6.1: the parser is an external collaborator, out of scope here);
// this package starts one call-stack step later, at a tree of ast.Node
// values.
package lambdust

import (
	"fmt"
	stdio "io"
	"time"

	"go.uber.org/zap"

	"github.com/lambdust-scheme/lambdust/internal/ast"
	"github.com/lambdust-scheme/lambdust/internal/concurrency/errprop"
	"github.com/lambdust-scheme/lambdust/internal/concurrency/io"
	"github.com/lambdust-scheme/lambdust/internal/config"
	"github.com/lambdust-scheme/lambdust/internal/effect"
	"github.com/lambdust-scheme/lambdust/internal/environment"
	"github.com/lambdust-scheme/lambdust/internal/eval"
	"github.com/lambdust-scheme/lambdust/internal/gc"
	"github.com/lambdust-scheme/lambdust/internal/jit"
	"github.com/lambdust-scheme/lambdust/internal/logging"
	"github.com/lambdust-scheme/lambdust/internal/macro"
	"github.com/lambdust-scheme/lambdust/internal/primitive"
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// mainThreadID is the identity every Runtime registers with the GC heap
// and error propagator for its own top-level evaluation, and the thread ID
// its console IO context submits to the IO coordinator under (the
// coordinator has no registration step; it tracks a thread from its first
// Begin). Embedders driving additional goroutines should register further
// thread IDs directly against Runtime.Heap/Errors.
const mainThreadID = "main"

// defaultEvalMaxDepth bounds a Runtime's evaluator call-stack depth; see
// New's construction comment.
const defaultEvalMaxDepth = 10000

// Runtime bundles one wired instance of every core component (spec §2's
// system overview, §4's per-component design) behind a single Eval entry
// point. The zero value is not usable; construct with New.
type Runtime struct {
	Config config.Config
	Logger *zap.Logger

	Globals  *environment.Environment
	Expander *macro.Expander
	Eval     *eval.Evaluator
	Heap     *gc.Heap
	JIT      *jit.Controller
	IO       *io.Coordinator
	Errors   *errprop.Coordinator

	errorMsgs <-chan errprop.Message
}

// New wires a Runtime from cfg (spec §6.5's recognized options). A nil
// logger builds a no-op logger (spec SPEC_FULL.md A.1), matching every
// wired component's own nil-logger convention.
func New(cfg config.Config, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = logging.Noop()
	}

	globals := environment.New()
	primitive.RegisterCore(globals)

	// 0 lets NewExpander fall back to its own default debug-trace bound;
	// spec §6.5 names a macro-expander recursion-depth option but no
	// separate trace-bound option, so there is no config field to pass.
	expander := macro.NewExpander(cfg.MacroExpander.MaxRecursionDepth, 0)

	heap := gc.New(gc.Policies{
		PromotionAge:            cfg.GC.YoungPromotionAge,
		CardSize:                uintptr(cfg.GC.CardSizeBytes),
		ConcurrentOldGenEnabled: cfg.GC.OldGenConcurrent,
		IncrementalStepBudget:   cfg.GC.IncrementalStepBudget,
	})

	jitController := jit.New(jit.Policies{
		TierThresholdN1:    cfg.JIT.TierThresholdN1,
		TierThresholdN2:    cfg.JIT.TierThresholdN2,
		TierThresholdN3:    cfg.JIT.TierThresholdN3,
		CodeCacheSize:      cfg.JIT.CodeCacheSize,
		SamplingWindowSize: cfg.JIT.SamplingWindowSize,
		ArgStabilityWindow: cfg.JIT.ArgStabilityWindow,
	}, logger)

	ioCoord := io.New(io.Policies{
		TrackHistory:                     true,
		MaxHistorySize:                   cfg.IOCoordinator.HistoryBound,
		DefaultLockTimeout:                cfg.IOCoordinator.DefaultLockTimeout,
		AllowConcurrentReads:              cfg.IOCoordinator.ConcurrentReadsEnabled,
		MaxConcurrentOperationsPerThread:  int64(cfg.IOCoordinator.PerThreadOperationCap),
	}, logger)

	errCoord := errprop.New(errprop.Policies{
		TrackHistory:                 true,
		MaxHistorySize:               cfg.ErrorPropagator.HistoryBound,
		PreserveStackTraces:          cfg.ErrorPropagator.StackTraceMaxDepth > 0,
		EnableCrossThreadPropagation: true,
		DefaultStrategy:              errprop.Strategy{Kind: strategyKindFromString(cfg.ErrorPropagator.Strategy)},
		FatalErrorsShutdownAll:       cfg.ErrorPropagator.FatalShutsDownAll,
	}, logger)

	// spec §6.5 recognizes no dedicated evaluator call-stack-depth option
	// (MacroExpander.MaxRecursionDepth bounds macro expansion, not
	// procedure-call nesting); defaultEvalMaxDepth is this facade's own
	// choice, generous enough that only genuine infinite non-tail
	// recursion trips it.
	evaluator := eval.New(expander, logger, defaultEvalMaxDepth)
	evaluator.Heap = heap
	evaluator.Profiler = profilerAdapter{jitController}
	evaluator.Globals = globals

	heap.RegisterThread(mainThreadID)
	msgs := errCoord.RegisterThread(mainThreadID)

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Globals:   globals,
		Expander:  expander,
		Eval:      evaluator,
		Heap:      heap,
		JIT:       jitController,
		IO:        ioCoord,
		Errors:    errCoord,
		errorMsgs: msgs,
	}
}

// profilerAdapter satisfies eval.CallProfiler by forwarding to a
// *jit.Controller, whose RecordCall returns the resulting Tier — a value
// eval.CallProfiler's narrower interface has no use for.
type profilerAdapter struct {
	controller *jit.Controller
}

func (p profilerAdapter) RecordCall(proc *value.Procedure, args []value.Value, elapsed time.Duration) {
	p.controller.RecordCall(proc, args, elapsed)
}

// Run evaluates node against the runtime's global environment (spec §4.4),
// then collapses a top-level *effect.Monadic result (spec §4.4's
// "run-monadic" step, "invoked at the top level and at explicit
// boundaries") the same way an explicit `(run-monadic expr)` would —
// source that calls `display`/`read-line` at the top level without
// wrapping it in run-monadic still takes effect once Run returns. Uncaught
// errors, whether raised during evaluation or while collapsing the
// monad, are reported to the error propagation coordinator (spec §7)
// before being returned to the caller.
func (r *Runtime) Run(node ast.Node) (value.Value, error) {
	v, err := r.Eval.Eval(node, r.Globals)
	if err != nil {
		r.Errors.ReportError(mainThreadID, err, r.Eval.StackTrace(), nil)
		return nil, err
	}
	if m, ok := v.(*effect.Monadic); ok {
		v, err = effect.Run(m, r.Eval.IOContext, r.Globals)
		if err != nil {
			r.Errors.ReportError(mainThreadID, err, r.Eval.StackTrace(), nil)
			return nil, err
		}
	}
	return v, nil
}

// BindConsole binds out/in as the main thread's console IO context,
// exposes it to the evaluator's run-monadic boundary (spec §4.4) as
// Eval.IOContext, and installs the IO-effectful `display`/`read-line`
// primitives (spec §6.2, §4.6) into the runtime's global environment,
// routed through the IO coordinator's lock protocol.
func (r *Runtime) BindConsole(out stdio.Writer, in stdio.Reader) *io.ThreadIOContext {
	ctx := io.NewThreadIOContext(r.IO, mainThreadID, out, in)
	r.Eval.IOContext = ctx
	primitive.RegisterIO(r.Globals)
	return ctx
}

// MetricsReport renders the JIT controller's human-readable performance
// report (spec §4.9).
func (r *Runtime) MetricsReport() string {
	return r.JIT.Metrics().GenerateReport()
}

// MetricsReportJSON renders the JIT controller's performance report as
// JSON (spec §4.9).
func (r *Runtime) MetricsReportJSON() (string, error) {
	return r.JIT.Metrics().ReportJSON()
}

// Close unregisters the runtime's main thread from every component that
// tracks per-thread state. It does not stop any goroutines the caller
// spawned against r.IO/r.Errors/r.Heap directly.
func (r *Runtime) Close() {
	r.Heap.UnregisterThread(mainThreadID)
	r.IO.UnregisterThread(mainThreadID)
	r.Errors.UnregisterThread(mainThreadID)
}

// Version is the facade's semantic version, reported by cmd/lambdust's
// version subcommand.
const Version = "0.1.0-dev"

func (r *Runtime) String() string {
	return fmt.Sprintf("lambdust.Runtime{type_level=%v}", r.Config.TypeLevel)
}

// strategyKindFromString maps config.ErrorPropagator.Strategy's recognized
// values (spec §6.5: "broadcast|targeted|parent|severity-based|custom") to
// errprop.StrategyKind, defaulting to SeverityBased for an unrecognized or
// empty value the way config.Default() itself defaults to "severity-based".
func strategyKindFromString(s string) errprop.StrategyKind {
	switch s {
	case "broadcast":
		return errprop.Broadcast
	case "targeted":
		return errprop.Targeted
	case "parent":
		return errprop.Parent
	case "custom":
		return errprop.CustomStrategy
	default:
		return errprop.SeverityBased
	}
}
