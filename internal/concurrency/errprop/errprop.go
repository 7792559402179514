// Package errprop implements the error propagation coordinator of spec
// §4.7: a per-thread error stack and state machine, severity/category
// classification, cross-thread propagation, and a bounded history ring
// buffer for postmortem inspection.
//
// Grounded directly on original_source/src/runtime/error_propagation.rs
// for the state machine (Normal -> ErrorOccurred -> Propagating ->
// PropagationCompleted/Failed), the severity/category taxonomy, and the
// propagation-strategy shapes (Broadcast/Targeted/Parent/SeverityBased);
// the mutex-guarded registry idiom (sequence counter, per-thread map,
// Stats() summary) follows the teacher's
// internal/interp/runtime/method_registry.go.
package errprop

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
)

// Severity ranks how serious a reported error is (spec §4.7).
type Severity int

const (
	Info Severity = iota
	Warning
	ErrorSeverity
	Critical
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case ErrorSeverity:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Category buckets an error by originating subsystem (spec §4.7).
type Category int

const (
	Syntax Category = iota
	Type
	Runtime
	IO
	Effect
	Resource
	Concurrency
	System
	User
)

func (c Category) String() string {
	switch c {
	case Syntax:
		return "Syntax"
	case Type:
		return "Type"
	case Runtime:
		return "Runtime"
	case IO:
		return "IO"
	case Effect:
		return "Effect"
	case Resource:
		return "Resource"
	case Concurrency:
		return "Concurrency"
	case System:
		return "System"
	case User:
		return "User"
	default:
		return "Unknown"
	}
}

// PropagationState is a thread's current place in the error-propagation
// state machine.
type PropagationState int

const (
	Normal PropagationState = iota
	Occurred
	Propagating
	PropagationCompleted
	Handled
	PropagationFailed
)

// StrategyKind selects how propagation targets are computed.
type StrategyKind int

const (
	Broadcast StrategyKind = iota
	Targeted
	Parent
	SeverityBased
	CustomStrategy
)

// Strategy picks which registered threads receive a propagated error.
type Strategy struct {
	Kind    StrategyKind
	Targets []string                   // used when Kind == Targeted
	Custom  func(*ThreadError) []string // used when Kind == CustomStrategy
}

// ThreadError is an error enriched with the context spec §4.7 requires
// for cross-thread propagation: a stable id, the stack trace at the
// point of report, the threads it has crossed, and its classification.
type ThreadError struct {
	ID                uint64
	Err               error
	OriginatingThread string
	StackTrace        lerrors.StackTrace
	PropagationPath   []string
	OccurredAt        time.Time
	Severity          Severity
	Category          Category
	Context           map[string]string
}

// ThreadErrorContext is the per-thread error stack and state (spec §4.7).
type ThreadErrorContext struct {
	ThreadID      string
	ErrorStack    []*ThreadError
	State         PropagationState
	LastErrorTime time.Time
	Generation    uint64
}

// EventType names what happened in an Event.
type EventType int

const (
	EventOccurred EventType = iota
	EventPropagating
	EventPropagationCompleted
	EventHandled
	EventPropagationFailed
	EventThreadShutdown
)

// Event records one step of an error's lifecycle for the history buffer.
type Event struct {
	Sequence  uint64
	Type      EventType
	ThreadID  string
	Error     *ThreadError
	Timestamp time.Time
	Context   string
}

// MessageKind distinguishes a propagated Message's payload.
type MessageKind int

const (
	MessagePropagate MessageKind = iota
	MessageFatalShutdown
)

// Message is delivered to a thread's channel (registered via
// RegisterThread) when an error is propagated to it or a fatal error
// triggers shutdown.
type Message struct {
	Kind    MessageKind
	Error   *ThreadError
	Summary string
}

// Policies tunes propagation behavior; the three constructors mirror the
// original's new/minimal/debug presets.
type Policies struct {
	TrackHistory                 bool
	MaxHistorySize               int
	PreserveStackTraces          bool
	EnableCrossThreadPropagation bool
	DefaultStrategy              Strategy
	FatalErrorsShutdownAll       bool
}

// DefaultPolicies tracks history, preserves stack traces, and propagates
// by severity.
func DefaultPolicies() Policies {
	return Policies{
		TrackHistory:                 true,
		MaxHistorySize:               1000,
		PreserveStackTraces:          true,
		EnableCrossThreadPropagation: true,
		DefaultStrategy:              Strategy{Kind: SeverityBased},
		FatalErrorsShutdownAll:       true,
	}
}

// MinimalPolicies disables history/propagation for low overhead.
func MinimalPolicies() Policies {
	return Policies{
		TrackHistory:                 false,
		MaxHistorySize:               100,
		PreserveStackTraces:          false,
		EnableCrossThreadPropagation: false,
		DefaultStrategy:              Strategy{Kind: Parent},
		FatalErrorsShutdownAll:       false,
	}
}

// DebugPolicies broadcasts every error with full history and stack traces.
func DebugPolicies() Policies {
	return Policies{
		TrackHistory:                 true,
		MaxHistorySize:               5000,
		PreserveStackTraces:          true,
		EnableCrossThreadPropagation: true,
		DefaultStrategy:              Strategy{Kind: Broadcast},
		FatalErrorsShutdownAll:       true,
	}
}

// Coordinator is the error propagation coordinator. Zero value is not
// usable; construct with New.
type Coordinator struct {
	mu       sync.RWMutex
	contexts map[string]*ThreadErrorContext
	channels map[string]chan Message

	seq      atomic.Uint64
	policies Policies
	logger   *zap.Logger

	historyMu sync.Mutex
	history   []Event
}

// New creates a Coordinator with the given policies. A nil logger is
// replaced with a no-op logger.
func New(policies Policies, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		contexts: make(map[string]*ThreadErrorContext),
		channels: make(map[string]chan Message),
		policies: policies,
		logger:   logger,
	}
}

// RegisterThread creates threadID's error context and returns the
// channel it should drain for propagated errors and shutdown
// notifications.
func (c *Coordinator) RegisterThread(threadID string) <-chan Message {
	ch := make(chan Message, 16)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts[threadID] = &ThreadErrorContext{ThreadID: threadID, State: Normal}
	c.channels[threadID] = ch
	return ch
}

// UnregisterThread removes threadID's context and closes its channel.
func (c *Coordinator) UnregisterThread(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.contexts, threadID)
	if ch, ok := c.channels[threadID]; ok {
		close(ch)
		delete(c.channels, threadID)
	}
}

// ReportError records err as having occurred on threadID, classifies its
// severity/category, appends it to the thread's error stack, and — per
// policy — propagates it to other threads and/or triggers a fatal
// shutdown broadcast.
func (c *Coordinator) ReportError(threadID string, err error, trace lerrors.StackTrace, context map[string]string) *ThreadError {
	id := c.seq.Add(1)
	if !c.policies.PreserveStackTraces {
		trace = nil
	}

	te := &ThreadError{
		ID:                id,
		Err:               err,
		OriginatingThread: threadID,
		StackTrace:        trace,
		PropagationPath:   []string{threadID},
		OccurredAt:        time.Now(),
		Severity:          classifySeverity(err),
		Category:          classifyCategory(err),
		Context:           context,
	}

	c.mu.Lock()
	ctx, ok := c.contexts[threadID]
	if !ok {
		ctx = &ThreadErrorContext{ThreadID: threadID}
		c.contexts[threadID] = ctx
	}
	ctx.ErrorStack = append(ctx.ErrorStack, te)
	ctx.State = Occurred
	ctx.LastErrorTime = te.OccurredAt
	ctx.Generation++
	c.mu.Unlock()

	c.recordEvent(Event{Sequence: c.seq.Add(1), Type: EventOccurred, ThreadID: threadID, Error: te, Timestamp: time.Now()})

	if c.policies.EnableCrossThreadPropagation && shouldPropagate(te) {
		c.propagate(te)
	}
	if te.Severity == Fatal && c.policies.FatalErrorsShutdownAll {
		c.broadcastFatalShutdown(te)
	}
	return te
}

func (c *Coordinator) propagate(te *ThreadError) {
	targets := c.propagationTargets(te)
	if len(targets) == 0 {
		return
	}

	c.mu.Lock()
	if ctx, ok := c.contexts[te.OriginatingThread]; ok {
		ctx.State = Propagating
	}
	c.mu.Unlock()

	c.mu.RLock()
	for _, target := range targets {
		ch, ok := c.channels[target]
		if !ok {
			continue
		}
		select {
		case ch <- Message{Kind: MessagePropagate, Error: te}:
		default:
			c.logger.Warn("error propagation channel full, dropping", zap.String("target", target), zap.Uint64("error_id", te.ID))
		}
	}
	c.mu.RUnlock()

	c.recordEvent(Event{
		Sequence: c.seq.Add(1), Type: EventPropagating, ThreadID: te.OriginatingThread,
		Error: te, Timestamp: time.Now(), Context: fmt.Sprintf("propagating to %d threads", len(targets)),
	})
}

func (c *Coordinator) broadcastFatalShutdown(te *ThreadError) {
	msg := Message{Kind: MessageFatalShutdown, Error: te, Summary: "fatal error on " + te.OriginatingThread}
	c.mu.RLock()
	for _, ch := range c.channels {
		select {
		case ch <- msg:
		default:
		}
	}
	c.mu.RUnlock()
	c.recordEvent(Event{Sequence: c.seq.Add(1), Type: EventThreadShutdown, ThreadID: te.OriginatingThread, Error: te, Timestamp: time.Now()})
}

func (c *Coordinator) propagationTargets(te *ThreadError) []string {
	strategy := c.policies.DefaultStrategy
	switch strategy.Kind {
	case Broadcast:
		return c.allThreadsExcept(te.OriginatingThread)
	case Targeted:
		return strategy.Targets
	case Parent:
		return nil
	case SeverityBased:
		if te.Severity >= Critical {
			return c.allThreadsExcept(te.OriginatingThread)
		}
		return nil
	case CustomStrategy:
		if strategy.Custom != nil {
			return strategy.Custom(te)
		}
		return nil
	default:
		return nil
	}
}

func (c *Coordinator) allThreadsExcept(exclude string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.contexts))
	for id := range c.contexts {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// shouldPropagate mirrors the original's rule: critical/fatal errors
// always propagate; plain errors propagate only when concurrency-related.
func shouldPropagate(te *ThreadError) bool {
	switch te.Severity {
	case Critical, Fatal:
		return true
	case ErrorSeverity:
		return te.Category == Concurrency
	default:
		return false
	}
}

// classifySeverity uses the module's own typed lerrors.Kind when err
// carries one (a refinement over the original's plain message-substring
// heuristic, available because this codebase's errors are already
// classified at construction), falling back to the same substring
// heuristic the original uses for a plain Go error.
func classifySeverity(err error) Severity {
	if lerr, ok := asLambdustError(err); ok {
		switch lerr.Kind {
		case lerrors.Fatal:
			return Fatal
		case lerrors.OutOfMemory, lerrors.ResourceExhausted:
			return Critical
		case lerrors.Timeout:
			return Warning
		default:
			return ErrorSeverity
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "fatal") || strings.Contains(msg, "panic"):
		return Fatal
	case strings.Contains(msg, "critical") || strings.Contains(msg, "thread"):
		return Critical
	case strings.Contains(msg, "warning"):
		return Warning
	default:
		return ErrorSeverity
	}
}

func classifyCategory(err error) Category {
	if lerr, ok := asLambdustError(err); ok {
		switch lerr.Kind {
		case lerrors.SyntaxError:
			return Syntax
		case lerrors.TypeError:
			return Type
		case lerrors.IOError:
			return IO
		case lerrors.ResourceExhausted, lerrors.OutOfMemory:
			return Resource
		case lerrors.Timeout:
			return Concurrency
		case lerrors.Fatal:
			return System
		default:
			return Runtime
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "syntax") || strings.Contains(msg, "parse"):
		return Syntax
	case strings.Contains(msg, "type"):
		return Type
	case strings.Contains(msg, "io") || strings.Contains(msg, "file"):
		return IO
	case strings.Contains(msg, "effect"):
		return Effect
	case strings.Contains(msg, "memory") || strings.Contains(msg, "resource"):
		return Resource
	case strings.Contains(msg, "thread") || strings.Contains(msg, "concurrency"):
		return Concurrency
	case strings.Contains(msg, "system"):
		return System
	default:
		return Runtime
	}
}

func asLambdustError(err error) (*lerrors.Error, bool) {
	lerr, ok := err.(*lerrors.Error)
	return lerr, ok
}

func (c *Coordinator) recordEvent(ev Event) {
	if !c.policies.TrackHistory {
		return
	}
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	c.history = append(c.history, ev)
	if len(c.history) > c.policies.MaxHistorySize {
		c.history = c.history[len(c.history)-c.policies.MaxHistorySize:]
	}
}

// Statistics summarizes error occurrence and propagation across threads.
type Statistics struct {
	ActiveThreads     int
	TotalErrors       int
	ErrorsBySeverity  map[Severity]int
	ErrorsByCategory  map[Category]int
	ThreadsWithErrors int
	PropagatedErrors  int
}

// Stats computes a Statistics snapshot, matching the teacher registry's
// Stats()-summary idiom.
func (c *Coordinator) Stats() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Statistics{
		ActiveThreads:    len(c.contexts),
		ErrorsBySeverity: make(map[Severity]int),
		ErrorsByCategory: make(map[Category]int),
	}
	for _, ctx := range c.contexts {
		if len(ctx.ErrorStack) == 0 {
			continue
		}
		stats.ThreadsWithErrors++
		stats.TotalErrors += len(ctx.ErrorStack)
		for _, te := range ctx.ErrorStack {
			stats.ErrorsBySeverity[te.Severity]++
			stats.ErrorsByCategory[te.Category]++
		}
	}

	c.historyMu.Lock()
	for _, ev := range c.history {
		if ev.Type == EventPropagating {
			stats.PropagatedErrors++
		}
	}
	c.historyMu.Unlock()
	return stats
}

// History returns a snapshot of recorded events.
func (c *Coordinator) History() []Event {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	out := make([]Event, len(c.history))
	copy(out, c.history)
	return out
}

// ClearHistory discards all recorded events.
func (c *Coordinator) ClearHistory() {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	c.history = nil
}

// ThreadContext returns threadID's current error context.
func (c *Coordinator) ThreadContext(threadID string) (*ThreadErrorContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctx, ok := c.contexts[threadID]
	return ctx, ok
}

// ClearThreadErrors resets threadID's error stack to Normal.
func (c *Coordinator) ClearThreadErrors(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx, ok := c.contexts[threadID]; ok {
		ctx.ErrorStack = nil
		ctx.State = Normal
	}
}

