// Package io implements the IO coordinator of spec §4.6: it serializes
// and orders effectful operations (file/console/network IO) issued by
// concurrently-running threads so that two operations on the same
// resource observe a consistent happens-before order, while operations on
// distinct resources, or concurrent reads of the same resource, proceed
// without contention.
//
// Grounded directly on original_source/src/runtime/io_coordinator.rs for
// the operation lifecycle (coordinate -> lock -> run -> complete) and the
// conflict rule ("read conflicts only with write"); the mutex-guarded
// registry shape (sequence counter, id->metadata map, Stats() summary)
// follows the teacher's internal/interp/runtime/method_registry.go.
package io

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
)

// OperationType names the kind of effectful operation being coordinated.
type OperationType int

const (
	FileRead OperationType = iota
	FileWrite
	FileOpen
	FileClose
	Directory
	ConsoleOutput
	ConsoleInput
	Network
)

// LockKind is the access mode an Operation needs on its Resource.
type LockKind int

const (
	ReadLock LockKind = iota
	WriteLock
)

func lockKindFor(t OperationType) LockKind {
	switch t {
	case FileRead, ConsoleInput:
		return ReadLock
	default:
		return WriteLock
	}
}

// OperationStatus is an Operation's lifecycle state.
type OperationStatus int

const (
	Pending OperationStatus = iota
	InProgress
	Completed
	Failed
	Cancelled
)

// Parameters carries an operation's payload (spec §4.6 leaves the exact
// shape open; this mirrors the original's file-path/data/offset/length
// fields, the ones the stdlib IO primitives actually need).
type Parameters struct {
	FilePath string
	Data     []byte
	Offset   int64
	Length   int
	Metadata map[string]string
}

// Operation is one IO request tracked by the coordinator from submission
// through completion.
type Operation struct {
	ID         uint64
	Type       OperationType
	Resource   string
	Parameters Parameters
	ThreadID   string
	StartedAt  time.Time
	Status     OperationStatus
	dependsOn  []uint64
}

// Event records a completed (or cancelled) operation for the bounded
// history ring buffer (spec §4.6's debugging/observability surface).
type Event struct {
	ThreadID  string
	Timestamp time.Time
	Operation Operation
	Err       error
	Sequence  uint64
}

// Policies tunes the coordinator's behavior; the three constructors below
// mirror the original's new/minimal/high_throughput presets.
type Policies struct {
	TrackHistory                    bool
	MaxHistorySize                  int
	DefaultLockTimeout              time.Duration
	AllowConcurrentReads            bool
	MaxConcurrentOperationsPerThread int64
}

// DefaultPolicies balances observability and throughput.
func DefaultPolicies() Policies {
	return Policies{
		TrackHistory:                     true,
		MaxHistorySize:                   1000,
		DefaultLockTimeout:                10 * time.Second,
		AllowConcurrentReads:              true,
		MaxConcurrentOperationsPerThread:  10,
	}
}

// MinimalPolicies disables history tracking for low-overhead operation.
func MinimalPolicies() Policies {
	return Policies{
		TrackHistory:                     false,
		MaxHistorySize:                   100,
		DefaultLockTimeout:                1 * time.Second,
		AllowConcurrentReads:              true,
		MaxConcurrentOperationsPerThread:  5,
	}
}

// HighThroughputPolicies relaxes history tracking and raises the
// per-thread operation cap for workloads dominated by IO fan-out.
func HighThroughputPolicies() Policies {
	return Policies{
		TrackHistory:                     false,
		MaxHistorySize:                   500,
		DefaultLockTimeout:                5 * time.Second,
		AllowConcurrentReads:              true,
		MaxConcurrentOperationsPerThread:  50,
	}
}

type waiter struct {
	threadID string
	kind     LockKind
	ready    chan struct{}
}

type resourceLock struct {
	kind LockKind

	// writer is the holding threadID when kind == WriteLock. readers
	// tracks every threadID currently holding a concurrent read (kind ==
	// ReadLock), ref-counted per thread so a resource is only handed to
	// the next FIFO waiter once every concurrent reader has released it —
	// a bypassing second reader (granted without going through the wait
	// queue) must still block a subsequently queued writer until it too
	// releases (spec §4.6/§8: "both readers complete, then the writer").
	writer    string
	readers   map[string]int
	waitQueue *list.List // of *waiter
}

// Coordinator is the IO coordinator proper. Zero value is not usable;
// construct with New.
type Coordinator struct {
	mu       sync.Mutex
	locks    map[string]*resourceLock
	sems     map[string]*semaphore.Weighted
	seq      uint64
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
		locks:    make(map[string]*resourceLock),
		sems:     make(map[string]*semaphore.Weighted),
		policies: policies,
		logger:   logger,
	}
}

func (c *Coordinator) threadSemaphore(threadID string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.sems[threadID]
	if !ok {
		sem = semaphore.NewWeighted(c.policies.MaxConcurrentOperationsPerThread)
		c.sems[threadID] = sem
	}
	return sem
}

// Begin submits an operation. It fails at once with resource-exhausted if
// the calling thread is already at its concurrent-operation cap; otherwise
// it blocks (subject to ctx cancellation and the configured lock timeout)
// until the requested resource lock is granted.
// The returned release func must be called exactly once, with the
// operation's outcome, to release the lock and record history (spec
// §4.6's "operations observe a consistent happens-before order" rule:
// for any two operations on the same resource, the later-submitted one
// observes the earlier's effects iff at least one is a write).
func (c *Coordinator) Begin(ctx context.Context, threadID string, opType OperationType, resource string, params Parameters) (*Operation, func(err error), error) {
	sem := c.threadSemaphore(threadID)
	// The per-thread cap rejects the (N+1)-th concurrent operation
	// immediately rather than queuing it (spec §4.6 step 1, §8: "fails
	// resource-exhausted on the (N+1)-th"), so TryAcquire rather than a
	// blocking Acquire.
	if !sem.TryAcquire(1) {
		return nil, nil, lerrors.Newf(lerrors.ResourceExhausted,
			"thread %q already has %d concurrent IO operations in flight", threadID, c.policies.MaxConcurrentOperationsPerThread)
	}

	lockCtx := ctx
	var cancel context.CancelFunc
	if c.policies.DefaultLockTimeout > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, c.policies.DefaultLockTimeout)
		defer cancel()
	}
	kind := lockKindFor(opType)
	if err := c.acquireLock(lockCtx, threadID, resource, kind); err != nil {
		sem.Release(1)
		return nil, nil, err
	}

	c.mu.Lock()
	c.seq++
	op := &Operation{
		ID:         c.seq,
		Type:       opType,
		Resource:   resource,
		Parameters: params,
		ThreadID:   threadID,
		StartedAt:  time.Now(),
		Status:     InProgress,
	}
	c.mu.Unlock()

	c.logger.Debug("io operation begin", zap.Uint64("id", op.ID), zap.String("resource", resource), zap.String("thread", threadID))

	released := false
	release := func(opErr error) {
		if released {
			return
		}
		released = true
		c.releaseLock(resource, threadID)
		sem.Release(1)
		if opErr != nil {
			op.Status = Failed
		} else {
			op.Status = Completed
		}
		c.recordEvent(Event{ThreadID: threadID, Timestamp: time.Now(), Operation: *op, Err: opErr, Sequence: op.ID})
	}
	return op, release, nil
}

// acquireLock grants resource to threadID immediately if uncontended (or
// if both the holder and requester want ReadLock and concurrent reads are
// allowed), otherwise enqueues threadID in the resource's FIFO wait queue
// and blocks until woken or ctx is done.
func (c *Coordinator) acquireLock(ctx context.Context, threadID, resource string, kind LockKind) error {
	c.mu.Lock()
	lock, exists := c.locks[resource]
	if !exists {
		lock = &resourceLock{kind: kind, waitQueue: list.New()}
		if kind == ReadLock {
			lock.readers = map[string]int{threadID: 1}
		} else {
			lock.writer = threadID
		}
		c.locks[resource] = lock
		c.mu.Unlock()
		return nil
	}
	if kind == ReadLock && lock.kind == ReadLock && c.policies.AllowConcurrentReads {
		lock.readers[threadID]++
		c.mu.Unlock()
		return nil
	}
	w := &waiter{threadID: threadID, kind: kind, ready: make(chan struct{})}
	lock.waitQueue.PushBack(w)
	c.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		for e := lock.waitQueue.Front(); e != nil; e = e.Next() {
			if e.Value.(*waiter) == w {
				lock.waitQueue.Remove(e)
				break
			}
		}
		c.mu.Unlock()
		return ctx.Err()
	}
}

// releaseLock releases threadID's hold on resource. For a write lock this
// always hands off to the next FIFO waiter (or drops the lock entirely).
// For a read lock it decrements threadID's ref count and only hands off
// once every concurrent reader — not just the one calling release — has
// released, so a writer queued behind two bypassing readers waits for
// both (spec §4.6 "FIFO wait queue", §8's reader/writer ordering
// scenario).
func (c *Coordinator) releaseLock(resource, threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[resource]
	if !ok {
		return
	}
	if lock.kind == ReadLock {
		if lock.readers[threadID] == 0 {
			return
		}
		lock.readers[threadID]--
		if lock.readers[threadID] == 0 {
			delete(lock.readers, threadID)
		}
		if len(lock.readers) > 0 {
			return
		}
	} else if lock.writer != threadID {
		return
	}
	c.promoteNextLocked(resource, lock)
}

// promoteNextLocked hands resource to the next FIFO waiter, if any, else
// removes the lock entirely. Called with c.mu held.
func (c *Coordinator) promoteNextLocked(resource string, lock *resourceLock) {
	front := lock.waitQueue.Front()
	if front == nil {
		delete(c.locks, resource)
		return
	}
	lock.waitQueue.Remove(front)
	next := front.Value.(*waiter)
	lock.kind = next.kind
	if next.kind == ReadLock {
		lock.writer = ""
		lock.readers = map[string]int{next.threadID: 1}
	} else {
		lock.writer = next.threadID
		lock.readers = nil
	}
	close(next.ready)
}

// UnregisterThread removes threadID's entries from every lock's wait
// queue and drops its semaphore. The removed waiters are not woken: a
// Begin call blocked in one of them returns only when its lock timeout or
// ctx expires. Locks threadID already holds are not released.
func (c *Coordinator) UnregisterThread(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lock := range c.locks {
		for e := lock.waitQueue.Front(); e != nil; {
			next := e.Next()
			if e.Value.(*waiter).threadID == threadID {
				lock.waitQueue.Remove(e)
			}
			e = next
		}
	}
	delete(c.sems, threadID)
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

// History returns a snapshot of the recorded operation events.
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

// Action is one unit of coordinated work submitted to RunBatch.
type Action struct {
	ThreadID string
	Type     OperationType
	Resource string
	Params   Parameters
	Run      func(ctx context.Context) error
}

// RunBatch runs a set of IO actions concurrently, each going through the
// normal Begin/release coordination, and cancels the remaining actions as
// soon as any one fails — the ecosystem-standard errgroup fan-out/cancel
// pattern, used here for e.g. a `(map (lambda (f) (read-file f)) paths)`
// style concurrent read.
func (c *Coordinator) RunBatch(ctx context.Context, actions []Action) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range actions {
		a := a
		g.Go(func() error {
			_, release, err := c.Begin(gctx, a.ThreadID, a.Type, a.Resource, a.Params)
			if err != nil {
				return err
			}
			runErr := a.Run(gctx)
			release(runErr)
			return runErr
		})
	}
	return g.Wait()
}
