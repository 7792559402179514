package io

import (
	"context"
	"sync"
	"testing"
	"time"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginReleaseRoundTrip(t *testing.T) {
	c := New(DefaultPolicies(), nil)
	op, release, err := c.Begin(context.Background(), "t1", FileWrite, "/tmp/a", Parameters{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), op.ID)
	release(nil)

	events := c.History()
	require.Len(t, events, 1)
	assert.Equal(t, Completed, events[0].Operation.Status)
}

func TestConcurrentReadsDoNotBlockEachOther(t *testing.T) {
	c := New(DefaultPolicies(), nil)
	ctx := context.Background()

	_, release1, err := c.Begin(ctx, "reader-1", FileRead, "/tmp/shared", Parameters{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, release2, err := c.Begin(ctx, "reader-2", FileRead, "/tmp/shared", Parameters{})
		require.NoError(t, err)
		release2(nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second concurrent read was blocked")
	}
	release1(nil)
}

func TestWriteWaitsForAllConcurrentReadersToRelease(t *testing.T) {
	c := New(DefaultPolicies(), nil)
	ctx := context.Background()

	_, release1, err := c.Begin(ctx, "reader-1", FileRead, "/tmp/shared", Parameters{})
	require.NoError(t, err)
	_, release2, err := c.Begin(ctx, "reader-2", FileRead, "/tmp/shared", Parameters{})
	require.NoError(t, err)

	writerGranted := make(chan struct{})
	go func() {
		_, releaseW, err := c.Begin(ctx, "writer-1", FileWrite, "/tmp/shared", Parameters{})
		require.NoError(t, err)
		close(writerGranted)
		releaseW(nil)
	}()

	// Releasing only the first reader must not let the writer in while the
	// second reader (granted without ever touching the wait queue) is
	// still active.
	release1(nil)
	select {
	case <-writerGranted:
		t.Fatal("writer acquired the lock while a concurrent reader was still active")
	case <-time.After(50 * time.Millisecond):
	}

	release2(nil)
	select {
	case <-writerGranted:
	case <-time.After(time.Second):
		t.Fatal("writer never acquired the lock after both readers released")
	}
}

func TestWriteExcludesSubsequentWrite(t *testing.T) {
	c := New(DefaultPolicies(), nil)
	ctx := context.Background()

	_, release1, err := c.Begin(ctx, "writer-1", FileWrite, "/tmp/exclusive", Parameters{})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	secondGranted := make(chan struct{})
	go func() {
		_, release2, err := c.Begin(ctx, "writer-2", FileWrite, "/tmp/exclusive", Parameters{})
		require.NoError(t, err)
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		release2(nil)
		close(secondGranted)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, "first-still-holding")
	mu.Unlock()
	release1(nil)

	select {
	case <-secondGranted:
	case <-time.After(time.Second):
		t.Fatal("second writer never acquired the lock")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, "first-still-holding", order[0])
	assert.Equal(t, "second", order[1])
}

func TestPerThreadOperationCapRejectsExcessConcurrentOpsImmediately(t *testing.T) {
	policies := DefaultPolicies()
	policies.MaxConcurrentOperationsPerThread = 1
	c := New(policies, nil)

	_, release, err := c.Begin(context.Background(), "t1", FileWrite, "/tmp/a", Parameters{})
	require.NoError(t, err)
	defer release(nil)

	start := time.Now()
	_, _, err = c.Begin(context.Background(), "t1", FileWrite, "/tmp/b", Parameters{})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 50*time.Millisecond, "the (N+1)-th operation must be rejected immediately, not queued")
	var lerr *lerrors.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, lerrors.ResourceExhausted, lerr.Kind)
}

func TestRunBatchCancelsRemainingOnFirstError(t *testing.T) {
	c := New(DefaultPolicies(), nil)
	boom := assert.AnError
	actions := []Action{
		{ThreadID: "t1", Type: FileRead, Resource: "/tmp/a", Run: func(ctx context.Context) error { return boom }},
		{ThreadID: "t1", Type: FileRead, Resource: "/tmp/b", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}
	err := c.RunBatch(context.Background(), actions)
	assert.ErrorIs(t, err, boom)
}

func TestUnregisterThreadDropsSemaphore(t *testing.T) {
	c := New(DefaultPolicies(), nil)
	_ = c.threadSemaphore("t1")
	c.UnregisterThread("t1")
	c.mu.Lock()
	_, exists := c.sems["t1"]
	c.mu.Unlock()
	assert.False(t, exists)
}
