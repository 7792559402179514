package gc

import (
	"testing"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/lambdust-scheme/lambdust/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectYoungReclaimsUnreachableObjects(t *testing.T) {
	h := New(DefaultPolicies())

	kept, err := h.Allocate(value.NewInteger(1), 16)
	require.NoError(t, err)
	h.AddGlobalRoot(kept)

	_, err = h.Allocate(value.NewInteger(2), 16)
	require.NoError(t, err)

	result, err := h.CollectYoung()
	require.NoError(t, err)
	assert.Equal(t, 1, result.ObjectsCollected)
	assert.Equal(t, 1, h.ObjectCount())
}

func TestCollectYoungPromotesAfterSurvivingThreshold(t *testing.T) {
	policies := DefaultPolicies()
	policies.PromotionAge = 2
	h := New(policies)

	kept, err := h.Allocate(value.NewInteger(1), 16)
	require.NoError(t, err)
	h.AddGlobalRoot(kept)

	_, err = h.CollectYoung()
	require.NoError(t, err)
	assert.Equal(t, Young, kept.Generation)

	result, err := h.CollectYoung()
	require.NoError(t, err)
	assert.Equal(t, Old, kept.Generation)
	assert.Equal(t, 1, result.ObjectsPromoted)
}

func TestCollectOldSweepsUnmarkedObjects(t *testing.T) {
	h := New(DefaultPolicies())

	kept, err := h.Allocate(value.NewInteger(1), 16)
	require.NoError(t, err)
	h.promote(kept)
	h.AddGlobalRoot(kept)

	garbage, err := h.Allocate(value.NewInteger(2), 16)
	require.NoError(t, err)
	h.promote(garbage)

	result, err := h.CollectOld(false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ObjectsCollected)
	assert.Equal(t, 1, h.ObjectCount())
}

func TestCollectOldConcurrentUsesWriteBarrier(t *testing.T) {
	h := New(DefaultPolicies())
	kept, err := h.Allocate(value.NewInteger(1), 16)
	require.NoError(t, err)
	h.promote(kept)
	h.AddGlobalRoot(kept)

	result, err := h.CollectOld(true)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ObjectsCollected)
	assert.False(t, h.writeBarrier.IsActive())
}

func TestIncrementalCollectorCompletesACycle(t *testing.T) {
	h := New(DefaultPolicies())
	kept, err := h.Allocate(value.NewInteger(1), 16)
	require.NoError(t, err)
	h.promote(kept)
	h.AddGlobalRoot(kept)

	steps := 0
	for {
		done, err := h.IncrementalStep()
		require.NoError(t, err)
		steps++
		if done {
			break
		}
		require.Less(t, steps, 100, "incremental collection never finished")
	}
	assert.False(t, h.incremental.InProgress())
}

func TestAllocateTriggersCollectionUnderHeapLimit(t *testing.T) {
	policies := DefaultPolicies()
	policies.MaxHeapBytes = 100
	h := New(policies)

	for i := 0; i < 20; i++ {
		_, err := h.Allocate(value.NewInteger(int64(i)), 8)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, h.TotalBytes(), 100+8)
}

func TestAllocateFailsWithOutOfMemoryWhenRootsPinEverything(t *testing.T) {
	policies := DefaultPolicies()
	policies.MaxHeapBytes = 32
	h := New(policies)

	for i := 0; i < 4; i++ {
		obj, err := h.Allocate(value.NewInteger(int64(i)), 16)
		if err != nil {
			assert.ErrorIs(t, err, lerrors.New(lerrors.OutOfMemory, ""))
			return
		}
		h.AddGlobalRoot(obj)
	}
	t.Fatal("expected an out-of-memory error once all allocations are pinned as roots")
}

// TestTenThousandPairsReleaseMostMemoryAfterCollection is the spec
// acceptance scenario: allocate 10,000 pair-sized objects (integers sized
// as pairs) discarding all but the last, then confirm one young
// collection reclaims the overwhelming majority of bytes.
func TestTenThousandPairsReleaseMostMemoryAfterCollection(t *testing.T) {
	h := New(DefaultPolicies())

	const n = 10000
	const pairSize = 32
	var last *Header
	for i := 0; i < n; i++ {
		obj, err := h.Allocate(value.NewInteger(int64(i)), pairSize)
		require.NoError(t, err)
		if last != nil {
			h.RemoveGlobalRoot(last)
		}
		h.AddGlobalRoot(obj)
		last = obj
	}
	allocated := h.TotalBytes()

	_, err := h.CollectYoung()
	require.NoError(t, err)

	peak := h.TotalBytes()
	assert.Less(t, float64(peak), 0.2*float64(allocated))
}
