package gc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// pollAndPark mimics a mutator's safepoint poll site: busy-poll Requested()
// and Park once a collection has been requested.
func pollAndPark(sp *Safepoint) {
	for !sp.Requested() {
		time.Sleep(time.Millisecond)
	}
	sp.Park()
}

func TestSafepointRequestBlocksUntilAllParked(t *testing.T) {
	sp := NewSafepoint()
	const mutators = 3

	var wg sync.WaitGroup
	wg.Add(mutators)

	done := make(chan struct{})
	go func() {
		sp.Request(mutators)
		close(done)
	}()

	for i := 0; i < mutators; i++ {
		go func() {
			defer wg.Done()
			pollAndPark(sp)
		}()
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Request never returned once all mutators parked")
	}
	assert.True(t, sp.Requested())

	sp.Release()
	wg.Wait()
	assert.False(t, sp.Requested())
}

func TestSafepointReleaseResumesParkedMutators(t *testing.T) {
	sp := NewSafepoint()
	resumed := make(chan struct{})

	requestDone := make(chan struct{})
	go func() {
		sp.Request(1)
		close(requestDone)
	}()
	go func() {
		pollAndPark(sp)
		close(resumed)
	}()

	<-requestDone
	select {
	case <-resumed:
		t.Fatal("mutator resumed before Release")
	case <-time.After(50 * time.Millisecond):
	}

	sp.Release()
	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("mutator never resumed after Release")
	}
}
