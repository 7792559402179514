package gc

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Statistics aggregates collector activity across the process's
// lifetime; every counter is atomic so both generations' collectors and
// concurrent mutator threads can update it without external locking (the
// teacher's pool.go atomic-counter idiom, generalized to collection
// events instead of allocation events).
type Statistics struct {
	minorCollections atomic.Uint64
	majorCollections atomic.Uint64
	minorTimeNanos   atomic.Int64
	majorTimeNanos   atomic.Int64
	objectsCollected atomic.Uint64
	bytesReclaimed   atomic.Uint64
	objectsPromoted  atomic.Uint64
	bytesPromoted    atomic.Uint64
}

// NewStatistics creates a zeroed Statistics.
func NewStatistics() *Statistics { return &Statistics{} }

// RecordMinorCollection records a completed young-generation collection.
func (s *Statistics) RecordMinorCollection(d time.Duration) {
	s.minorCollections.Add(1)
	s.minorTimeNanos.Add(d.Nanoseconds())
}

// RecordMajorCollection records a completed old-generation collection.
func (s *Statistics) RecordMajorCollection(d time.Duration) {
	s.majorCollections.Add(1)
	s.majorTimeNanos.Add(d.Nanoseconds())
}

// RecordResult folds a CollectionResult's object/byte counts in.
func (s *Statistics) RecordResult(r CollectionResult) {
	s.objectsCollected.Add(uint64(r.ObjectsCollected))
	s.bytesReclaimed.Add(uint64(r.BytesReclaimed))
	s.objectsPromoted.Add(uint64(r.ObjectsPromoted))
	s.bytesPromoted.Add(uint64(r.BytesPromoted))
}

// Snapshot is an immutable copy of Statistics' counters for reporting.
type Snapshot struct {
	MinorCollections uint64
	MajorCollections uint64
	MinorTime        time.Duration
	MajorTime        time.Duration
	ObjectsCollected uint64
	BytesReclaimed   uint64
	ObjectsPromoted  uint64
	BytesPromoted    uint64
}

// Snapshot reads every counter into a Snapshot.
func (s *Statistics) Snapshot() Snapshot {
	return Snapshot{
		MinorCollections: s.minorCollections.Load(),
		MajorCollections: s.majorCollections.Load(),
		MinorTime:        time.Duration(s.minorTimeNanos.Load()),
		MajorTime:        time.Duration(s.majorTimeNanos.Load()),
		ObjectsCollected: s.objectsCollected.Load(),
		BytesReclaimed:   s.bytesReclaimed.Load(),
		ObjectsPromoted:  s.objectsPromoted.Load(),
		BytesPromoted:    s.bytesPromoted.Load(),
	}
}

// String renders a human-readable report, matching the JIT metrics
// report's on-demand-text convention (spec §4.9).
func (sn Snapshot) String() string {
	return fmt.Sprintf(
		"gc: minor=%d (%s) major=%d (%s) objects_collected=%d bytes_reclaimed=%d promoted=%d (%d bytes)",
		sn.MinorCollections, sn.MinorTime, sn.MajorCollections, sn.MajorTime,
		sn.ObjectsCollected, sn.BytesReclaimed, sn.ObjectsPromoted, sn.BytesPromoted,
	)
}
