// Package stats holds the process-wide request statistics and the
// append-only request log shared by every pipeline invocation.
package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Snapshot is a consistent copy of all counters, taken under the store
// lock. A snapshot concurrent with an update sees the state either before
// or after that update, never between.
type Snapshot struct {
	StartTime time.Time
	Count     uint64

	MinTime time.Duration
	MinPath string
	MaxTime time.Duration
	MaxPath string

	LastPath string
}

// FormatText renders the snapshot as the plain-text /stats page.
func (s Snapshot) FormatText(now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Server uptime: %s\n", now.Sub(s.StartTime).Round(time.Second))
	fmt.Fprintf(&b, "Requests served: %d\n", s.Count)
	if s.Count > 0 {
		fmt.Fprintf(&b, "Min service time: %.6fs (%s)\n", s.MinTime.Seconds(), s.MinPath)
		fmt.Fprintf(&b, "Max service time: %.6fs (%s)\n", s.MaxTime.Seconds(), s.MaxPath)
		fmt.Fprintf(&b, "Last served path: %s\n", s.LastPath)
	}
	return b.String()
}

// Store tracks running request statistics and owns the request log.
//
// All four operations (RecordRequest, Snapshot, AppendLog, DumpLog) are
// mutually exclusive on the same store: a single mutex guards both the
// counters and the log, preserving the min/max/count invariants under any
// interleaving. There is no ambient global; the one instance is passed by
// handle to every pipeline invocation.
type Store struct {
	mu sync.Mutex

	start    time.Time
	count    uint64
	minTime  time.Duration
	minPath  string
	maxTime  time.Duration
	maxPath  string
	lastPath string

	log LogStore
}

// New returns a Store whose uptime origin is now and whose log entries are
// appended to logStore.
func New(logStore LogStore) *Store {
	return &Store{
		start: time.Now(),
		log:   logStore,
	}
}

// RecordRequest atomically folds one completed request into the counters:
// the count is incremented, min/max service times (and their paths) are
// updated when the sample is a new extreme, and the last-served path is
// replaced.
func (s *Store) RecordRequest(path string, serviceTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.count == 1 || serviceTime < s.minTime {
		s.minTime = serviceTime
		s.minPath = path
	}
	if s.count == 1 || serviceTime > s.maxTime {
		s.maxTime = serviceTime
		s.maxPath = path
	}
	s.lastPath = path
}

// Snapshot returns a consistent copy of all counters.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		StartTime: s.start,
		Count:     s.count,
		MinTime:   s.minTime,
		MinPath:   s.minPath,
		MaxTime:   s.maxTime,
		MaxPath:   s.maxPath,
		LastPath:  s.lastPath,
	}
}

// AppendLog appends one entry to the request log. Append order as observed
// at this lock is the log's total order; entries are never reordered,
// mutated or removed afterwards.
func (s *Store) AppendLog(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Append(e)
}

// DumpLog returns the full log in append order.
func (s *Store) DumpLog() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Dump()
}

// Close releases the underlying log store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Close()
}
