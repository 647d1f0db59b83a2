package stats_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramondl/httpserv/pkg/stats"
	"github.com/ramondl/httpserv/pkg/stats/memory"
)

func newStore() *stats.Store {
	return stats.New(memory.NewLogStore())
}

func TestStore_RecordRequest(t *testing.T) {
	t.Run("TracksExtremes", func(t *testing.T) {
		s := newStore()
		s.RecordRequest("/a", 10*time.Millisecond)
		s.RecordRequest("/b", 500*time.Millisecond)
		s.RecordRequest("/c", 200*time.Millisecond)

		snap := s.Snapshot()
		assert.Equal(t, uint64(3), snap.Count)
		assert.Equal(t, 10*time.Millisecond, snap.MinTime)
		assert.Equal(t, "/a", snap.MinPath)
		assert.Equal(t, 500*time.Millisecond, snap.MaxTime)
		assert.Equal(t, "/b", snap.MaxPath)
		assert.Equal(t, "/c", snap.LastPath)
	})

	t.Run("FirstSampleIsBothExtremes", func(t *testing.T) {
		s := newStore()
		s.RecordRequest("/only", 42*time.Millisecond)

		snap := s.Snapshot()
		assert.Equal(t, snap.MinTime, snap.MaxTime)
		assert.Equal(t, "/only", snap.MinPath)
		assert.Equal(t, "/only", snap.MaxPath)
	})

	t.Run("MinNeverExceedsMax", func(t *testing.T) {
		s := newStore()
		for i, d := range []time.Duration{300, 100, 700, 50, 900} {
			s.RecordRequest("/p", d*time.Millisecond)
			snap := s.Snapshot()
			require.LessOrEqual(t, snap.MinTime, snap.MaxTime, "after sample %d", i)
		}
	})
}

func TestStore_ConcurrentRecording(t *testing.T) {
	s := newStore()

	const goroutines = 16
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				// Durations span [1ms, 3200ms]; the global extremes are
				// known regardless of interleaving.
				d := time.Duration(g*perGoroutine+i+1) * time.Millisecond
				s.RecordRequest("/concurrent", d)
			}
		}(g)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, uint64(goroutines*perGoroutine), snap.Count, "no lost updates")
	assert.Equal(t, 1*time.Millisecond, snap.MinTime)
	assert.Equal(t, time.Duration(goroutines*perGoroutine)*time.Millisecond, snap.MaxTime)
}

func TestStore_Log(t *testing.T) {
	s := newStore()

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, path := range []string{"/one", "/two", "/three"} {
		require.NoError(t, s.AppendLog(stats.Entry{
			Time:   base.Add(time.Duration(i) * time.Second),
			Method: "GET",
			Path:   path,
			Status: 200,
		}))
	}

	entries, err := s.DumpLog()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/one", entries[0].Path)
	assert.Equal(t, "/two", entries[1].Path)
	assert.Equal(t, "/three", entries[2].Path)
}

func TestSnapshot_FormatText(t *testing.T) {
	s := newStore()
	s.RecordRequest("/fast", 10*time.Millisecond)
	s.RecordRequest("/slow", 500*time.Millisecond)
	s.RecordRequest("/mid", 200*time.Millisecond)

	out := s.Snapshot().FormatText(time.Now())
	assert.Contains(t, out, "Requests served: 3")
	assert.Contains(t, out, "Min service time: 0.010000s (/fast)")
	assert.Contains(t, out, "Max service time: 0.500000s (/slow)")
	assert.Contains(t, out, "Last served path: /mid")
}

func TestEntry_FormatLine(t *testing.T) {
	e := stats.Entry{
		Time:   time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		Method: "GET",
		Path:   "/index.html",
		Status: 200,
	}
	assert.Equal(t, "[2024-03-01 12:00:00] GET /index.html 200", e.FormatLine())
}
