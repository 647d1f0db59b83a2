// Package memory provides the in-memory request log backend. The log lives
// for the process lifetime and is lost on shutdown.
package memory

import (
	"sync"

	"github.com/ramondl/httpserv/pkg/stats"
)

// LogStore keeps the request log in a slice.
type LogStore struct {
	mu      sync.Mutex
	entries []stats.Entry
}

// NewLogStore returns an empty in-memory log.
func NewLogStore() *LogStore {
	return &LogStore{}
}

// Append adds e to the end of the log.
func (s *LogStore) Append(e stats.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Dump returns a copy of the log in append order.
func (s *LogStore) Dump() ([]stats.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stats.Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Close is a no-op for the in-memory log.
func (s *LogStore) Close() error {
	return nil
}
