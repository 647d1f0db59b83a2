package stats

import (
	"fmt"
	"time"
)

// Entry is one request-log record. Entries are appended, never mutated or
// removed.
type Entry struct {
	Time   time.Time `json:"time"`
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Status int       `json:"status"`
}

// FormatLine renders the entry as one line of the /logs page.
func (e Entry) FormatLine() string {
	return fmt.Sprintf("[%s] %s %s %d", e.Time.Format("2006-01-02 15:04:05"), e.Method, e.Path, e.Status)
}

// LogStore persists the append-only request log.
//
// Implementations must preserve append order in Dump. They do not need
// their own synchronization when used behind Store, whose lock covers
// every log operation, but the provided implementations are independently
// safe anyway.
type LogStore interface {
	Append(Entry) error
	Dump() ([]Entry, error)
	Close() error
}
