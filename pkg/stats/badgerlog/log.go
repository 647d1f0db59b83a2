// Package badgerlog provides the persistent request log backend on top of
// BadgerDB. The log survives server restarts; entries appended in earlier
// runs are returned first by Dump.
package badgerlog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ramondl/httpserv/internal/logger"
	"github.com/ramondl/httpserv/pkg/stats"
)

// keyPrefix namespaces log records inside the database.
var keyPrefix = []byte("log/")

// LogStore is a BadgerDB-backed append-only request log.
//
// Each entry is stored under an 8-byte big-endian sequence number, so the
// database's key order is the append order and Dump is a single range
// scan.
type LogStore struct {
	mu  sync.Mutex
	db  *badger.DB
	seq uint64
}

// Open opens (or creates) the log database at dir and restores the
// sequence counter from the highest existing key.
func Open(dir string) (*LogStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger log at %s: %w", dir, err)
	}

	s := &LogStore{db: db}
	if err := s.restoreSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Badger request log opened at %s (%d existing entries)", dir, s.seq)
	return s, nil
}

// restoreSeq scans backwards for the highest sequence number in use.
func (s *LogStore) restoreSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the end of the prefix range.
		seekKey := append(append([]byte{}, keyPrefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		it.Seek(seekKey)
		if it.ValidForPrefix(keyPrefix) {
			key := it.Item().Key()
			s.seq = binary.BigEndian.Uint64(key[len(keyPrefix):]) + 1
		}
		return nil
	})
}

func (s *LogStore) key(seq uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], seq)
	return key
}

// Append persists e under the next sequence number.
func (s *LogStore) Append(e stats.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(s.seq), value)
	})
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}

	s.seq++
	return nil
}

// Dump returns every entry in append order.
func (s *LogStore) Dump() ([]stats.Entry, error) {
	var entries []stats.Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var e stats.Entry
				if err := json.Unmarshal(value, &e); err != nil {
					return fmt.Errorf("decode log entry: %w", err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Close closes the underlying database.
func (s *LogStore) Close() error {
	return s.db.Close()
}
