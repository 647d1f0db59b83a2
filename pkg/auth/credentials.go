// Package auth implements HTTP Basic authentication against a flat
// credential file loaded once at startup.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ramondl/httpserv/internal/logger"
)

// CredentialStore is a read-only user to password table.
//
// The store is populated once by LoadCredentials and never mutated, so it
// is safe for concurrent use by every dispatch strategy without locking.
type CredentialStore struct {
	users map[string]string
}

// LoadCredentials parses a credential file of `user:password` lines.
// Blank lines and lines starting with '#' are skipped. The password is
// everything after the first ':', so passwords may themselves contain
// colons. Lines without a ':' are rejected.
func LoadCredentials(path string) (*CredentialStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	users := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		user, pass, found := strings.Cut(line, ":")
		if !found || user == "" {
			return nil, fmt.Errorf("credentials file %s:%d: expected user:password", path, lineNo)
		}
		users[user] = pass
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	logger.Info("Loaded %d credential(s) from %s", len(users), path)
	return &CredentialStore{users: users}, nil
}

// NewCredentialStore builds a store from an in-memory table. Used by tests
// and by callers that do not load from a file.
func NewCredentialStore(users map[string]string) *CredentialStore {
	copied := make(map[string]string, len(users))
	for u, p := range users {
		copied[u] = p
	}
	return &CredentialStore{users: copied}
}

// Lookup returns the password for user and whether the user exists.
func (s *CredentialStore) Lookup(user string) (string, bool) {
	p, ok := s.users[user]
	return p, ok
}

// Len returns the number of loaded users.
func (s *CredentialStore) Len() int {
	return len(s.users)
}
