// Package handler loads shared-object handler libraries at runtime and
// caches the resolved entry points for the life of the process.
package handler

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/ramondl/httpserv/internal/logger"
)

// EntryPoint is the symbol name every handler library must export.
const EntryPoint = "Handle"

// Func is the signature of a loaded handler's entry point. It receives the
// decoded request path and the raw query string and returns the response
// status, content type and body.
type Func func(path, query string) (status int, contentType string, body []byte, err error)

// LoadError reports that a library could not be opened or its entry point
// could not be resolved. The pipeline answers it with a 500 response.
type LoadError struct {
	Library string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load handler %s: %v", e.Library, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Registry caches one resolved handler per library path.
//
// The first request referencing a path loads the library; every later
// request reuses the cached handle. Concurrent first loads of the same path
// are collapsed into a single load, so all callers share one handle.
// Libraries are never unloaded during normal operation.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	// open resolves a library path to its entry point. Defaults to
	// openPlugin; tests substitute a fake.
	open func(path string) (Func, error)
}

// entry is a per-path load flight. The once ensures one load per path; fn
// and err hold the outcome for every waiter.
type entry struct {
	once sync.Once
	fn   Func
	err  error
}

// NewRegistry returns an empty Registry backed by the Go plugin loader.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		open:    openPlugin,
	}
}

// Resolve returns the handler for the library at path, loading it on first
// reference. Safe for concurrent use from every dispatch strategy: callers
// racing on the same path block on one load and all receive the same
// handle (or the same LoadError).
func (r *Registry) Resolve(path string) (Func, error) {
	r.mu.Lock()
	e, ok := r.entries[path]
	if !ok {
		e = &entry{}
		r.entries[path] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		logger.Info("Loading handler library %s", path)
		e.fn, e.err = r.open(path)
		if e.err != nil {
			logger.Error("Handler load failed: %v", e.err)
		}
	})

	if e.err != nil {
		return nil, e.err
	}
	return e.fn, nil
}

// Loaded returns the number of libraries with a completed load attempt,
// including failed ones.
func (r *Registry) Loaded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// openPlugin opens the shared object and resolves its entry point.
func openPlugin(path string) (Func, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, &LoadError{Library: path, Err: err}
	}

	sym, err := p.Lookup(EntryPoint)
	if err != nil {
		return nil, &LoadError{Library: path, Err: err}
	}

	fn, ok := sym.(func(string, string) (int, string, []byte, error))
	if !ok {
		return nil, &LoadError{Library: path, Err: fmt.Errorf("symbol %s has wrong type %T", EntryPoint, sym)}
	}
	return Func(fn), nil
}
