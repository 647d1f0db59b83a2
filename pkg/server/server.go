// Package server owns the TCP accept loop and realizes the four dispatch
// strategies: iterative, goroutine-per-connection, fixed worker pool, and
// process-per-connection. Whichever strategy is active, each accepted
// connection is processed by exactly one pipeline invocation and never
// shared between dispatch units.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramondl/httpserv/internal/logger"
	"github.com/ramondl/httpserv/pkg/metrics"
)

// Strategy selects how accepted connections are dispatched to the pipeline.
type Strategy string

const (
	// StrategyIterative runs the pipeline inline in the accept loop.
	// No concurrency; a slow request stalls all others.
	StrategyIterative Strategy = "iterative"

	// StrategyConcurrent spawns one goroutine per accepted connection.
	// Unbounded unless MaxConnections is set.
	StrategyConcurrent Strategy = "concurrent"

	// StrategyPool runs a fixed number of long-lived workers that contend
	// for the accept call.
	StrategyPool Strategy = "pool"

	// StrategyProcess hands each accepted connection to a spawned child
	// process that runs one pipeline invocation and exits.
	StrategyProcess Strategy = "process"
)

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyIterative, StrategyConcurrent, StrategyPool, StrategyProcess:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown dispatch strategy: %q", s)
	}
}

// Config holds dispatcher configuration.
//
// Default values (applied by New if zero):
//   - Strategy: iterative
//   - PoolSize: 5
//   - MaxConnections: 0 (unlimited)
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 30s
type Config struct {
	// Port is the TCP port to listen on. 0 picks an ephemeral port,
	// reported by Addr once Serve has bound the listener.
	Port int

	// Strategy is the dispatch discipline, fixed for the process lifetime.
	Strategy Strategy

	// PoolSize is the number of workers for StrategyPool.
	PoolSize int

	// MaxConnections limits concurrent connections for StrategyConcurrent.
	// 0 means unlimited.
	MaxConnections int

	// ReadTimeout bounds reading one request head. 0 disables.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing one response. 0 disables.
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for active connections
	// during graceful shutdown before force-closing them.
	ShutdownTimeout time.Duration

	// ChildArgv is the argument vector (excluding the executable) used to
	// re-exec the server for StrategyProcess. The accepted connection is
	// inherited by the child on a well-known descriptor.
	ChildArgv []string
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyIterative
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Server accepts TCP connections and dispatches them to the pipeline
// according to the configured strategy.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (signals in-flight pipelines to abort)
//  4. Wait for active connections to complete (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown mechanism uses
// sync.Once so Stop() is idempotent.
type Server struct {
	config   Config
	pipeline *Pipeline
	metrics  metrics.HTTPMetrics

	// listener is closed during shutdown to stop accepting new connections.
	// listenerMu guards the field itself against concurrent Addr calls
	// while Serve is binding.
	listenerMu sync.Mutex
	listener   net.Listener

	// activeConns tracks all in-flight pipeline invocations for graceful
	// shutdown.
	activeConns sync.WaitGroup

	// shutdownOnce ensures shutdown is only initiated once.
	shutdownOnce sync.Once

	// shutdown is closed by initiateShutdown and monitored by the accept
	// loops.
	shutdown chan struct{}

	// connCount tracks the current number of active connections.
	connCount atomic.Int32

	// connSemaphore limits concurrent connections when MaxConnections > 0.
	// nil means unlimited.
	connSemaphore chan struct{}

	// shutdownCtx is cancelled during shutdown to abort in-flight pipelines.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for forced closure
	// after the shutdown timeout.
	activeConnections sync.Map

	// acceptMu serializes Accept between pool workers.
	acceptMu sync.Mutex

	// reapCh feeds spawned children to the background reaper so no zombies
	// accumulate under StrategyProcess.
	reapCh chan *childProcess
}

// New creates a Server for the given pipeline.
//
// The server is created in a stopped state; call Serve to start accepting
// connections. Zero config values are replaced with defaults.
func New(config Config, pipeline *Pipeline, httpMetrics metrics.HTTPMetrics) *Server {
	config.applyDefaults()

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Connection limit: %d", config.MaxConnections)
	}

	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		pipeline:       pipeline,
		metrics:        httpMetrics,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
		reapCh:         make(chan *childProcess, 64),
	}
}

// Serve starts the listener and blocks until the context is cancelled or an
// unrecoverable error occurs.
//
// When the context is cancelled, Serve initiates graceful shutdown: it stops
// accepting, cancels in-flight pipelines, waits for active connections up to
// ShutdownTimeout, then force-closes whatever remains.
//
// Serve should only be called once per Server instance.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create listener on port %d: %w", s.config.Port, err)
	}
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()

	logger.Info("Server listening on port %d (strategy: %s)", s.config.Port, s.config.Strategy)
	logger.Debug("Dispatch config: pool_size=%d max_connections=%d read_timeout=%v write_timeout=%v",
		s.config.PoolSize, s.config.MaxConnections, s.config.ReadTimeout, s.config.WriteTimeout)

	// Monitor context cancellation so the accept loops can stay simple.
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
	}()

	switch s.config.Strategy {
	case StrategyIterative:
		return s.serveIterative()
	case StrategyConcurrent:
		return s.serveConcurrent()
	case StrategyPool:
		return s.servePool()
	case StrategyProcess:
		return s.serveProcess()
	default:
		s.initiateShutdown()
		return fmt.Errorf("unknown dispatch strategy: %q", s.config.Strategy)
	}
}

// accept wraps listener.Accept with shutdown detection and connection
// accounting. A nil connection with a nil error means shutdown was
// initiated and the caller should drain.
func (s *Server) accept() (net.Conn, error) {
	tcpConn, err := s.listener.Accept()
	if err != nil {
		select {
		case <-s.shutdown:
			return nil, nil
		default:
			// Transient accept errors (resource exhaustion, resets) are
			// logged and the loop continues.
			logger.Debug("Error accepting connection: %v", err)
			return nil, err
		}
	}

	s.trackConn(tcpConn)
	return tcpConn, nil
}

// trackConn registers an accepted connection for shutdown accounting.
func (s *Server) trackConn(tcpConn net.Conn) {
	s.activeConns.Add(1)
	current := s.connCount.Add(1)
	s.activeConnections.Store(tcpConn.RemoteAddr().String(), tcpConn)

	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveConnections(current)

	logger.Debug("Connection accepted from %s (active: %d)", tcpConn.RemoteAddr(), current)
}

// releaseConn is the counterpart of trackConn, run when the pipeline
// invocation owning the connection finishes.
func (s *Server) releaseConn(tcpConn net.Conn) {
	s.activeConnections.Delete(tcpConn.RemoteAddr().String())
	s.activeConns.Done()
	current := s.connCount.Add(-1)

	s.metrics.RecordConnectionClosed()
	s.metrics.SetActiveConnections(current)

	logger.Debug("Connection closed from %s (active: %d)", tcpConn.RemoteAddr(), current)
}

// serveIterative accepts and runs the pipeline inline, one connection at a
// time.
func (s *Server) serveIterative() error {
	for {
		tcpConn, err := s.accept()
		if err != nil {
			continue
		}
		if tcpConn == nil {
			return s.gracefulShutdown()
		}

		s.pipeline.ServeConn(s.shutdownCtx, tcpConn)
		s.releaseConn(tcpConn)
	}
}

// serveConcurrent spawns one goroutine per accepted connection, optionally
// bounded by the connection semaphore.
func (s *Server) serveConcurrent() error {
	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			continue
		}
		if tcpConn == nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			return s.gracefulShutdown()
		}

		go func(conn net.Conn) {
			defer func() {
				s.releaseConn(conn)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
			}()
			s.pipeline.ServeConn(s.shutdownCtx, conn)
		}(tcpConn)
	}
}

// initiateShutdown signals the server to begin graceful shutdown.
//
// Safe to call multiple times and from multiple goroutines.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		listener := s.listener
		s.listenerMu.Unlock()
		if listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("Error closing listener: %v", err)
			}
		}

		// Cancel in-flight pipeline contexts.
		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections to complete or the
// shutdown timeout to expire, then force-closes whatever remains.
func (s *Server) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("Graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes all active TCP connections to accelerate
// shutdown after the graceful timeout expires.
func (s *Server) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown.
//
// Safe to call multiple times and concurrently with Serve. If ctx is
// non-nil its cancellation bounds the wait; otherwise the configured
// ShutdownTimeout applies.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Graceful shutdown complete: all connections closed")
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("Shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// ActiveConnections returns the current number of active connections.
// Primarily used by tests and monitoring.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.config.Port
}

// Addr returns the bound listener address, or nil before Serve has
// started the listener.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
