package server

import (
	"sync"

	"github.com/ramondl/httpserv/internal/logger"
)

// servePool runs PoolSize long-lived workers that contend for the accept
// call. A worker holds acceptMu only across Accept and releases it before
// running the pipeline, so the other workers can accept while it serves.
//
// This caps concurrency at PoolSize and amortizes dispatch-unit creation
// across the server lifetime.
func (s *Server) servePool() error {
	logger.Info("Worker pool started with %d worker(s)", s.config.PoolSize)

	var workers sync.WaitGroup
	for i := 0; i < s.config.PoolSize; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			s.poolWorker(id)
		}(i)
	}

	workers.Wait()
	return s.gracefulShutdown()
}

// poolWorker accepts and serves connections until shutdown.
func (s *Server) poolWorker(id int) {
	for {
		s.acceptMu.Lock()

		select {
		case <-s.shutdown:
			s.acceptMu.Unlock()
			logger.Debug("Worker %d exiting", id)
			return
		default:
		}

		tcpConn, err := s.accept()
		s.acceptMu.Unlock()

		if err != nil {
			continue
		}
		if tcpConn == nil {
			// Shutdown closed the listener while this worker held the guard.
			logger.Debug("Worker %d exiting", id)
			return
		}

		s.pipeline.ServeConn(s.shutdownCtx, tcpConn)
		s.releaseConn(tcpConn)
	}
}
