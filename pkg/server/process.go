package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"

	"github.com/ramondl/httpserv/internal/logger"
)

// ChildConnFD is the file descriptor number on which a spawned child
// inherits the accepted connection. ExtraFiles places the first extra file
// at descriptor 3.
const ChildConnFD = 3

// childProcess pairs a spawned child with its client address for reaping.
type childProcess struct {
	cmd  *exec.Cmd
	addr string
}

// serveProcess accepts connections and hands each one to a re-exec'd copy
// of the server binary. The child owns the connection exclusively, runs
// exactly one pipeline invocation, and exits; the parent closes its copy of
// the descriptor and keeps accepting.
//
// Statistics under this strategy are per-child: each child process carries
// its own stats store, so /stats and /logs reflect only the requests that
// child served. They are deliberately not aggregated across processes.
//
// Every child is handed to a background reaper that Waits it, so no
// zombies accumulate no matter how children exit.
func (s *Server) serveProcess() error {
	if len(s.config.ChildArgv) == 0 {
		s.initiateShutdown()
		return fmt.Errorf("process strategy requires ChildArgv for re-exec")
	}

	executable, err := os.Executable()
	if err != nil {
		s.initiateShutdown()
		return fmt.Errorf("failed to resolve server executable: %w", err)
	}

	go s.reapChildren()
	defer close(s.reapCh)

	for {
		tcpConn, err := s.accept()
		if err != nil {
			continue
		}
		if tcpConn == nil {
			return s.gracefulShutdown()
		}

		if err := s.spawnChild(executable, tcpConn); err != nil {
			logger.Error("Failed to spawn child for %s: %v", tcpConn.RemoteAddr(), err)
		}

		// The child owns the connection now; drop the parent's copy.
		_ = tcpConn.Close()
		s.releaseConn(tcpConn)
	}
}

// spawnChild starts a child process with the connection's descriptor
// attached as ChildConnFD and queues it for reaping.
func (s *Server) spawnChild(executable string, tcpConn net.Conn) error {
	tcp, ok := tcpConn.(*net.TCPConn)
	if !ok {
		return fmt.Errorf("connection %T cannot be passed to a child process", tcpConn)
	}

	// File duplicates the descriptor, so closing the parent's net.Conn
	// afterwards does not tear down the child's copy.
	file, err := tcp.File()
	if err != nil {
		return fmt.Errorf("failed to dup connection descriptor: %w", err)
	}
	defer file.Close()

	cmd := exec.Command(executable, s.config.ChildArgv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{file}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start child: %w", err)
	}

	logger.Debug("Spawned child %d for %s", cmd.Process.Pid, tcpConn.RemoteAddr())

	select {
	case s.reapCh <- &childProcess{cmd: cmd, addr: tcpConn.RemoteAddr().String()}:
	case <-s.shutdown:
		// Shutdown is draining the reaper; wait here instead.
		go func() { _ = cmd.Wait() }()
	}
	return nil
}

// reapChildren collects terminated children. Each child is waited in its
// own goroutine, so children are reaped in termination order and a hung
// child parks only its own reaper; the channel drains immediately and the
// accept loop never backpressures on reaping. Runs until the reap channel
// is closed by serveProcess.
func (s *Server) reapChildren() {
	var reaps sync.WaitGroup
	for child := range s.reapCh {
		reaps.Add(1)
		go func(child *childProcess) {
			defer reaps.Done()
			if err := child.cmd.Wait(); err != nil {
				logger.Warn("Child %d (%s) exited with error: %v",
					child.cmd.Process.Pid, child.addr, err)
				return
			}
			logger.Debug("Reaped child %d (%s)", child.cmd.Process.Pid, child.addr)
		}(child)
	}
	reaps.Wait()
}

// ServeChild runs the child side of the process strategy: it adopts the
// connection inherited on ChildConnFD, serves exactly one pipeline
// invocation, and returns.
func ServeChild(ctx context.Context, pipeline *Pipeline) error {
	file := os.NewFile(ChildConnFD, "conn")
	if file == nil {
		return fmt.Errorf("no inherited connection on fd %d", ChildConnFD)
	}

	conn, err := net.FileConn(file)
	_ = file.Close()
	if err != nil {
		return fmt.Errorf("failed to adopt inherited connection: %w", err)
	}

	pipeline.ServeConn(ctx, conn)
	return nil
}
