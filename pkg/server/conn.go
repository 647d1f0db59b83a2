package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ramondl/httpserv/internal/logger"
	httpwire "github.com/ramondl/httpserv/internal/protocol/http"
	"github.com/ramondl/httpserv/pkg/auth"
	"github.com/ramondl/httpserv/pkg/cgi"
	"github.com/ramondl/httpserv/pkg/handler"
	"github.com/ramondl/httpserv/pkg/metrics"
	"github.com/ramondl/httpserv/pkg/responder"
	"github.com/ramondl/httpserv/pkg/router"
	"github.com/ramondl/httpserv/pkg/stats"
)

// Pipeline runs the full parse, authenticate, route, execute, respond
// sequence for one accepted connection, then records statistics and closes.
//
// A Pipeline is shared by all dispatch units; every field is either
// immutable after construction or internally synchronized.
type Pipeline struct {
	// Router classifies decoded request paths.
	Router *router.Router

	// Auth validates Basic credentials. nil disables authentication.
	Auth *auth.Authenticator

	// CGI executes script routes.
	CGI *cgi.Engine

	// Handlers loads and caches shared-object handlers.
	Handlers *handler.Registry

	// Stats is the shared metrics store and request log.
	Stats *stats.Store

	// Metrics is the optional Prometheus instrumentation.
	Metrics metrics.HTTPMetrics

	// MaxHeaderBytes bounds the request head. 0 uses the protocol default.
	MaxHeaderBytes int

	// ReadTimeout and WriteTimeout are per-connection deadlines. 0 disables.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ServeConn handles exactly one request on conn and closes it.
//
// All errors are contained to this invocation: a malformed request closes
// the connection without a response, execution failures produce 500, and
// panics are recovered so a misbehaving route cannot take down the
// dispatcher.
//
// Service time is measured from parse completion to response completion,
// and every parsed request is recorded in the stats store and the request
// log, including denied and failed ones.
func (p *Pipeline) ServeConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s: %v", conn.RemoteAddr(), r)
		}
		_ = conn.Close()
	}()

	select {
	case <-ctx.Done():
		return
	default:
	}

	if p.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(p.ReadTimeout)); err != nil {
			logger.Warn("Failed to set read deadline for %s: %v", conn.RemoteAddr(), err)
		}
	}

	br := bufio.NewReader(conn)
	req, err := httpwire.ReadRequest(br, p.MaxHeaderBytes)
	if err != nil {
		// Parse failure: close without a response.
		logger.Debug("Malformed request from %s: %v", conn.RemoteAddr(), err)
		return
	}
	req.RemoteAddr = conn.RemoteAddr().String()

	if p.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(p.WriteTimeout)); err != nil {
			logger.Warn("Failed to set write deadline for %s: %v", conn.RemoteAddr(), err)
		}
	}

	start := time.Now()
	rw := httpwire.NewResponseWriter(conn)
	status, kind := p.handle(req, rw)
	elapsed := time.Since(start)

	p.Stats.RecordRequest(req.Path, elapsed)
	if err := p.Stats.AppendLog(stats.Entry{
		Time:   time.Now(),
		Method: req.Method,
		Path:   req.Path,
		Status: status,
	}); err != nil {
		logger.Warn("Failed to append request log entry: %v", err)
	}
	if p.Metrics != nil {
		p.Metrics.RecordRequest(kind, status, elapsed)
	}

	logger.Info("%s %s %s -> %d (%v)", req.RemoteAddr, req.Method, req.Target(), status, elapsed)
}

// handle authenticates, routes and executes one request, writing the
// response. It returns the status code and the resource kind for
// instrumentation.
func (p *Pipeline) handle(req *httpwire.Request, rw *httpwire.ResponseWriter) (int, string) {
	// Authentication short-circuits before routing.
	if p.Auth != nil {
		if err := p.Auth.Authenticate(req); err != nil {
			logger.Debug("Authentication failed for %s: %v", req.RemoteAddr, err)
			rw.WriteStatus(httpwire.StatusUnauthorized)
			rw.SetHeader("WWW-Authenticate", p.Auth.Challenge())
			rw.SetHeader("Content-Type", "text/plain")
			p.write(rw, []byte("401 Unauthorized\n"))
			return httpwire.StatusUnauthorized, "unauthorized"
		}
	}

	route, err := p.Router.Resolve(req.Path)
	if err != nil {
		// Traversal attempts are served as not-found, never from outside
		// the document root.
		logger.Warn("Rejected path from %s: %v", req.RemoteAddr, err)
	}

	kind := route.Kind.String()

	switch route.Kind {
	case router.KindStats:
		return p.serveStats(rw), kind
	case router.KindLogs:
		return p.serveLogs(rw), kind
	case router.KindStatic:
		return p.serveStatic(rw, route.FilePath), kind
	case router.KindListing:
		return p.serveListing(rw, req, route.FilePath), kind
	case router.KindScript:
		return p.serveScript(rw, req, route.FilePath), kind
	case router.KindHandler:
		return p.serveHandler(rw, req, route.FilePath), kind
	default:
		return p.serveNotFound(rw), kind
	}
}

func (p *Pipeline) serveStats(rw *httpwire.ResponseWriter) int {
	body := p.Stats.Snapshot().FormatText(time.Now())
	rw.SetHeader("Content-Type", "text/plain")
	p.write(rw, []byte(body))
	return httpwire.StatusOK
}

func (p *Pipeline) serveLogs(rw *httpwire.ResponseWriter) int {
	entries, err := p.Stats.DumpLog()
	if err != nil {
		logger.Error("Failed to dump request log: %v", err)
		return p.serveError(rw)
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.FormatLine())
		b.WriteByte('\n')
	}

	rw.SetHeader("Content-Type", "text/plain")
	p.write(rw, []byte(b.String()))
	return httpwire.StatusOK
}

func (p *Pipeline) serveStatic(rw *httpwire.ResponseWriter, fsPath string) int {
	file, err := responder.ReadStatic(fsPath)
	if err != nil {
		// The file can vanish between routing and reading.
		if errors.Is(err, os.ErrNotExist) {
			return p.serveNotFound(rw)
		}
		logger.Error("Failed to read %s: %v", fsPath, err)
		return p.serveError(rw)
	}

	rw.SetHeader("Content-Type", file.ContentType)
	p.write(rw, file.Body)
	return httpwire.StatusOK
}

func (p *Pipeline) serveListing(rw *httpwire.ResponseWriter, req *httpwire.Request, fsPath string) int {
	query := httpwire.ParseQuery(req.RawQuery)
	body, err := responder.ListDirectory(fsPath, req.Path, query["C"], query["O"])
	if err != nil {
		logger.Error("Failed to list %s: %v", fsPath, err)
		return p.serveError(rw)
	}

	rw.SetHeader("Content-Type", "text/html")
	p.write(rw, body)
	return httpwire.StatusOK
}

func (p *Pipeline) serveScript(rw *httpwire.ResponseWriter, req *httpwire.Request, fsPath string) int {
	result, err := p.CGI.Run(fsPath, req.Method, req.RawQuery, req.RemoteAddr, httpwire.ServerName)
	if err != nil {
		logger.Error("Script %s failed: %v", fsPath, err)
		return p.serveError(rw)
	}

	if result.HasOwnHeaders {
		// The script emitted its own CGI header block; splice it into the
		// response head.
		if err := rw.WriteRaw(result.Stdout); err != nil {
			logger.Debug("Failed to write script response: %v", err)
		}
		return httpwire.StatusOK
	}

	rw.SetHeader("Content-Type", "text/html")
	p.write(rw, result.Stdout)
	return httpwire.StatusOK
}

func (p *Pipeline) serveHandler(rw *httpwire.ResponseWriter, req *httpwire.Request, fsPath string) int {
	fn, err := p.Handlers.Resolve(fsPath)
	if err != nil {
		logger.Error("Handler load failed for %s: %v", fsPath, err)
		return p.serveError(rw)
	}

	status, contentType, body, err := fn(req.Path, req.RawQuery)
	if err != nil {
		logger.Error("Handler %s failed: %v", fsPath, err)
		return p.serveError(rw)
	}

	if contentType == "" {
		contentType = "text/html"
	}
	rw.WriteStatus(status)
	rw.SetHeader("Content-Type", contentType)
	p.write(rw, body)
	return status
}

func (p *Pipeline) serveNotFound(rw *httpwire.ResponseWriter) int {
	rw.WriteStatus(httpwire.StatusNotFound)
	rw.SetHeader("Content-Type", "text/plain")
	p.write(rw, []byte("404 Not Found\n"))
	return httpwire.StatusNotFound
}

func (p *Pipeline) serveError(rw *httpwire.ResponseWriter) int {
	rw.WriteStatus(httpwire.StatusInternalServerError)
	rw.SetHeader("Content-Type", "text/plain")
	p.write(rw, []byte("500 Internal Server Error\n"))
	return httpwire.StatusInternalServerError
}

func (p *Pipeline) write(rw *httpwire.ResponseWriter, body []byte) {
	if err := rw.WriteBody(body); err != nil {
		logger.Debug("Failed to write response: %v", err)
		return
	}
	if p.Metrics != nil {
		p.Metrics.RecordBytesWritten(int64(len(body)))
	}
}
