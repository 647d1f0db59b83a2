package http

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// Status codes produced by the server.
const (
	StatusOK                  = 200
	StatusUnauthorized        = 401
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

var reasonPhrases = map[int]string{
	StatusOK:                  "OK",
	StatusUnauthorized:        "Unauthorized",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

// ReasonPhrase returns the standard reason phrase for a status code the
// server produces, or "Unknown" for anything else.
func ReasonPhrase(code int) string {
	if p, ok := reasonPhrases[code]; ok {
		return p
	}
	return "Unknown"
}

// ServerName is sent in the Server header of every response.
const ServerName = "httpserv/1.0"

// dateLayout is the HTTP date format for the Date header. HTTP dates always
// name the zone GMT.
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// ResponseWriter serializes one HTTP/1.1 response onto a connection.
//
// Headers are buffered until WriteBody (or Flush) so callers can add them
// in any order after WriteStatus. Every response carries Server, Date and
// Connection: close headers; the server never keeps connections alive.
type ResponseWriter struct {
	w           io.Writer
	status      int
	headerOrder []string
	headers     map[string]string
	wroteHead   bool

	// now is stubbed in tests for a deterministic Date header.
	now func() time.Time
}

// NewResponseWriter returns a ResponseWriter targeting w.
func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{
		w:       w,
		status:  StatusOK,
		headers: make(map[string]string),
		now:     time.Now,
	}
}

// WriteStatus records the response status. It must be called before
// WriteBody; calling it after the head was written has no effect.
func (rw *ResponseWriter) WriteStatus(code int) {
	if !rw.wroteHead {
		rw.status = code
	}
}

// SetHeader records a response header, preserving insertion order and
// overwriting an earlier value for the same name.
func (rw *ResponseWriter) SetHeader(name, value string) {
	if _, ok := rw.headers[name]; !ok {
		rw.headerOrder = append(rw.headerOrder, name)
	}
	rw.headers[name] = value
}

// WriteBody writes the status line, all headers (adding Content-Length for
// body) and the body bytes. It may be called exactly once.
func (rw *ResponseWriter) WriteBody(body []byte) error {
	rw.SetHeader("Content-Length", strconv.Itoa(len(body)))
	if err := rw.flushHead(true); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := rw.w.Write(body)
	return err
}

// WriteRaw writes script output that already begins with its own header
// block. The server's status line and headers are emitted first without
// the terminating blank line, so the script's headers extend the block and
// its own blank line closes it.
func (rw *ResponseWriter) WriteRaw(raw []byte) error {
	if err := rw.flushHead(false); err != nil {
		return err
	}
	_, err := rw.w.Write(raw)
	return err
}

func (rw *ResponseWriter) flushHead(terminate bool) error {
	if rw.wroteHead {
		return nil
	}
	rw.wroteHead = true

	if _, err := fmt.Fprintf(rw.w, "HTTP/1.1 %d %s\r\n", rw.status, ReasonPhrase(rw.status)); err != nil {
		return err
	}

	rw.SetHeader("Server", ServerName)
	rw.SetHeader("Date", rw.now().UTC().Format(dateLayout))
	rw.SetHeader("Connection", "close")

	for _, name := range rw.headerOrder {
		if _, err := fmt.Fprintf(rw.w, "%s: %s\r\n", name, rw.headers[name]); err != nil {
			return err
		}
	}
	if !terminate {
		return nil
	}
	_, err := io.WriteString(rw.w, "\r\n")
	return err
}
