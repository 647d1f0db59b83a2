// Package http implements the HTTP/1.1 wire protocol used by the server:
// request parsing and response serialization over a raw byte stream.
//
// The package deliberately covers only the subset the server speaks: one
// request per connection, no keep-alive, no chunked transfer encoding.
package http

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"
)

// DefaultMaxHeaderBytes bounds the request line plus header block.
// Requests whose headers exceed this limit are rejected as malformed.
const DefaultMaxHeaderBytes = 8 << 10

// Request is a parsed HTTP request.
//
// A Request is immutable once ReadRequest returns and is owned exclusively
// by the pipeline invocation that parsed it; it is never shared across
// dispatch units.
type Request struct {
	// Method is the request method verbatim (GET, POST, ...).
	Method string

	// Path is the percent-decoded request path, without the query string.
	Path string

	// RawQuery is the undecoded query string (the part after '?'), or ""
	// when the request target carries no query.
	RawQuery string

	// Proto is the protocol version from the request line (e.g. HTTP/1.1).
	Proto string

	// headers maps lowercased header names to their first value.
	headers map[string]string

	// RawLen is the number of bytes consumed from the stream while parsing
	// the request line and header block.
	RawLen int

	// RemoteAddr is the peer address, filled in by the caller.
	RemoteAddr string
}

// Header returns the value of the named header. Lookup is case-insensitive.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// Target reconstructs the request target (decoded path plus raw query) for
// logging purposes.
func (r *Request) Target() string {
	if r.RawQuery == "" {
		return r.Path
	}
	return r.Path + "?" + r.RawQuery
}

// ReadRequest parses one HTTP request head from br.
//
// It reads until the empty line terminating the header block, enforcing
// maxHeaderBytes (DefaultMaxHeaderBytes when <= 0) across the request line
// and all header lines. The request line is split into method, target and
// protocol version; the target is split at the first '?' into a
// percent-decoded path and the raw query string. Header lines are split at
// the first ':' and stored with case-insensitive names; a repeated header
// keeps its first value.
//
// Any failure before the terminator is reported as ErrMalformedRequest.
func ReadRequest(br *bufio.Reader, maxHeaderBytes int) (*Request, error) {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Lines are read in buffer-sized fragments and the limit is checked per
	// fragment, so a line with no terminator cannot buffer more than one
	// bufio chunk past the limit.
	total := 0
	readLine := func() (string, error) {
		var line []byte
		for {
			frag, err := br.ReadSlice('\n')
			total += len(frag)
			if total > maxHeaderBytes {
				return "", fmt.Errorf("%w: header block exceeds %d bytes", ErrMalformedRequest, maxHeaderBytes)
			}
			line = append(line, frag...)
			if err == nil {
				break
			}
			if err != bufio.ErrBufferFull {
				return "", fmt.Errorf("%w: unterminated header block: %v", ErrMalformedRequest, err)
			}
		}
		return strings.TrimRight(string(line), "\r\n"), nil
	}

	// Request line.
	requestLine, err := readLine()
	if err != nil {
		return nil, err
	}
	if requestLine == "" {
		return nil, fmt.Errorf("%w: empty request line", ErrMalformedRequest)
	}

	parts := strings.Fields(requestLine)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, requestLine)
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if !strings.HasPrefix(proto, "HTTP/") {
		return nil, fmt.Errorf("%w: bad protocol version %q", ErrMalformedRequest, proto)
	}

	// Split target into path and raw query at the first '?'.
	// Percent-decoding applies to the path only; the query stays raw.
	rawPath, rawQuery, _ := strings.Cut(target, "?")
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: bad percent-encoding in %q", ErrMalformedRequest, rawPath)
	}

	req := &Request{
		Method:   method,
		Path:     path,
		RawQuery: rawQuery,
		Proto:    proto,
		headers:  make(map[string]string),
	}

	// Header block, terminated by an empty line.
	for {
		line, err := readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}

		name, value, found := strings.Cut(line, ":")
		if !found || name == "" {
			// Tolerate and skip junk header lines rather than failing the
			// whole request.
			continue
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := req.headers[key]; !dup {
			req.headers[key] = strings.TrimSpace(value)
		}
	}

	req.RawLen = total
	return req, nil
}

// ParseQuery splits a raw query string into key/value pairs without
// decoding. Pairs missing '=' map to the empty string. Later duplicates
// overwrite earlier ones.
func ParseQuery(rawQuery string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[k] = v
	}
	return out
}
