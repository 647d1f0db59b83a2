package http

import "errors"

// ErrMalformedRequest is returned by ReadRequest when the byte stream does
// not contain a parseable HTTP/1.x request: missing request line, an
// unterminated header block, a header block exceeding the configured limit,
// or a read error before the terminator.
//
// Callers match it with errors.Is; the wrapped message carries the detail.
var ErrMalformedRequest = errors.New("malformed request")
