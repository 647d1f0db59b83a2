package http

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func TestResponseWriter_WriteBody(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.now = fixedClock

	rw.WriteStatus(StatusOK)
	rw.SetHeader("Content-Type", "text/html")
	require.NoError(t, rw.WriteBody([]byte("<html></html>")))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "Content-Type: text/html\r\n")
	assert.Contains(t, out, "Content-Length: 13\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.Contains(t, out, "Server: "+ServerName+"\r\n")
	assert.Contains(t, out, "Date: Fri, 01 Mar 2024 12:00:00 GMT\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n<html></html>"))
}

func TestResponseWriter_StatusFrozenAfterHead(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.now = fixedClock

	rw.WriteStatus(StatusNotFound)
	require.NoError(t, rw.WriteBody(nil))
	rw.WriteStatus(StatusOK) // too late, head already written

	assert.True(t, strings.HasPrefix(buf.String(), "HTTP/1.1 404 Not Found\r\n"))
}

func TestResponseWriter_WriteRawExtendsHeaderBlock(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.now = fixedClock

	rw.WriteStatus(StatusOK)
	require.NoError(t, rw.WriteRaw([]byte("Content-Type: text/plain\r\n\r\n15\n")))

	out := buf.String()
	// The server head must not terminate the block; the script's own blank
	// line is the only terminator.
	assert.Equal(t, 1, strings.Count(out, "\r\n\r\n"))
	assert.True(t, strings.HasSuffix(out, "Content-Type: text/plain\r\n\r\n15\n"))
}

func TestReasonPhrase(t *testing.T) {
	assert.Equal(t, "OK", ReasonPhrase(200))
	assert.Equal(t, "Unauthorized", ReasonPhrase(401))
	assert.Equal(t, "Not Found", ReasonPhrase(404))
	assert.Equal(t, "Internal Server Error", ReasonPhrase(500))
	assert.Equal(t, "Unknown", ReasonPhrase(418))
}
