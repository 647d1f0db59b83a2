// Package cgi executes external programs for script routes and captures
// their standard output as the response body.
package cgi

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/ramondl/httpserv/internal/logger"
)

// ScriptError reports a failed script execution: the program could not be
// spawned, or it exited with a nonzero status. The pipeline answers it with
// a 500 response.
type ScriptError struct {
	Script   string
	ExitCode int
	Err      error
}

func (e *ScriptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script %s: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("script %s: exit status %d", e.Script, e.ExitCode)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a successful script run.
type Result struct {
	// Stdout is everything the script wrote to its standard output.
	Stdout []byte

	// HasOwnHeaders reports whether the output begins with a CGI-style
	// header block that the response writer should splice into its own.
	HasOwnHeaders bool
}

// Engine spawns one child process per script request.
//
// Execution is synchronous and has no timeout: the calling dispatch unit
// blocks until the child exits. A hung script therefore stalls its worker
// (or, under the iterative strategy, the whole server).
type Engine struct {
	// BaseEnv is prepended to the per-request variables. Nil means the
	// parent's environment.
	BaseEnv []string
}

// Spawn runs the executable with the given environment on top of BaseEnv,
// capturing standard output. It returns the captured output and a
// ScriptError on spawn failure or nonzero exit.
//
// Standard error is passed through to the server's own stderr so script
// diagnostics end up in the server logs rather than in responses.
func (e *Engine) Spawn(executable string, argv []string, env []string) ([]byte, error) {
	cmd := exec.Command(executable, argv...)

	base := e.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	cmd.Env = append(append([]string{}, base...), env...)
	cmd.Stderr = os.Stderr

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return nil, &ScriptError{Script: executable, Err: err}
	}

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, &ScriptError{Script: executable, ExitCode: exitErr.ExitCode()}
		}
		return nil, &ScriptError{Script: executable, Err: err}
	}

	return stdout.Bytes(), nil
}

// Run executes the script for one request, wiring the CGI environment:
// QUERY_STRING, REQUEST_METHOD, SCRIPT_FILENAME, REMOTE_ADDR and
// SERVER_SOFTWARE.
func (e *Engine) Run(scriptPath, method, rawQuery, remoteAddr, serverSoftware string) (*Result, error) {
	env := []string{
		"QUERY_STRING=" + rawQuery,
		"REQUEST_METHOD=" + method,
		"SCRIPT_FILENAME=" + scriptPath,
		"REMOTE_ADDR=" + remoteAddr,
		"SERVER_SOFTWARE=" + serverSoftware,
	}

	logger.Debug("Executing script %s (QUERY_STRING=%q)", scriptPath, rawQuery)

	stdout, err := e.Spawn(scriptPath, nil, env)
	if err != nil {
		return nil, err
	}

	return &Result{
		Stdout:        stdout,
		HasOwnHeaders: hasHeaderBlock(stdout),
	}, nil
}

// hasHeaderBlock reports whether output starts with `Name: value` lines
// followed by a blank line, i.e. the script produced its own CGI headers.
func hasHeaderBlock(output []byte) bool {
	head, _, found := bytes.Cut(output, []byte("\n\n"))
	if !found {
		head, _, found = bytes.Cut(output, []byte("\r\n\r\n"))
		if !found {
			return false
		}
	}

	lines := bytes.Split(head, []byte("\n"))
	for _, line := range lines {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			return false
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return false
		}
		if bytes.ContainsAny(line[:colon], " \t") {
			return false
		}
	}
	return len(lines) > 0
}
