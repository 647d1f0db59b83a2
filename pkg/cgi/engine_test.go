package cgi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestEngine_Run(t *testing.T) {
	engine := &Engine{}

	t.Run("CapturesStdout", func(t *testing.T) {
		script := writeScript(t, "hello.sh", `echo "hello world"`)

		res, err := engine.Run(script, "GET", "", "127.0.0.1", "httpserv/1.0")
		require.NoError(t, err)
		assert.Equal(t, "hello world\n", string(res.Stdout))
		assert.False(t, res.HasOwnHeaders)
	})

	t.Run("PassesQueryStringAndMethod", func(t *testing.T) {
		script := writeScript(t, "env.sh", `echo "$REQUEST_METHOD $QUERY_STRING"`)

		res, err := engine.Run(script, "GET", "a=5&b=10", "127.0.0.1", "httpserv/1.0")
		require.NoError(t, err)
		assert.Equal(t, "GET a=5&b=10\n", string(res.Stdout))
	})

	t.Run("NonzeroExitFails", func(t *testing.T) {
		script := writeScript(t, "fail.sh", "exit 1")

		_, err := engine.Run(script, "GET", "", "127.0.0.1", "httpserv/1.0")
		require.Error(t, err)

		var scriptErr *ScriptError
		require.ErrorAs(t, err, &scriptErr)
		assert.Equal(t, 1, scriptErr.ExitCode)
	})

	t.Run("SpawnFailure", func(t *testing.T) {
		_, err := engine.Run(filepath.Join(t.TempDir(), "missing.sh"), "GET", "", "127.0.0.1", "httpserv/1.0")

		var scriptErr *ScriptError
		require.ErrorAs(t, err, &scriptErr)
		assert.Error(t, scriptErr.Err)
	})

	t.Run("DetectsScriptHeaders", func(t *testing.T) {
		script := writeScript(t, "headers.sh", `printf 'Content-Type: text/plain\n\n15\n'`)

		res, err := engine.Run(script, "GET", "a=5&b=10", "127.0.0.1", "httpserv/1.0")
		require.NoError(t, err)
		assert.True(t, res.HasOwnHeaders)
	})
}

func TestHasHeaderBlock(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   bool
	}{
		{"CGIHeaders", "Content-Type: text/plain\n\nbody", true},
		{"CRLFHeaders", "Content-Type: text/plain\r\n\r\nbody", true},
		{"MultipleHeaders", "Content-Type: text/plain\nX-Extra: 1\n\nbody", true},
		{"PlainText", "just some output\n", false},
		{"ColonButSpaceInName", "not a: header\n\nbody", false},
		{"NoBlankLine", "Content-Type: text/plain\nbody", false},
		{"Empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, hasHeaderBlock([]byte(tc.output)))
		})
	}
}
