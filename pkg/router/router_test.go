package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRoot builds a document root with a known shape:
//
//	index.html
//	style.css
//	handlers/echo.so
//	cgi-bin/add.sh
//	dir1/a.txt
//	dir1/sub/
//	empty/
func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("index.html", "<html>root</html>")
	write("style.css", "body{}")
	write("handlers/echo.so", "\x7fELF")
	write("cgi-bin/add.sh", "#!/bin/sh\n")
	write("dir1/a.txt", "a")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir1", "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	return root
}

func TestResolve(t *testing.T) {
	root := newTestRoot(t)
	r := New(root)

	t.Run("StatsAndLogs", func(t *testing.T) {
		route, err := r.Resolve("/stats")
		require.NoError(t, err)
		assert.Equal(t, KindStats, route.Kind)

		route, err = r.Resolve("/logs")
		require.NoError(t, err)
		assert.Equal(t, KindLogs, route.Kind)
	})

	t.Run("ScriptPrefixWinsOverExistence", func(t *testing.T) {
		route, err := r.Resolve("/cgi-bin/add.sh")
		require.NoError(t, err)
		assert.Equal(t, KindScript, route.Kind)
		assert.Equal(t, filepath.Join(root, "cgi-bin", "add.sh"), route.FilePath)

		// Nonexistent scripts still classify as script; the engine reports
		// the spawn failure.
		route, err = r.Resolve("/cgi-bin/missing.sh")
		require.NoError(t, err)
		assert.Equal(t, KindScript, route.Kind)
	})

	t.Run("HandlerByExtension", func(t *testing.T) {
		route, err := r.Resolve("/handlers/echo.so")
		require.NoError(t, err)
		assert.Equal(t, KindHandler, route.Kind)
		assert.Equal(t, filepath.Join(root, "handlers", "echo.so"), route.FilePath)
	})

	t.Run("StaticFile", func(t *testing.T) {
		route, err := r.Resolve("/style.css")
		require.NoError(t, err)
		assert.Equal(t, KindStatic, route.Kind)
	})

	t.Run("DirectoryWithIndexServesIndex", func(t *testing.T) {
		route, err := r.Resolve("/")
		require.NoError(t, err)
		assert.Equal(t, KindStatic, route.Kind)
		assert.Equal(t, filepath.Join(root, "index.html"), route.FilePath)
	})

	t.Run("DirectoryWithoutIndexLists", func(t *testing.T) {
		route, err := r.Resolve("/dir1/")
		require.NoError(t, err)
		assert.Equal(t, KindListing, route.Kind)

		route, err = r.Resolve("/dir1")
		require.NoError(t, err)
		assert.Equal(t, KindListing, route.Kind, "trailing slash is optional")
	})

	t.Run("MissingPathIsNotFound", func(t *testing.T) {
		route, err := r.Resolve("/no/such/file")
		require.NoError(t, err)
		assert.Equal(t, KindNotFound, route.Kind)
	})

	t.Run("DeterministicForFixedState", func(t *testing.T) {
		first, err := r.Resolve("/dir1/a.txt")
		require.NoError(t, err)
		second, err := r.Resolve("/dir1/a.txt")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestResolve_Traversal(t *testing.T) {
	root := newTestRoot(t)
	r := New(root)

	escaping := []string{
		"/../etc/passwd",
		"/..",
		"/dir1/../../etc/passwd",
		"/dir1/../../../x",
		"/cgi-bin/../../../bin/sh",
	}
	for _, path := range escaping {
		route, err := r.Resolve(path)
		assert.ErrorIs(t, err, ErrPathTraversal, "path %q", path)
		assert.Equal(t, KindNotFound, route.Kind, "path %q", path)
	}

	// Dotdot segments that stay inside the root are fine.
	route, err := r.Resolve("/dir1/../style.css")
	require.NoError(t, err)
	assert.Equal(t, KindStatic, route.Kind)
}
