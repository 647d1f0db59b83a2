// Package router classifies parsed requests into routes. Classification is
// a pure function of (path, configured routes, filesystem state at
// resolution time) and never touches the connection.
package router

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies what a request path resolved to.
type Kind int

const (
	// KindStatic serves the bytes of a regular file.
	KindStatic Kind = iota
	// KindListing serves a generated directory listing.
	KindListing
	// KindScript executes an external program and serves its output.
	KindScript
	// KindHandler invokes a dynamically loaded shared-object handler.
	KindHandler
	// KindStats serves the statistics page.
	KindStats
	// KindLogs serves the request log dump.
	KindLogs
	// KindNotFound matches nothing servable.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindListing:
		return "listing"
	case KindScript:
		return "script"
	case KindHandler:
		return "handler"
	case KindStats:
		return "stats"
	case KindLogs:
		return "logs"
	default:
		return "not_found"
	}
}

// ErrPathTraversal is reported when a request path would resolve outside
// the document root. The route is still KindNotFound; the server must never
// serve anything outside the root.
var ErrPathTraversal = errors.New("path escapes document root")

// Route is the result of classification.
type Route struct {
	Kind Kind

	// FilePath is the resolved filesystem path for static, listing, script
	// and handler routes. Empty for stats, logs and not-found.
	FilePath string
}

// Router resolves request paths below a document root.
type Router struct {
	// DocRoot is the absolute document root. All file-backed routes resolve
	// strictly below it.
	DocRoot string

	// ScriptPrefix is the URL prefix mapped to script execution
	// (default /cgi-bin/).
	ScriptPrefix string

	// HandlerExt is the file extension identifying shared-object handler
	// routes (default .so).
	HandlerExt string

	// IndexFile is the default document served for directories when present
	// (default index.html).
	IndexFile string
}

// New returns a Router rooted at docRoot with defaults applied.
func New(docRoot string) *Router {
	return &Router{
		DocRoot:      filepath.Clean(docRoot),
		ScriptPrefix: "/cgi-bin/",
		HandlerExt:   ".so",
		IndexFile:    "index.html",
	}
}

// Resolve classifies a decoded request path.
//
// Order of precedence: /stats, /logs, the script prefix, then filesystem
// resolution (handler extension, directory, regular file), then not-found.
// A path escaping the document root yields (KindNotFound, ErrPathTraversal).
func (r *Router) Resolve(path string) (Route, error) {
	switch path {
	case "/stats":
		return Route{Kind: KindStats}, nil
	case "/logs":
		return Route{Kind: KindLogs}, nil
	}

	fsPath, err := r.contain(path)
	if err != nil {
		return Route{Kind: KindNotFound}, err
	}

	if r.ScriptPrefix != "" && strings.HasPrefix(path, r.ScriptPrefix) {
		return Route{Kind: KindScript, FilePath: fsPath}, nil
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		return Route{Kind: KindNotFound}, nil
	}

	if info.IsDir() {
		if r.IndexFile != "" {
			index := filepath.Join(fsPath, r.IndexFile)
			if fi, err := os.Stat(index); err == nil && fi.Mode().IsRegular() {
				return Route{Kind: KindStatic, FilePath: index}, nil
			}
		}
		return Route{Kind: KindListing, FilePath: fsPath}, nil
	}

	if !info.Mode().IsRegular() {
		return Route{Kind: KindNotFound}, nil
	}

	if r.HandlerExt != "" && strings.EqualFold(filepath.Ext(fsPath), r.HandlerExt) {
		return Route{Kind: KindHandler, FilePath: fsPath}, nil
	}

	return Route{Kind: KindStatic, FilePath: fsPath}, nil
}

// contain maps a URL path onto the filesystem and rejects any path whose
// ".." segments would climb above the document root, before normalization
// can hide them.
func (r *Router) contain(path string) (string, error) {
	depth := 0
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", ErrPathTraversal
			}
		default:
			depth++
		}
	}

	fsPath := filepath.Join(r.DocRoot, filepath.Clean("/"+path))

	// The joined path must sit at or below the root.
	rel, err := filepath.Rel(r.DocRoot, fsPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return fsPath, nil
}
