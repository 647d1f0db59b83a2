// Package mime maps file extensions to content types. The table is static
// and read-only after process start.
package mime

import (
	"path/filepath"
	"strings"
)

// DefaultType is used when an extension has no mapping.
const DefaultType = "application/octet-stream"

var byExtension = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "application/xml",
	".csv":  "text/csv",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".wasm": "application/wasm",
}

// TypeByPath returns the content type for the file at path, based on its
// extension, or DefaultType when the extension is unknown.
func TypeByPath(path string) string {
	if t, ok := byExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return DefaultType
}
