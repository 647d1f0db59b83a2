// Package responder produces response bodies for static-file and
// directory-listing routes.
package responder

import (
	"fmt"
	"os"

	"github.com/ramondl/httpserv/pkg/mime"
)

// StaticFile is the content of a regular file plus its content type.
type StaticFile struct {
	ContentType string
	Body        []byte
}

// ReadStatic reads the file at fsPath and determines its content type from
// the extension table, defaulting to a generic binary type.
func ReadStatic(fsPath string) (*StaticFile, error) {
	body, err := os.ReadFile(fsPath)
	if err != nil {
		return nil, fmt.Errorf("read static file %s: %w", fsPath, err)
	}
	return &StaticFile{
		ContentType: mime.TypeByPath(fsPath),
		Body:        body,
	}, nil
}
