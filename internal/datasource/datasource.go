// Package datasource abstracts where input files come from. Statistical file
// readers seek, so every source yields an io.ReadSeekCloser.
package datasource

import (
	"context"
	"io"
	"path/filepath"

	"statbatch/internal/datasource/file"
	"statbatch/internal/datasource/httpds"
)

type Source interface {
	Open(ctx context.Context) (io.ReadSeekCloser, error)
}

// For returns a Remote for http(s) URLs and a Local file otherwise. A nil
// client selects httpds defaults.
func For(path string, c *httpds.Client) Source {
	if httpds.IsURL(path) {
		return httpds.NewRemote(path, c)
	}
	return file.NewLocal(path)
}

// Name is the file name of path: the last URL path element for URLs, the
// base name otherwise.
func Name(path string) string {
	if httpds.IsURL(path) {
		return httpds.FileName(path)
	}
	return filepath.Base(path)
}
