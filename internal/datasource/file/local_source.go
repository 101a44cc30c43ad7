// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct {
	path string

	// Sequential hints the kernel that the file is read front to back.
	Sequential bool
}

// NewLocal returns a Local data source bound to path with sequential read
// advice enabled.
func NewLocal(path string) *Local { return &Local{path: path, Sequential: true} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading.
//
// Behavior:
//   - If ctx is already done, Open returns the context error without touching
//     the filesystem.
//   - Filesystem errors are wrapped with the path and still match
//     errors.Is(err, os.ErrNotExist) and friends.
//   - Directories are rejected.
func (l *Local) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: is a directory", l.path)
	}
	if l.Sequential {
		adviseSequential(f)
	}
	return f, nil
}
