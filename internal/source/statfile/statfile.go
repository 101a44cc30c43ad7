// Package statfile is an event.Source over SAS7BDAT and Stata dta files,
// backed by github.com/kshedden/datareader.
//
// The readers decode whole chunks of rows into column series; Parse walks
// each chunk row-major and pushes one value event per cell.
package statfile

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kshedden/datareader"

	"statbatch/internal/datasource/file"
	"statbatch/internal/errkind"
	"statbatch/internal/event"
)

// Kind selects the file format.
type Kind string

const (
	KindAuto  Kind = ""
	KindSAS   Kind = "sas7bdat"
	KindStata Kind = "dta"
)

// DefaultChunkRows bounds how many rows are decoded per read.
const DefaultChunkRows = 10000

// Options configure a File.
type Options struct {
	Kind Kind

	// ChunkRows is the number of rows decoded per read.
	ChunkRows int

	// RowLimit caps delivered rows when positive. The metadata event then
	// reports the capped count.
	RowLimit int64

	// Encoding overrides the text encoding recorded in the file.
	Encoding string

	// KeepPadding disables trailing-space trimming of SAS strings.
	KeepPadding bool
}

// KindOf infers the kind from path's extension.
func KindOf(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sas7bdat":
		return KindSAS, nil
	case ".dta":
		return KindStata, nil
	default:
		return KindAuto, fmt.Errorf("statfile: cannot infer format of %q", path)
	}
}

// reader is the part of a datareader reader that Parse drives.
type reader interface {
	metadata() event.Metadata
	variables() []event.Variable
	// read returns up to n rows as one series per variable, or io.EOF.
	read(n int) ([]*datareader.Series, error)
}

// File is an open statistical file.
type File struct {
	path string
	opts Options
	rc   io.ReadSeekCloser
	r    reader
}

// Open opens path and reads its header.
func Open(ctx context.Context, path string, opts Options) (*File, error) {
	kind := opts.Kind
	if kind == KindAuto {
		k, err := KindOf(path)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	f, err := newFile(rc, kind, opts)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("statfile: %s: %w", path, err)
	}
	f.path = path
	return f, nil
}

// NewReader reads the header of an already open file. The caller keeps
// ownership of rs.
func NewReader(rs io.ReadSeeker, kind Kind, opts Options) (*File, error) {
	return newFile(nopCloser{rs}, kind, opts)
}

func newFile(rc io.ReadSeekCloser, kind Kind, opts Options) (f *File, err error) {
	defer recoverInto(&err)
	var r reader
	switch kind {
	case KindSAS:
		r, err = newSAS(rc, opts)
	case KindStata:
		r, err = newStata(rc, opts)
	default:
		err = fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return &File{opts: opts, rc: rc, r: r}, nil
}

// Path returns the opened path, empty for NewReader files.
func (f *File) Path() string { return f.path }

// Metadata returns the metadata event Parse will deliver.
func (f *File) Metadata() event.Metadata {
	md := f.r.metadata()
	if f.opts.RowLimit > 0 && (md.RowCount < 0 || md.RowCount > f.opts.RowLimit) {
		md.RowCount = f.opts.RowLimit
	}
	return md
}

// Close releases the underlying file.
func (f *File) Close() error { return f.rc.Close() }

// Parse implements event.Source. It can be called once.
func (f *File) Parse(ctx context.Context, h event.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	md := f.Metadata()
	if h.OnMetadata(md) == event.StatusAbort {
		return errkind.ErrAborted
	}
	vars := f.r.variables()
	for _, v := range vars {
		if h.OnVariable(v) == event.StatusAbort {
			return errkind.ErrAborted
		}
	}
	if len(vars) == 0 {
		return nil
	}

	chunk := f.opts.ChunkRows
	if chunk <= 0 {
		chunk = DefaultChunkRows
	}
	var row int64
	for md.RowCount < 0 || row < md.RowCount {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := chunk
		if md.RowCount >= 0 && md.RowCount-row < int64(n) {
			n = int(md.RowCount - row)
		}
		cols, err := f.safeRead(n)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("statfile: read at row %d: %w", row, err)
		}
		rows, err := rowsIn(cols, len(vars))
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		cells, err := cellsOf(cols, vars)
		if err != nil {
			return err
		}
		for i := 0; i < rows; i++ {
			for j, c := range cells {
				if h.OnValue(c.value(row, j, i)) == event.StatusAbort {
					return errkind.ErrAborted
				}
			}
			row++
		}
	}
	return nil
}

func (f *File) safeRead(n int) (cols []*datareader.Series, err error) {
	defer recoverInto(&err)
	return f.r.read(n)
}

// recoverInto turns a reader panic into an error; datareader panics on
// some malformed inputs.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed file: %v", r)
	}
}

func rowsIn(cols []*datareader.Series, nvar int) (int, error) {
	if len(cols) == 0 {
		return 0, nil
	}
	if len(cols) != nvar {
		return 0, errkind.Contractf("reader returned %d columns, want %d", len(cols), nvar)
	}
	n := cols[0].Length()
	for j, c := range cols[1:] {
		if c.Length() != n {
			return 0, errkind.Contractf("column %d has %d rows, column 0 has %d", j+1, c.Length(), n)
		}
	}
	return n, nil
}

type nopCloser struct{ io.ReadSeeker }

func (nopCloser) Close() error { return nil }
