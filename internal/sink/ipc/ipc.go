// Package ipc writes batches in the Arrow IPC format: the random-access file
// format (Feather v2) by default, or the stream format.
//
// Options:
//
//	compression string  none (default), lz4, zstd
//	stream      bool    write the IPC stream format
package ipc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"statbatch/internal/batch"
	"statbatch/internal/sink"
)

const Kind = "ipc"

func init() {
	sink.Register(Kind, func(_ context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(cfg)
	})
}

// recordWriter is the common surface of ipc.Writer and ipc.FileWriter.
type recordWriter interface {
	Write(rec arrow.RecordBatch) error
	Close() error
}

// Sink writes one IPC file, created on the first batch.
type Sink struct {
	path   string
	stream bool
	opts   []ipc.Option

	out io.WriteCloser
	w   recordWriter
}

// New validates cfg and returns a Sink.
func New(cfg sink.Config) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ipc sink: path is required")
	}
	s := &Sink{path: cfg.Path, stream: cfg.Options.Bool("stream", false)}
	switch c := strings.ToLower(cfg.Options.String("compression", "none")); c {
	case "", "none":
	case "lz4":
		s.opts = append(s.opts, ipc.WithLZ4())
	case "zstd":
		s.opts = append(s.opts, ipc.WithZstd())
	default:
		return nil, fmt.Errorf("ipc sink: unknown compression %q", c)
	}
	return s, nil
}

// Write implements sink.Sink.
func (s *Sink) Write(ctx context.Context, b *batch.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.w == nil {
		out, err := sink.CreateFile(s.path)
		if err != nil {
			return err
		}
		opts := append([]ipc.Option{ipc.WithSchema(b.Schema())}, s.opts...)
		if s.stream {
			s.w = ipc.NewWriter(out, opts...)
		} else {
			w, err := ipc.NewFileWriter(out, opts...)
			if err != nil {
				_ = out.Close()
				return fmt.Errorf("ipc sink: %w", err)
			}
			s.w = w
		}
		s.out = out
	}
	if err := s.w.Write(b.Record); err != nil {
		return fmt.Errorf("ipc sink: batch %d: %w", b.Seq, err)
	}
	return nil
}

// Close writes the footer (file format) or end-of-stream marker and closes
// the file.
func (s *Sink) Close() error {
	if s.w == nil {
		return nil
	}
	werr := s.w.Close()
	cerr := s.out.Close()
	s.out, s.w = nil, nil
	if werr != nil {
		return werr
	}
	return cerr
}
