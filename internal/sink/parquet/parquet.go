// Package parquet writes batches to a Parquet file through pqarrow. The arrow
// schema is stored in the file so field metadata (labels, formats, format
// classes) survives a round trip. Each batch becomes one row group.
//
// Options:
//
//	compression string  snappy (default), zstd, gzip, none
package parquet

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"statbatch/internal/batch"
	"statbatch/internal/sink"
)

const Kind = "parquet"

func init() {
	sink.Register(Kind, func(_ context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(cfg)
	})
}

// Codec maps a compression name to a parquet codec.
func Codec(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("parquet sink: unknown compression %q", name)
	}
}

// Sink writes one Parquet file, created on the first batch.
type Sink struct {
	path  string
	props *parquet.WriterProperties

	out io.WriteCloser
	w   *pqarrow.FileWriter
}

// New validates cfg and returns a Sink.
func New(cfg sink.Config) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("parquet sink: path is required")
	}
	codec, err := Codec(cfg.Options.String("compression", "snappy"))
	if err != nil {
		return nil, err
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithCreatedBy("statbatch"),
	)
	return &Sink{path: cfg.Path, props: props}, nil
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
		w, err := pqarrow.NewFileWriter(b.Schema(), out, s.props,
			pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
		if err != nil {
			_ = out.Close()
			return fmt.Errorf("parquet sink: %w", err)
		}
		s.out, s.w = out, w
	}
	if err := s.w.Write(b.Record); err != nil {
		return fmt.Errorf("parquet sink: batch %d: %w", b.Seq, err)
	}
	return nil
}

// Close writes the footer. The file writer closes the underlying file.
func (s *Sink) Close() error {
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.out, s.w = nil, nil
	return err
}
