// Package csv writes batches as CSV through arrow-go's CSV writer.
//
// Options:
//
//	comma  string  field delimiter (default ",")
//	header bool    write a header row (default true)
//	null   string  text written for nulls (default "")
//	crlf   bool    end lines with \r\n
package csv

import (
	"context"
	"fmt"
	"io"

	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"

	"statbatch/internal/batch"
	"statbatch/internal/sink"
)

const Kind = "csv"

func init() {
	sink.Register(Kind, func(_ context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(cfg)
	})
}

// Sink writes one CSV file. The file is created on the first batch.
type Sink struct {
	path string
	opts []arrowcsv.Option

	out io.WriteCloser
	w   *arrowcsv.Writer
}

// New validates cfg and returns a Sink.
func New(cfg sink.Config) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv sink: path is required")
	}
	o := cfg.Options
	return &Sink{
		path: cfg.Path,
		opts: []arrowcsv.Option{
			arrowcsv.WithComma(o.Rune("comma", ',')),
			arrowcsv.WithHeader(o.Bool("header", true)),
			arrowcsv.WithNullWriter(o.String("null", "")),
			arrowcsv.WithCRLF(o.Bool("crlf", false)),
		},
	}, nil
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
		s.out = out
		s.w = arrowcsv.NewWriter(out, b.Schema(), s.opts...)
	}
	if err := s.w.Write(b.Record); err != nil {
		return fmt.Errorf("csv sink: batch %d: %w", b.Seq, err)
	}
	return s.w.Flush()
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	if s.out == nil {
		return nil
	}
	ferr := s.w.Flush()
	cerr := s.out.Close()
	s.out, s.w = nil, nil
	if ferr != nil {
		return ferr
	}
	return cerr
}
