package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"statbatch/internal/batch"
	"statbatch/internal/config"
	"statbatch/internal/errkind"
	"statbatch/internal/meta"
	"statbatch/internal/sink"
)

// lazySink defers sink construction to the first batch, when the file
// metadata the factories derive names from is known.
type lazySink struct {
	spec   config.SinkSpec
	input  string
	md     func() meta.FileMetadata
	logger *slog.Logger

	s sink.Sink
}

func (l *lazySink) Write(ctx context.Context, b *batch.Batch) error {
	if l.s == nil {
		s, err := sink.New(ctx, sink.Config{
			Kind:     l.spec.Kind,
			Path:     sink.ExpandPath(l.spec.Path, l.input),
			Options:  l.spec.Options,
			Input:    l.input,
			Metadata: l.md(),
			Logger:   l.logger,
		})
		if err != nil {
			return err
		}
		l.s = s
	}
	return l.s.Write(ctx, b)
}

func (l *lazySink) Close() error {
	if l.s == nil {
		return nil
	}
	return l.s.Close()
}

// loaded reports rows loaded by sinks that count them.
func (l *lazySink) loaded() int64 {
	if r, ok := l.s.(interface{ Rows() int64 }); ok {
		return r.Rows()
	}
	return 0
}

// buildSinks returns the fan-out for job.Sinks. Sink names are their kind,
// suffixed with the position when a kind repeats.
func buildSinks(specs []config.SinkSpec, input string, md func() meta.FileMetadata, logger *slog.Logger) (*sink.Multi, []*lazySink) {
	count := map[string]int{}
	for _, s := range specs {
		count[s.Kind]++
	}
	named := make([]sink.Named, 0, len(specs))
	lazy := make([]*lazySink, 0, len(specs))
	for i, s := range specs {
		name := s.Kind
		if count[s.Kind] > 1 {
			name = fmt.Sprintf("%s[%d]", s.Kind, i)
		}
		l := &lazySink{spec: s, input: input, md: md, logger: logger.With(slog.String("sink", name))}
		named = append(named, sink.Named{Name: name, Sink: l})
		lazy = append(lazy, l)
	}
	return sink.NewMulti(named...), lazy
}

// sinkErrors flattens err into its *errkind.SinkError parts.
func sinkErrors(err error) []*errkind.SinkError {
	switch e := err.(type) {
	case nil:
		return nil
	case *errkind.SinkError:
		return []*errkind.SinkError{e}
	case interface{ Unwrap() []error }:
		var out []*errkind.SinkError
		for _, inner := range e.Unwrap() {
			out = append(out, sinkErrors(inner)...)
		}
		return out
	}
	var se *errkind.SinkError
	if errors.As(err, &se) {
		return []*errkind.SinkError{se}
	}
	return nil
}
