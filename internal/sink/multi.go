package sink

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"statbatch/internal/batch"
	"statbatch/internal/errkind"
)

// Named pairs a sink with the name used in error reports.
type Named struct {
	Name string
	Sink Sink
}

// Multi writes every batch to all of its sinks concurrently. A failure in
// one sink does not stop the others from receiving the batch.
type Multi struct {
	sinks []Named
}

// NewMulti returns a fan-out over sinks.
func NewMulti(sinks ...Named) *Multi { return &Multi{sinks: sinks} }

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Write implements Sink. The returned error joins one *errkind.SinkError per
// failed sink.
func (m *Multi) Write(ctx context.Context, b *batch.Batch) error {
	if len(m.sinks) == 1 {
		return m.wrap(m.sinks[0].Name, b, m.sinks[0].Sink.Write(ctx, b))
	}
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range m.sinks {
		g.Go(func() error {
			if err := s.Sink.Write(ctx, b); err != nil {
				mu.Lock()
				errs = append(errs, m.wrap(s.Name, b, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (m *Multi) wrap(name string, b *batch.Batch, err error) error {
	if err == nil {
		return nil
	}
	return &errkind.SinkError{Sink: name, Seq: b.Seq, Rows: b.NumRows(), Err: err}
}

// Close closes every sink and joins their failures.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Close(); err != nil {
			errs = append(errs, &errkind.SinkError{Sink: s.Name, Seq: -1, Err: err})
		}
	}
	return errors.Join(errs...)
}
