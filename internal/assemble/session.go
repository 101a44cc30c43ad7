// Package assemble turns the push-driven event stream of a statistical-file
// parser into arrow record batches.
//
// A Session is the event.Handler. It walks the states
//
//	AwaitingMetadata -> AwaitingVariables -> ReceivingValues -> Draining -> Done
//
// building the schema from declarations, appending each value to its
// column, and cutting a batch whenever the FlushPolicy says a completed row
// ends one. Any fatal error moves the session to Failed, discards the
// unflushed rows, and answers StatusAbort so the source stops. Batches that
// reached the sink before the failure stay valid.
//
// A Session is owned by the single goroutine driving its Source; it does no
// locking of its own.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"statbatch/internal/batch"
	"statbatch/internal/column"
	"statbatch/internal/errkind"
	"statbatch/internal/event"
	"statbatch/internal/meta"
	"statbatch/internal/schema"
	"statbatch/internal/sink"
	"statbatch/internal/textenc"
)

// State is the assembler's position in the event protocol.
type State uint8

const (
	AwaitingMetadata State = iota
	AwaitingVariables
	ReceivingValues
	Draining
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingMetadata:
		return "awaiting_metadata"
	case AwaitingVariables:
		return "awaiting_variables"
	case ReceivingValues:
		return "receiving_values"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return "failed"
	}
}

// Options configure a Session.
type Options struct {
	Flush      FlushPolicy
	Encoding   textenc.Policy
	SinkPolicy sink.Policy

	// MetadataOnly stops the parse once every variable is declared.
	MetadataOnly bool

	// Allocator backs column buffers; nil means memory.DefaultAllocator.
	Allocator memory.Allocator
	// Logger receives progress lines; nil means slog.Default().
	Logger *slog.Logger
}

// Result summarizes a run.
type Result struct {
	State       State
	Metadata    meta.FileMetadata
	Fields      []schema.Field
	Schema      *arrow.Schema
	Fingerprint uint64
	Batches     int
	Rows        int64

	// SinkErrors holds the batch-scoped failures absorbed under
	// sink.BestEffort.
	SinkErrors []error
}

// Session assembles one file.
type Session struct {
	opts Options
	out  sink.Sink
	mem  memory.Allocator
	log  *slog.Logger
	ctx  context.Context

	state    State
	registry meta.Registry
	md       meta.FileMetadata
	schema   schema.Builder
	cols     []*column.Accumulator
	capacity int

	nextRow    int64
	nextVar    int
	batchStart int64
	seq        int
	rows       int64

	err      error
	sinkErrs []error

	start     time.Time
	lastFlush time.Time
	lastRows  int64
}

// New returns a session that writes batches to out. A nil out drops them.
func New(out sink.Sink, opts Options) *Session {
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if out == nil {
		out = sink.Discard{}
	}
	now := time.Now()
	return &Session{
		opts:      opts,
		out:       out,
		mem:       opts.Allocator,
		log:       opts.Logger,
		ctx:       context.Background(),
		start:     now,
		lastFlush: now,
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Err returns the first fatal error, if any.
func (s *Session) Err() error { return s.err }

// Metadata returns the captured file metadata; it is the zero value until
// the metadata event arrives.
func (s *Session) Metadata() meta.FileMetadata { return s.md }

// Run drives src to completion and reports the first fatal error. A source
// that stops because the session aborted is not itself an error: the
// session's own error, if any, is returned instead.
func (s *Session) Run(ctx context.Context, src event.Source) (Result, error) {
	s.ctx = ctx
	s.start = time.Now()
	s.lastFlush = s.start

	perr := src.Parse(ctx, s)
	if s.err != nil {
		return s.Result(), s.err
	}
	if perr != nil {
		if errors.Is(perr, errkind.ErrAborted) && s.state == Done {
			return s.Result(), nil
		}
		s.fail(perr)
		return s.Result(), perr
	}
	if err := s.Finish(); err != nil {
		return s.Result(), err
	}
	return s.Result(), nil
}

// Result snapshots the session's outcome.
func (s *Session) Result() Result {
	fields := s.schema.Fields()
	errs := make([]error, len(s.sinkErrs))
	copy(errs, s.sinkErrs)
	return Result{
		State:       s.state,
		Metadata:    s.md,
		Fields:      fields,
		Schema:      s.schema.Arrow(),
		Fingerprint: schema.Fingerprint(fields),
		Batches:     s.seq,
		Rows:        s.rows,
		SinkErrors:  errs,
	}
}

// OnMetadata implements event.Handler.
func (s *Session) OnMetadata(e event.Metadata) event.Status {
	if s.state != AwaitingMetadata {
		return s.fail(errkind.Contractf("metadata event in state %s", s.state))
	}
	if err := s.registry.Capture(e); err != nil {
		return s.fail(err)
	}
	s.md = s.registry.Metadata()
	for _, err := range s.md.Absent() {
		s.log.Debug("metadata field absent", slog.Any("err", err))
	}
	s.capacity = column.Capacity(s.opts.Flush.Chunk(), s.md.RowCount)
	s.schema.SetMetadata(s.md.KeyValues())
	s.cols = make([]*column.Accumulator, 0, s.md.VarCount)
	s.state = AwaitingVariables

	s.log.Debug("metadata captured",
		slog.Int64("row_count", s.md.RowCount),
		slog.Int("var_count", s.md.VarCount),
		slog.String("table_name", s.md.TableName),
		slog.String("encoding", s.md.Encoding),
		slog.String("compression", s.md.Compression.String()),
		slog.String("endianness", s.md.Endianness.String()),
	)

	if s.md.VarCount == 0 {
		return s.declared()
	}
	return event.StatusOK
}

// OnVariable implements event.Handler.
func (s *Session) OnVariable(v event.Variable) event.Status {
	if s.state != AwaitingVariables {
		return s.fail(errkind.Contractf("variable %d (%q) declared in state %s", v.Index, v.Name, s.state))
	}
	if v.Index >= s.md.VarCount {
		return s.fail(errkind.Contractf("variable %q index %d out of range, var_count %d", v.Name, v.Index, s.md.VarCount))
	}
	added, err := s.schema.Add(v)
	if err != nil {
		return s.fail(err)
	}
	if !added {
		return event.StatusOK
	}
	s.cols = append(s.cols, column.New(s.mem, s.schema.Field(v.Index), s.capacity))
	if s.schema.Len() == s.md.VarCount {
		return s.declared()
	}
	return event.StatusOK
}

// declared runs once the declaration phase is complete.
func (s *Session) declared() event.Status {
	fields := s.schema.Fields()
	s.log.Debug("schema declared",
		slog.Int("fields", len(fields)),
		slog.String("fingerprint", fmt.Sprintf("%016x", schema.Fingerprint(fields))),
	)
	if s.opts.MetadataOnly {
		s.releaseColumns()
		s.state = Done
		return event.StatusAbort
	}
	if s.md.RowCount == 0 || s.md.VarCount == 0 {
		s.state = Draining
		if err := s.flush(true); err != nil {
			return s.fail(err)
		}
		s.state = Done
		return event.StatusOK
	}
	s.state = ReceivingValues
	return event.StatusOK
}

// OnValue implements event.Handler.
func (s *Session) OnValue(v event.Value) event.Status {
	if s.state != ReceivingValues {
		return s.fail(errkind.Contractf("value (%d,%d) in state %s", v.Row, v.Var, s.state))
	}
	if v.Row != s.nextRow || v.Var != s.nextVar {
		return s.fail(errkind.Contractf("value (%d,%d) out of order, want (%d,%d)", v.Row, v.Var, s.nextRow, s.nextVar))
	}
	if err := s.appendValue(s.cols[v.Var], v); err != nil {
		return s.fail(err)
	}

	s.nextVar++
	if s.nextVar < len(s.cols) {
		return event.StatusOK
	}

	row := s.nextRow
	s.nextVar = 0
	s.nextRow++
	if err := s.ctx.Err(); err != nil {
		return s.fail(err)
	}
	if !s.opts.Flush.ShouldFlush(row, s.md.RowCount) {
		return event.StatusOK
	}

	final := s.md.RowsKnown() && row == s.md.RowCount-1
	if final {
		s.state = Draining
	}
	if err := s.flush(final); err != nil {
		return s.fail(err)
	}
	if final {
		s.state = Done
	}
	return event.StatusOK
}

func (s *Session) appendValue(acc *column.Accumulator, v event.Value) error {
	if v.Missing || !v.Type.Textual() || v.Type != acc.Field().Declared {
		return acc.Append(v)
	}
	str, null, err := textenc.Sanitize(v.Str, s.opts.Encoding)
	if err != nil {
		return fmt.Errorf("row %d column %q: %w", v.Row, acc.Field().Name, err)
	}
	if null {
		return acc.AppendNull()
	}
	return acc.AppendString(str)
}

// Finish completes a stream whose source returned without error. With a
// known row count every row must have arrived; with an unknown one the
// remaining rows are flushed as the final batch.
func (s *Session) Finish() error {
	var err error
	switch s.state {
	case Done:
		return nil
	case Failed:
		return s.err
	case AwaitingMetadata:
		err = errkind.Contractf("stream ended before metadata")
	case AwaitingVariables:
		err = errkind.Contractf("stream ended after %d of %d variable declarations", s.schema.Len(), s.md.VarCount)
	case ReceivingValues:
		switch {
		case s.nextVar != 0:
			err = errkind.Contractf("stream ended inside row %d at variable %d", s.nextRow, s.nextVar)
		case s.md.RowsKnown():
			err = errkind.Contractf("stream ended after %d of %d rows", s.nextRow, s.md.RowCount)
		default:
			s.state = Draining
			if s.nextRow > s.batchStart || s.seq == 0 {
				err = s.flush(true)
			} else {
				s.releaseColumns()
			}
			if err == nil {
				s.state = Done
				return nil
			}
		}
	}
	s.fail(err)
	return err
}

// flush freezes the current columns into a batch and hands it to the sink.
// Unless final, fresh accumulators replace the finished ones.
func (s *Session) flush(final bool) error {
	arrays := make([]arrow.Array, len(s.cols))
	for i, acc := range s.cols {
		arr, err := acc.Finish()
		if err != nil {
			for _, a := range arrays[:i] {
				a.Release()
			}
			return err
		}
		arrays[i] = arr
	}
	n := s.nextRow - s.batchStart
	rec := array.NewRecordBatch(s.schema.Arrow(), arrays, n)
	for _, a := range arrays {
		a.Release()
	}

	b := &batch.Batch{Seq: s.seq, FirstRow: s.batchStart, Final: final, Record: rec}
	werr := s.write(b)
	b.Release()

	s.seq++
	s.rows += n
	s.batchStart = s.nextRow
	s.progress(n)

	if !final {
		for i, acc := range s.cols {
			s.cols[i] = column.New(s.mem, acc.Field(), s.capacity)
		}
	}
	return werr
}

// write applies the sink policy to one batch.
func (s *Session) write(b *batch.Batch) error {
	err := s.out.Write(s.ctx, b)
	if err == nil {
		return nil
	}
	var se *errkind.SinkError
	if !errors.As(err, &se) {
		err = &errkind.SinkError{Sink: "sink", Seq: b.Seq, Rows: b.NumRows(), Err: err}
	}
	if s.opts.SinkPolicy == sink.BestEffort {
		s.sinkErrs = append(s.sinkErrs, err)
		s.log.Warn("sink write failed; continuing", slog.Int("batch", b.Seq), slog.Any("err", err))
		return nil
	}
	return err
}

func (s *Session) progress(n int64) {
	now := time.Now()
	since := now.Sub(s.lastFlush)
	rps := float64(0)
	if since > 0 {
		rps = float64(s.rows-s.lastRows) / since.Seconds()
	}
	s.log.Info("batch flushed",
		slog.Int("batch", s.seq),
		slog.Int64("rows", n),
		slog.Int64("total_rows", s.rows),
		slog.Float64("rps", float64(int64(rps))),
		slog.Duration("elapsed", now.Sub(s.start).Truncate(time.Millisecond)),
		slog.Duration("since_last", since.Truncate(time.Millisecond)),
	)
	s.lastFlush = now
	s.lastRows = s.rows
}

// fail records the first fatal error, drops unflushed rows, and aborts.
func (s *Session) fail(err error) event.Status {
	if s.err == nil {
		s.err = err
		s.log.Debug("assembly failed", slog.String("state", s.state.String()), slog.Any("err", err))
	}
	s.releaseColumns()
	s.state = Failed
	return event.StatusAbort
}

func (s *Session) releaseColumns() {
	for _, acc := range s.cols {
		acc.Release()
	}
}
