package assemble

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"statbatch/internal/batch"
	"statbatch/internal/errkind"
	"statbatch/internal/event"
	"statbatch/internal/sink"
	"statbatch/internal/textenc"
)

// recordSink keeps every batch it receives. failAt makes Write fail for that
// sequence number; cancel, if set, is called after the first write.
type recordSink struct {
	batches []*batch.Batch
	failAt  int
	cancel  context.CancelFunc
}

func newRecordSink() *recordSink { return &recordSink{failAt: -1} }

func (r *recordSink) Write(_ context.Context, b *batch.Batch) error {
	b.Record.Retain()
	r.batches = append(r.batches, &batch.Batch{Seq: b.Seq, FirstRow: b.FirstRow, Final: b.Final, Record: b.Record})
	if r.cancel != nil {
		r.cancel()
	}
	if b.Seq == r.failAt {
		return errors.New("disk full")
	}
	return nil
}

func (r *recordSink) Close() error { return nil }

func (r *recordSink) release() {
	for _, b := range r.batches {
		b.Release()
	}
}

func (r *recordSink) sizes() []int64 {
	out := make([]int64, len(r.batches))
	for i, b := range r.batches {
		out[i] = b.NumRows()
	}
	return out
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// run assembles src with a leak-checked allocator.
func run(t *testing.T, src event.Source, opts Options) (*recordSink, Result, error) {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	opts.Allocator = mem
	opts.Logger = quiet()
	out := newRecordSink()
	t.Cleanup(func() {
		out.release()
		mem.AssertSize(t, 0)
	})
	res, err := New(out, opts).Run(context.Background(), src)
	return out, res, err
}

// intSource emits rows rows of a single int32 column whose value is the row
// index. A negative declared count hides the total from the assembler.
func intSource(rows int64, declared int64) event.Source {
	return event.SourceFunc(func(ctx context.Context, h event.Handler) error {
		if h.OnMetadata(event.Metadata{RowCount: declared, VarCount: 1, TableName: "ints"}) == event.StatusAbort {
			return errkind.ErrAborted
		}
		if h.OnVariable(event.Variable{Index: 0, Type: event.TypeInt32, Name: "n"}) == event.StatusAbort {
			return errkind.ErrAborted
		}
		for r := int64(0); r < rows; r++ {
			if h.OnValue(event.Int32(r, 0, int32(r))) == event.StatusAbort {
				return errkind.ErrAborted
			}
		}
		return nil
	})
}

func threeRows() *event.Replay {
	return &event.Replay{
		Metadata: event.Metadata{
			RowCount: 3, VarCount: 2, TableName: "people", Encoding: "UTF-8",
			Version: 9, Is64Bit: true, Endianness: event.EndianLittle,
		},
		Variables: []event.Variable{
			{Index: 0, Type: event.TypeString, Name: "name", Label: "Name"},
			{Index: 1, Type: event.TypeDouble, Name: "score", Format: "BEST12."},
		},
		Values: []event.Value{
			event.String(0, 0, "ann"), event.Double(0, 1, 0.1+0.2),
			event.String(1, 0, "bo"), event.Missing(1, 1, event.TypeDouble),
			event.Missing(2, 0, event.TypeString), event.Double(2, 1, 7),
		},
	}
}

func TestSessionThreeRows(t *testing.T) {
	t.Parallel()

	out, res, err := run(t, threeRows(), Options{})
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.Equal(t, 1, res.Batches)
	require.EqualValues(t, 3, res.Rows)
	require.Len(t, res.Fields, 2)

	require.Len(t, out.batches, 1)
	b := out.batches[0]
	require.True(t, b.Final)
	require.EqualValues(t, 0, b.FirstRow)

	rec := b.Record
	require.EqualValues(t, 3, rec.NumRows())
	require.Equal(t, arrow.BinaryTypes.String, rec.Schema().Field(0).Type)
	require.Equal(t, arrow.PrimitiveTypes.Float64, rec.Schema().Field(1).Type)

	names := rec.Column(0).(*array.String)
	require.Equal(t, "ann", names.Value(0))
	require.Equal(t, "bo", names.Value(1))
	require.True(t, names.IsNull(2))

	scores := rec.Column(1).(*array.Float64)
	require.Equal(t, 0.3, scores.Value(0))
	require.True(t, scores.IsNull(1))
	require.Equal(t, 7.0, scores.Value(2))

	md := rec.Schema().Metadata()
	idx := md.FindKey("table_name")
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, "people", md.Values()[idx])
}

// TestSessionChunking covers the 100000-row default: 200001 rows arrive as
// 100000, 100000, 1.
func TestSessionChunking(t *testing.T) {
	t.Parallel()

	out, res, err := run(t, intSource(200001, 200001), Options{})
	require.NoError(t, err)
	require.Equal(t, []int64{100000, 100000, 1}, out.sizes())
	require.Equal(t, 3, res.Batches)
	require.EqualValues(t, 200001, res.Rows)

	for i, b := range out.batches {
		require.Equal(t, i, b.Seq)
		require.Equal(t, i == 2, b.Final)
		require.EqualValues(t, int64(i)*100000, b.FirstRow)
		first := b.Record.Column(0).(*array.Int32).Value(0)
		require.EqualValues(t, b.FirstRow, first)
	}
}

func TestSessionFullBuffer(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, intSource(25, 25), Options{Flush: FlushPolicy{Mode: FullBuffer, ChunkRows: 10}})
	require.NoError(t, err)
	require.Equal(t, []int64{25}, out.sizes())
}

func TestSessionChunkingRemainder(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, intSource(250001, 250001), Options{})
	require.NoError(t, err)
	require.Equal(t, []int64{100000, 100000, 50001}, out.sizes())
	require.True(t, out.batches[2].Final)
}

// TestSessionFullBufferHugeRowCount declares far more rows than could fit in
// memory. Buffers start at the chunk size, so the short stream fails on the
// contract instead of the allocator.
func TestSessionFullBufferHugeRowCount(t *testing.T) {
	t.Parallel()

	src := &event.Replay{
		Metadata:  event.Metadata{RowCount: 1 << 40, VarCount: 1},
		Variables: []event.Variable{{Index: 0, Type: event.TypeInt32, Name: "n"}},
		Values:    []event.Value{event.Int32(0, 0, 1)},
	}
	out, res, err := run(t, src, Options{Flush: FlushPolicy{Mode: FullBuffer}})
	require.ErrorIs(t, err, errkind.ErrContract)
	require.Equal(t, Failed, res.State)
	require.Empty(t, out.batches)
}

// TestSessionFullBufferIntAndText assembles one batch holding an int32 and a
// text column, each with a trailing or middle null.
func TestSessionFullBufferIntAndText(t *testing.T) {
	t.Parallel()

	src := &event.Replay{
		Metadata: event.Metadata{RowCount: 3, VarCount: 2},
		Variables: []event.Variable{
			{Index: 0, Type: event.TypeInt32, Name: "_int"},
			{Index: 1, Type: event.TypeString, Name: "_name"},
		},
		Values: []event.Value{
			event.Int32(0, 0, 10), event.String(0, 1, "a"),
			event.Missing(1, 0, event.TypeInt32), event.String(1, 1, "b"),
			event.Int32(2, 0, 30), event.Missing(2, 1, event.TypeString),
		},
	}
	out, res, err := run(t, src, Options{Flush: FlushPolicy{Mode: FullBuffer}})
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.Equal(t, []int64{3}, out.sizes())

	rec := out.batches[0].Record
	require.True(t, out.batches[0].Final)
	require.Equal(t, "_int", rec.Schema().Field(0).Name)
	require.Equal(t, arrow.PrimitiveTypes.Int32, rec.Schema().Field(0).Type)
	require.Equal(t, "_name", rec.Schema().Field(1).Name)
	require.Equal(t, arrow.BinaryTypes.String, rec.Schema().Field(1).Type)

	ints := rec.Column(0).(*array.Int32)
	require.EqualValues(t, 10, ints.Value(0))
	require.True(t, ints.IsNull(1))
	require.EqualValues(t, 30, ints.Value(2))

	names := rec.Column(1).(*array.String)
	require.Equal(t, "a", names.Value(0))
	require.Equal(t, "b", names.Value(1))
	require.True(t, names.IsNull(2))
}

func TestSessionZeroRows(t *testing.T) {
	t.Parallel()

	out, res, err := run(t, intSource(0, 0), Options{})
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.Equal(t, []int64{0}, out.sizes())
	require.True(t, out.batches[0].Final)
	require.EqualValues(t, 1, out.batches[0].Record.NumCols())
}

func TestSessionUnknownRowCount(t *testing.T) {
	t.Parallel()

	out, res, err := run(t, intSource(5, -1), Options{Flush: FlushPolicy{ChunkRows: 2}})
	require.NoError(t, err)
	require.Equal(t, []int64{2, 2, 1}, out.sizes())
	require.True(t, out.batches[2].Final)
	require.False(t, out.batches[1].Final)
	require.EqualValues(t, 5, res.Rows)
}

// TestSessionUnknownRowCountExactChunk verifies that no empty trailing batch
// is emitted when the stream ends on a chunk boundary.
func TestSessionUnknownRowCountExactChunk(t *testing.T) {
	t.Parallel()

	out, res, err := run(t, intSource(4, -1), Options{Flush: FlushPolicy{ChunkRows: 2}})
	require.NoError(t, err)
	require.Equal(t, []int64{2, 2}, out.sizes())
	require.Equal(t, Done, res.State)
}

func TestSessionEarlyEnd(t *testing.T) {
	t.Parallel()

	out, res, err := run(t, intSource(2, 3), Options{})
	require.ErrorIs(t, err, errkind.ErrContract)
	require.Equal(t, Failed, res.State)
	require.Empty(t, out.batches)
}

func TestSessionOutOfOrderValue(t *testing.T) {
	t.Parallel()

	src := threeRows()
	src.Values[0], src.Values[1] = src.Values[1], src.Values[0]
	_, res, err := run(t, src, Options{})
	require.ErrorIs(t, err, errkind.ErrContract)
	require.Equal(t, Failed, res.State)
}

// TestSessionTypeMismatchAborts checks that an undeclared value type stops
// the parse and that only batches flushed before the failure reach the sink.
func TestSessionTypeMismatchAborts(t *testing.T) {
	t.Parallel()

	src := threeRows()
	src.Values[2] = event.Int32(1, 0, 5)
	out, res, err := run(t, src, Options{Flush: FlushPolicy{ChunkRows: 1}})
	require.ErrorIs(t, err, errkind.ErrContract)
	require.Equal(t, Failed, res.State)
	require.Equal(t, []int64{1}, out.sizes())
	require.False(t, out.batches[0].Final)
}

func TestSessionSchemaConflict(t *testing.T) {
	t.Parallel()

	src := threeRows()
	src.Variables = append([]event.Variable{src.Variables[0]},
		event.Variable{Index: 0, Type: event.TypeDouble, Name: "name"}, src.Variables[1])
	_, _, err := run(t, src, Options{})
	require.ErrorIs(t, err, errkind.ErrSchemaConflict)
}

func TestSessionIdenticalRedeclarationIsNoop(t *testing.T) {
	t.Parallel()

	src := threeRows()
	src.Variables = append([]event.Variable{src.Variables[0]}, src.Variables...)
	_, res, err := run(t, src, Options{})
	require.NoError(t, err)
	require.Len(t, res.Fields, 2)
}

func TestSessionSecondMetadataFails(t *testing.T) {
	t.Parallel()

	src := event.SourceFunc(func(ctx context.Context, h event.Handler) error {
		h.OnMetadata(event.Metadata{RowCount: 1, VarCount: 1})
		if h.OnMetadata(event.Metadata{RowCount: 1, VarCount: 1}) == event.StatusAbort {
			return errkind.ErrAborted
		}
		return nil
	})
	_, _, err := run(t, src, Options{})
	require.ErrorIs(t, err, errkind.ErrContract)
}

func TestSessionSinkFailFast(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	out := newRecordSink()
	out.failAt = 1
	defer out.release()

	res, err := New(out, Options{Flush: FlushPolicy{ChunkRows: 10}, Allocator: mem, Logger: quiet()}).
		Run(context.Background(), intSource(35, 35))
	require.ErrorIs(t, err, errkind.ErrSinkWrite)
	var se *errkind.SinkError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 1, se.Seq)
	require.EqualValues(t, 10, se.Rows)
	require.Equal(t, Failed, res.State)
	require.Len(t, out.batches, 2)
}

func TestSessionSinkBestEffort(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	out := newRecordSink()
	out.failAt = 1
	defer out.release()

	opts := Options{Flush: FlushPolicy{ChunkRows: 10}, SinkPolicy: sink.BestEffort, Allocator: mem, Logger: quiet()}
	res, err := New(out, opts).Run(context.Background(), intSource(35, 35))
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.Len(t, out.batches, 4)
	require.Len(t, res.SinkErrors, 1)
	require.ErrorIs(t, res.SinkErrors[0], errkind.ErrSinkWrite)
}

func TestSessionMetadataOnly(t *testing.T) {
	t.Parallel()

	out, res, err := run(t, threeRows(), Options{MetadataOnly: true})
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.Empty(t, out.batches)
	require.Len(t, res.Fields, 2)
	require.EqualValues(t, 3, res.Metadata.RowCount)
	require.Equal(t, "people", res.Metadata.TableName)
	require.NotZero(t, res.Fingerprint)
}

func TestSessionEncodingPolicies(t *testing.T) {
	t.Parallel()

	bad := func() *event.Replay {
		src := threeRows()
		src.Values[2] = event.String(1, 0, "b\xffo")
		return src
	}

	out, _, err := run(t, bad(), Options{Encoding: textenc.Replace})
	require.NoError(t, err)
	require.Equal(t, "b�o", out.batches[0].Record.Column(0).(*array.String).Value(1))

	out, _, err = run(t, bad(), Options{Encoding: textenc.Skip})
	require.NoError(t, err)
	require.True(t, out.batches[0].Record.Column(0).IsNull(1))

	out, _, err = run(t, bad(), Options{Encoding: textenc.Abort})
	require.ErrorIs(t, err, errkind.ErrEncoding)
	require.Empty(t, out.batches)
}

// TestSessionCancelAtRowBoundary cancels the context from inside the sink;
// the session notices at the end of the next row.
func TestSessionCancelAtRowBoundary(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := newRecordSink()
	out.cancel = cancel
	defer out.release()

	res, err := New(out, Options{Flush: FlushPolicy{ChunkRows: 1}, Allocator: mem, Logger: quiet()}).
		Run(ctx, intSource(5, 5))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, Failed, res.State)
	require.Len(t, out.batches, 1)
}

func TestSessionNilSinkDiscards(t *testing.T) {
	t.Parallel()

	res, err := New(nil, Options{Logger: quiet()}).Run(context.Background(), threeRows())
	require.NoError(t, err)
	require.Equal(t, 1, res.Batches)
}
