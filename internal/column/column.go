// Package column implements the per-variable accumulators that buffer one
// batch worth of values before they are frozen into arrow arrays.
//
// An Accumulator is a tagged union over the closed set of storage types
// (utf8, int16, int32, float32, float64). The variant is selected once from
// the schema field and every append is checked against the variable's
// declared type; a mismatch is a contract violation, never a coercion.
package column

import (
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"statbatch/internal/errkind"
	"statbatch/internal/event"
	"statbatch/internal/schema"
)

// Digits is the number of significant decimal digits floats keep.
const Digits = 14

// Capacity returns the initial buffer size for a column: the chunk size,
// bounded by the declared row count when it is known.
func Capacity(chunkRows int, rowCount int64) int {
	if chunkRows <= 0 {
		chunkRows = 1
	}
	if rowCount >= 0 && rowCount < int64(chunkRows) {
		return int(rowCount)
	}
	return chunkRows
}

// Normalize64 rounds v to Digits significant digits through a decimal
// round trip. Non-finite values are returned unchanged.
func Normalize64(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', Digits, 64), 64)
	if err != nil {
		return v
	}
	return out
}

// Normalize32 is Normalize64 for float32 values.
func Normalize32(v float32) float32 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return v
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', Digits, 32), 32)
	if err != nil {
		return v
	}
	return float32(out)
}

// Accumulator buffers the values of one column for one batch.
type Accumulator struct {
	field schema.Field

	str *array.StringBuilder
	i16 *array.Int16Builder
	i32 *array.Int32Builder
	f32 *array.Float32Builder
	f64 *array.Float64Builder

	finished bool
}

// New allocates an accumulator for f with room for capacity values.
func New(mem memory.Allocator, f schema.Field, capacity int) *Accumulator {
	a := &Accumulator{field: f}
	switch f.Type {
	case schema.Int16:
		a.i16 = array.NewInt16Builder(mem)
		a.i16.Reserve(capacity)
	case schema.Int32:
		a.i32 = array.NewInt32Builder(mem)
		a.i32.Reserve(capacity)
	case schema.Float32:
		a.f32 = array.NewFloat32Builder(mem)
		a.f32.Reserve(capacity)
	case schema.Float64:
		a.f64 = array.NewFloat64Builder(mem)
		a.f64.Reserve(capacity)
	default:
		a.str = array.NewStringBuilder(mem)
		a.str.Reserve(capacity)
	}
	return a
}

// Field returns the schema field the accumulator was built for.
func (a *Accumulator) Field() schema.Field { return a.field }

func (a *Accumulator) builder() array.Builder {
	switch a.field.Type {
	case schema.Int16:
		return a.i16
	case schema.Int32:
		return a.i32
	case schema.Float32:
		return a.f32
	case schema.Float64:
		return a.f64
	default:
		return a.str
	}
}

// Append stores v. Missing values become nulls regardless of type. A
// non-missing value whose type differs from the declaration is rejected.
func (a *Accumulator) Append(v event.Value) error {
	if a.finished {
		return errkind.Contractf("column %q: append after finish", a.field.Name)
	}
	if v.Missing {
		a.builder().AppendNull()
		return nil
	}
	if v.Type != a.field.Declared {
		return errkind.Contractf("row %d column %d (%q): value type %s, declared %s",
			v.Row, v.Var, a.field.Name, v.Type, a.field.Declared)
	}
	switch a.field.Type {
	case schema.Int16:
		a.i16.Append(int16(v.Int))
	case schema.Int32:
		a.i32.Append(int32(v.Int))
	case schema.Float32:
		a.f32.Append(Normalize32(float32(v.Float)))
	case schema.Float64:
		a.f64.Append(Normalize64(v.Float))
	default:
		a.str.Append(v.Str)
	}
	return nil
}

// AppendNull stores a null.
func (a *Accumulator) AppendNull() error {
	if a.finished {
		return errkind.Contractf("column %q: append after finish", a.field.Name)
	}
	a.builder().AppendNull()
	return nil
}

// AppendString stores s in a text column after the caller has already
// validated the value's type and encoding.
func (a *Accumulator) AppendString(s string) error {
	if a.finished {
		return errkind.Contractf("column %q: append after finish", a.field.Name)
	}
	if a.str == nil {
		return errkind.Contractf("column %q: string append to %s column", a.field.Name, a.field.Type)
	}
	a.str.Append(s)
	return nil
}

// Len returns the number of values appended, nulls included.
func (a *Accumulator) Len() int {
	if a.finished {
		return 0
	}
	return a.builder().Len()
}

// Finish freezes the buffered values into an immutable array owned by the
// caller. The accumulator cannot be used afterwards.
func (a *Accumulator) Finish() (arrow.Array, error) {
	if a.finished {
		return nil, errkind.Contractf("column %q: finished twice", a.field.Name)
	}
	b := a.builder()
	arr := b.NewArray()
	b.Release()
	a.finished = true
	return arr, nil
}

// Release frees the buffers of an unfinished accumulator. It is a no-op
// after Finish.
func (a *Accumulator) Release() {
	if a.finished {
		return
	}
	a.builder().Release()
	a.finished = true
}
