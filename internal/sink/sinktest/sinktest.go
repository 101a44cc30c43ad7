// Package sinktest builds small batches for sink tests.
package sinktest

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"statbatch/internal/batch"
	"statbatch/internal/column"
	"statbatch/internal/event"
	"statbatch/internal/schema"
)

// Variables are the columns of Batch: name (string), n (int32), x (double).
var Variables = []event.Variable{
	{Index: 0, Type: event.TypeString, Name: "name", Label: "Full name"},
	{Index: 1, Type: event.TypeInt32, Name: "n"},
	{Index: 2, Type: event.TypeDouble, Name: "x", Format: "DATE9."},
}

// Schema returns the arrow schema of Batch with table_name set.
func Schema(t testing.TB) *arrow.Schema {
	t.Helper()
	_, sc := build(t)
	return sc
}

func build(t testing.TB) (*schema.Builder, *arrow.Schema) {
	t.Helper()
	var b schema.Builder
	for _, v := range Variables {
		if _, err := b.Add(v); err != nil {
			t.Fatalf("schema.Add: %v", err)
		}
	}
	b.SetMetadata(map[string]string{"table_name": "People"})
	return &b, b.Arrow()
}

// Batch returns a three-row batch with sequence number seq:
//
//	name  n     x
//	ann   1     1.5
//	bo    null  2
//	null  3     null
func Batch(t testing.TB, mem memory.Allocator, seq int) *batch.Batch {
	t.Helper()
	sb, sc := build(t)
	rows := [][]event.Value{
		{event.String(0, 0, "ann"), event.Int32(0, 1, 1), event.Double(0, 2, 1.5)},
		{event.String(1, 0, "bo"), event.Missing(1, 1, event.TypeInt32), event.Double(1, 2, 2)},
		{event.Missing(2, 0, event.TypeString), event.Int32(2, 1, 3), event.Missing(2, 2, event.TypeDouble)},
	}
	accs := make([]*column.Accumulator, sb.Len())
	for i := range accs {
		accs[i] = column.New(mem, sb.Field(i), len(rows))
	}
	for _, row := range rows {
		for j, v := range row {
			if err := accs[j].Append(v); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
	}
	cols := make([]arrow.Array, len(accs))
	for i, a := range accs {
		arr, err := a.Finish()
		if err != nil {
			t.Fatalf("Finish: %v", err)
		}
		cols[i] = arr
	}
	rec := array.NewRecordBatch(sc, cols, int64(len(rows)))
	for _, c := range cols {
		c.Release()
	}
	return &batch.Batch{Seq: seq, FirstRow: int64(seq * len(rows)), Record: rec}
}
