// Package batch defines the unit handed from the assembler to sinks.
package batch

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Batch is one immutable, fully materialized chunk of rows. The assembler
// owns the record and releases it after every sink has returned; a sink
// that needs the data afterwards must call Record.Retain.
type Batch struct {
	Seq      int   // 0-based position in the run
	FirstRow int64 // row index of the first row in the batch
	Final    bool  // no batch follows this one
	Record   arrow.RecordBatch
}

// NumRows returns the number of rows in the batch.
func (b *Batch) NumRows() int64 {
	if b.Record == nil {
		return 0
	}
	return b.Record.NumRows()
}

// Schema returns the record's schema.
func (b *Batch) Schema() *arrow.Schema { return b.Record.Schema() }

// Release drops the batch's reference to its record.
func (b *Batch) Release() {
	if b.Record != nil {
		b.Record.Release()
		b.Record = nil
	}
}
