// Package errkind defines the error taxonomy shared by sources, the row
// assembler, and sinks.
//
// Every error produced while assembling a file wraps exactly one of the
// sentinels below, so callers classify failures with errors.Is:
//
//	if errors.Is(err, errkind.ErrSchemaConflict) { ... }
//
// Sink failures carry the batch they belong to (SinkError) and match both
// ErrSinkWrite and the underlying cause.
package errkind

import (
	"errors"
	"fmt"
)

var (
	// ErrContract reports an event stream that broke the source contract:
	// out-of-order indices, a value whose type differs from the declaration,
	// a second metadata event, or a stream that ends early.
	ErrContract = errors.New("source contract violation")

	// ErrEncoding reports a string value that is not valid text under the
	// configured decoder.
	ErrEncoding = errors.New("encoding error")

	// ErrSchemaConflict reports an incompatible redeclaration of a field.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrSinkWrite reports that a sink failed to persist a batch.
	ErrSinkWrite = errors.New("sink write error")

	// ErrMetadataAbsent marks optional metadata that the source did not
	// provide. It is never fatal.
	ErrMetadataAbsent = errors.New("metadata absent")

	// ErrAborted is returned by sources that stopped because a handler
	// returned an abort status.
	ErrAborted = errors.New("parse aborted by handler")
)

// Contractf returns an error wrapping ErrContract.
func Contractf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContract, fmt.Sprintf(format, args...))
}

// Encodingf returns an error wrapping ErrEncoding.
func Encodingf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEncoding, fmt.Sprintf(format, args...))
}

// Conflictf returns an error wrapping ErrSchemaConflict.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaConflict, fmt.Sprintf(format, args...))
}

// SinkError is a batch-scoped sink failure. It is kept distinct from parse
// errors so a run can report which batches were not persisted.
type SinkError struct {
	Sink string // sink kind or name, e.g. "csv"
	Seq  int    // batch sequence number, 0-based; -1 for close failures
	Rows int64  // rows in the batch
	Err  error
}

func (e *SinkError) Error() string {
	if e.Seq < 0 {
		return fmt.Sprintf("%s: sink %s: close: %v", ErrSinkWrite, e.Sink, e.Err)
	}
	return fmt.Sprintf("%s: sink %s: batch %d (%d rows): %v", ErrSinkWrite, e.Sink, e.Seq, e.Rows, e.Err)
}

// Unwrap lets errors.Is match both ErrSinkWrite and the cause.
func (e *SinkError) Unwrap() []error { return []error{ErrSinkWrite, e.Err} }

// Fatal reports whether err must stop a parse. Absent metadata never does.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrMetadataAbsent)
}

// Kind returns the taxonomy sentinel err wraps, or nil when err is outside
// the taxonomy (I/O errors, context cancellation).
func Kind(err error) error {
	for _, k := range []error{ErrContract, ErrEncoding, ErrSchemaConflict, ErrSinkWrite, ErrMetadataAbsent, ErrAborted} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
