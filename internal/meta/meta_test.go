package meta

import (
	"errors"
	"testing"

	"statbatch/internal/errkind"
	"statbatch/internal/event"
)

func TestRegistryCapturesOnce(t *testing.T) {
	t.Parallel()

	var r Registry
	first := event.Metadata{
		RowCount:     3,
		VarCount:     2,
		TableName:    "ALL_TYPES",
		Encoding:     "UTF-8",
		Version:      9,
		Is64Bit:      true,
		CreatedUnix:  1627250522,
		ModifiedUnix: 1627250522,
		Endianness:   event.EndianLittle,
	}
	if err := r.Capture(first); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	err := r.Capture(event.Metadata{RowCount: 99})
	if !errors.Is(err, errkind.ErrContract) {
		t.Fatalf("second Capture() error = %v, want ErrContract", err)
	}

	md := r.Metadata()
	if md.RowCount != 3 || md.TableName != "ALL_TYPES" {
		t.Fatalf("metadata overwritten: %+v", md)
	}
	if got, want := md.CreatedString(), "2021-07-25 22:02:02"; got != want {
		t.Fatalf("CreatedString() = %q, want %q", got, want)
	}
	if md.Compression != event.CompressionNone || md.Endianness != event.EndianLittle {
		t.Fatalf("compression/endianness = %v/%v", md.Compression, md.Endianness)
	}
}

// TestAbsentIsNonFatal verifies that missing optional strings are reported as
// ErrMetadataAbsent, which is never fatal.
func TestAbsentIsNonFatal(t *testing.T) {
	t.Parallel()

	md := FromEvent(event.Metadata{TableName: "T"})
	absent := md.Absent()
	if len(absent) != 2 {
		t.Fatalf("Absent() = %v, want 2 entries", absent)
	}
	for _, err := range absent {
		if !errors.Is(err, errkind.ErrMetadataAbsent) || errkind.Fatal(err) {
			t.Fatalf("absent error %v: want non-fatal ErrMetadataAbsent", err)
		}
	}
	if md.FileLabel != "" {
		t.Fatalf("FileLabel = %q, want empty", md.FileLabel)
	}
}

func TestUnknownRowCount(t *testing.T) {
	t.Parallel()

	if FromEvent(event.Metadata{RowCount: -1}).RowsKnown() {
		t.Fatalf("RowsKnown() = true for negative row count")
	}
	kv := FromEvent(event.Metadata{RowCount: -1}).KeyValues()
	if kv["row_count"] != "-1" || kv["compression"] != "none" {
		t.Fatalf("KeyValues() = %v", kv)
	}
}
