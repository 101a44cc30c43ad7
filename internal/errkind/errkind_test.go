package errkind

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestSinkErrorMatchesBothKinds verifies that a SinkError is classified as a
// sink failure and still exposes its cause.
func TestSinkErrorMatchesBothKinds(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := fmt.Errorf("write: %w", &SinkError{Sink: "csv", Seq: 2, Rows: 10, Err: cause})

	if !errors.Is(err, ErrSinkWrite) {
		t.Fatalf("errors.Is(err, ErrSinkWrite) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
	var se *SinkError
	if !errors.As(err, &se) || se.Seq != 2 {
		t.Fatalf("errors.As SinkError = %+v, want Seq=2", se)
	}
	if !strings.Contains(err.Error(), "batch 2 (10 rows)") {
		t.Fatalf("Error() = %q, want batch detail", err.Error())
	}
}

func TestKindAndFatal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		wantKind  error
		wantFatal bool
	}{
		{"contract", Contractf("row %d", 3), ErrContract, true},
		{"encoding", Encodingf("bad bytes"), ErrEncoding, true},
		{"conflict", Conflictf("field %q", "x"), ErrSchemaConflict, true},
		{"absent", fmt.Errorf("table_name: %w", ErrMetadataAbsent), ErrMetadataAbsent, false},
		{"canceled", context.Canceled, nil, true},
		{"nil", nil, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Kind(tc.err); got != tc.wantKind {
				t.Fatalf("Kind() = %v, want %v", got, tc.wantKind)
			}
			if got := Fatal(tc.err); got != tc.wantFatal {
				t.Fatalf("Fatal() = %v, want %v", got, tc.wantFatal)
			}
		})
	}
}
