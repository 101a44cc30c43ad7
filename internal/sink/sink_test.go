package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"statbatch/internal/batch"
	"statbatch/internal/errkind"
)

// fakeSink records writes and optionally fails them.
type fakeSink struct {
	mu      sync.Mutex
	writes  []int
	closed  int
	failErr error
}

func (f *fakeSink) Write(_ context.Context, b *batch.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, b.Seq)
	return f.failErr
}

func (f *fakeSink) Close() error {
	f.closed++
	return nil
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := &fakeSink{}, &fakeSink{failErr: errors.New("boom")}
	m := NewMulti(Named{Name: "a", Sink: a}, Named{Name: "b", Sink: b})

	err := m.Write(context.Background(), &batch.Batch{Seq: 4})
	if len(a.writes) != 1 || len(b.writes) != 1 {
		t.Fatalf("writes = %v/%v, want one each", a.writes, b.writes)
	}
	var se *errkind.SinkError
	if !errors.As(err, &se) || se.Sink != "b" || se.Seq != 4 {
		t.Fatalf("Write() error = %v, want SinkError for b at seq 4", err)
	}
	if !errors.Is(err, errkind.ErrSinkWrite) {
		t.Fatalf("Write() error does not match ErrSinkWrite")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Fatalf("closed = %d/%d, want 1/1", a.closed, b.closed)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), Config{Kind: "discard"})
	if err != nil {
		t.Fatalf("New(discard) error = %v", err)
	}
	if err := s.Write(context.Background(), &batch.Batch{}); err != nil {
		t.Fatalf("Discard.Write() error = %v", err)
	}
	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("New(nope) error = nil, want error")
	}
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	got := ExpandPath("out/{stem}.parquet", "/data/all_types.sas7bdat")
	if got != "out/all_types.parquet" {
		t.Fatalf("ExpandPath() = %q", got)
	}
	if got := ExpandPath("fixed.csv", "x.dta"); got != "fixed.csv" {
		t.Fatalf("ExpandPath() = %q, want fixed.csv", got)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Policy{"": FailFast, "fail_fast": FailFast, "best-effort": BestEffort} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Fatalf("ParsePolicy(retry) error = nil, want error")
	}
}
