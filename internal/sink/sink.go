// Package sink defines the outbound contract of the assembler and a small
// registry of concrete writers.
//
// A Sink receives finished batches in order and is responsible for any
// on-disk representation. Backends register a Factory for their kind from
// init; importing statbatch/internal/sink/all enables every built-in kind.
package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"statbatch/internal/batch"
	"statbatch/internal/config"
	"statbatch/internal/meta"
)

// Sink persists batches. Write is called once per batch, in sequence order,
// and never concurrently; Close is called exactly once after the last Write.
type Sink interface {
	Write(ctx context.Context, b *batch.Batch) error
	Close() error
}

// Policy decides whether a failed write stops the parse.
type Policy uint8

const (
	// FailFast aborts the parse on the first sink failure.
	FailFast Policy = iota
	// BestEffort records the failure and keeps parsing.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "fail_fast"
}

// ParsePolicy parses "fail_fast" or "best_effort"; empty means FailFast.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "fail-fast":
		return FailFast, nil
	case "best_effort", "best-effort":
		return BestEffort, nil
	default:
		return FailFast, fmt.Errorf("sink: unknown policy %q", s)
	}
}

// Config is what a Factory receives.
type Config struct {
	Kind    string
	Path    string
	Options config.Options

	// Input names the file being converted (a path or URL); Metadata is its
	// captured metadata. Both are informational.
	Input    string
	Metadata meta.FileMetadata

	// Logger, when set, receives sink-level progress lines.
	Logger *slog.Logger
}

// Factory constructs a Sink.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs the sink registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sink: no backend registered for kind %q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ExpandPath replaces "{stem}" in pattern with input's base name without
// its extension.
func ExpandPath(pattern, input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return strings.ReplaceAll(pattern, "{stem}", stem)
}

// CreateFile opens path for writing, creating parent directories. The path
// "-" is standard output, which Close leaves open.
func CreateFile(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	if path == "" {
		return nil, fmt.Errorf("sink: empty output path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Discard drops every batch.
type Discard struct{}

func (Discard) Write(context.Context, *batch.Batch) error { return nil }
func (Discard) Close() error                              { return nil }

func init() {
	Register("discard", func(context.Context, Config) (Sink, error) { return Discard{}, nil })
}
