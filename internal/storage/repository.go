// Package storage contains the backend-agnostic contract for relational bulk
// loads, a registry of backends, and a batched loader.
//
// Backends (postgres, sqlite, mysql, mssql) register a Factory and a
// DDLBootstrapper from init. Importing internal/storage/all enables all of
// them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is an open connection to one destination table.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and reports how many
	// rows the backend accepted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config selects a backend and the destination table.
type Config struct {
	Kind    string
	DSN     string
	Table   string
	Columns []string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

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

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository through the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}
