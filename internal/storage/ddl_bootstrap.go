package storage

import (
	"context"
	"fmt"
	"sync"

	"statbatch/internal/schema"
)

// DDLBootstrapper creates table (if absent) with one column per field, using
// the backend's type map and dialect.
type DDLBootstrapper func(ctx context.Context, repo Repository, table string, fields []schema.Field) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable invokes the DDLBootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string, fields []schema.Field) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("storage: no DDL bootstrapper registered for kind %q", kind)
	}
	return fn(ctx, repo, table, fields)
}
