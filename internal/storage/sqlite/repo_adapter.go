package sqlite

import (
	"context"
	"fmt"

	"statbatch/internal/ddl"
	"statbatch/internal/schema"
	"statbatch/internal/storage"
	sqliteddl "statbatch/internal/storage/sqlite/ddl"
)

// Kind is the storage kind this package registers.
const Kind = "sqlite"

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL(Kind, func(ctx context.Context, repo storage.Repository, table string, fields []schema.Field) error {
		td, err := ddl.FromFields(table, fields, sqliteddl.MapType)
		if err != nil {
			return fmt.Errorf("infer table definition: %w", err)
		}
		return sqliteddl.EnsureTable(ctx, repo, td)
	})
}
