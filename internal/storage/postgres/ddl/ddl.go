// Package ddl renders Postgres DDL for the generic ddl.TableDef model.
package ddl

import (
	"context"
	"fmt"
	"strings"

	"statbatch/internal/ddl"
	"statbatch/internal/schema"
	"statbatch/internal/storage"
)

// MapType maps a storage type to a Postgres column type.
//
//	utf8    -> TEXT
//	int16   -> SMALLINT
//	int32   -> INTEGER
//	float32 -> REAL
//	float64 -> DOUBLE PRECISION
func MapType(t schema.Type) string {
	switch t {
	case schema.Int16:
		return "SMALLINT"
	case schema.Int32:
		return "INTEGER"
	case schema.Float32:
		return "REAL"
	case schema.Float64:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL returns a CREATE TABLE IF NOT EXISTS statement with
// double-quoted identifiers.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	cols, err := ddl.ColumnClauses(t, quoteIdent)
	if err != nil {
		return "", fmt.Errorf("postgres %w", err)
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		ddl.QuoteFQN(t.FQN, quoteIdent),
		strings.Join(cols, ",\n  "),
	), nil
}

// EnsureTable creates the table if it does not exist.
func EnsureTable(ctx context.Context, repo storage.Repository, def ddl.TableDef) error {
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}

// quoteIdent quotes one identifier segment, doubling embedded quotes:
//
//	quoteIdent(`weird"name`) => `"weird""name"`
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
