// Package ddl renders SQLite DDL for the generic ddl.TableDef model.
//
// SQLite types are affinities, so the map is coarse: integers become
// INTEGER, floats REAL, text TEXT.
package ddl

import (
	"context"
	"fmt"
	"strings"

	"statbatch/internal/ddl"
	"statbatch/internal/schema"
	"statbatch/internal/storage"
)

// MapType maps a storage type to a SQLite column affinity.
func MapType(t schema.Type) string {
	switch t {
	case schema.Int16, schema.Int32:
		return "INTEGER"
	case schema.Float32, schema.Float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL returns a CREATE TABLE IF NOT EXISTS statement.
// Dotted names such as "main.people" are quoted per segment.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	cols, err := ddl.ColumnClauses(t, quoteIdent)
	if err != nil {
		return "", fmt.Errorf("sqlite %w", err)
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

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
