// Package ddl renders MySQL DDL for the generic ddl.TableDef model.
package ddl

import (
	"context"
	"fmt"
	"strings"

	"statbatch/internal/ddl"
	"statbatch/internal/schema"
	"statbatch/internal/storage"
)

// MapType maps a storage type to a MySQL column type. Strings use LONGTEXT
// since source widths are not carried in the schema.
func MapType(t schema.Type) string {
	switch t {
	case schema.Int16:
		return "SMALLINT"
	case schema.Int32:
		return "INT"
	case schema.Float32:
		return "FLOAT"
	case schema.Float64:
		return "DOUBLE"
	default:
		return "LONGTEXT"
	}
}

// BuildCreateTableSQL returns a CREATE TABLE IF NOT EXISTS statement with
// backtick-quoted identifiers and a utf8mb4 default charset.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	cols, err := ddl.ColumnClauses(t, quoteIdent)
	if err != nil {
		return "", fmt.Errorf("mysql %w", err)
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n) DEFAULT CHARSET=utf8mb4;",
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

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
