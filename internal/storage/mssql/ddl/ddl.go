// Package ddl renders SQL Server DDL for the generic ddl.TableDef model.
//
// T-SQL has no CREATE TABLE IF NOT EXISTS, so the statement is wrapped in an
// IF OBJECT_ID(...) IS NULL guard.
package ddl

import (
	"context"
	"fmt"
	"strings"

	"statbatch/internal/ddl"
	"statbatch/internal/schema"
	"statbatch/internal/storage"
)

// MapType maps a storage type to a SQL Server column type.
func MapType(t schema.Type) string {
	switch t {
	case schema.Int16:
		return "SMALLINT"
	case schema.Int32:
		return "INT"
	case schema.Float32:
		return "REAL"
	case schema.Float64:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}

// BuildCreateTableSQL returns a guarded CREATE TABLE script:
//
//	IF OBJECT_ID(N'[dbo].[people]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [dbo].[people] (
//	    [col1] TYPE,
//	    ...
//	  );
//	END;
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	cols, err := ddl.ColumnClauses(t, quoteIdent)
	if err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}
	fqn := ddl.QuoteFQN(t.FQN, quoteIdent)
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
		strings.ReplaceAll(fqn, "'", "''"),
		fqn,
		strings.Join(cols, ",\n    "),
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

// quoteIdent brackets an identifier: weird]id becomes [weird]]id].
func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
