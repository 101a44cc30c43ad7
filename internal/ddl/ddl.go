// Package ddl defines a small, backend-agnostic model for SQL DDL and derives
// it from an assembled schema.
//
// The package does not assume a SQL dialect. Backend packages (for example
// internal/storage/postgres/ddl) supply the type mapping and identifier
// quoting and render the final statement around ColumnClauses.
package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"statbatch/internal/schema"
)

// ColumnDef describes a single column.
//
// Name is unquoted; quoting happens at render time. Default is a raw SQL
// expression.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds a dotted table name ("schema.table") and its ordered
// columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps a storage type to a dialect's column type.
type TypeMapper func(schema.Type) string

// ColumnNames returns one destination column name per field. Source names
// are not unique, so a repeated name gets the field index appended
// ("x", "x_3"). Empty names become "col_<index>".
func ColumnNames(fields []schema.Field) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = "col_" + strconv.Itoa(f.Index)
		}
		key := strings.ToLower(name)
		if seen[key] {
			name = name + "_" + strconv.Itoa(f.Index)
			key = strings.ToLower(name)
		}
		seen[key] = true
		out[i] = name
	}
	return out
}

// FromFields builds a table definition with one nullable column per field.
// Every column is nullable because any cell may be missing.
func FromFields(table string, fields []schema.Field, mapType TypeMapper) (TableDef, error) {
	if strings.TrimSpace(table) == "" {
		return TableDef{}, fmt.Errorf("ddl: table name must not be empty")
	}
	if len(fields) == 0 {
		return TableDef{}, fmt.Errorf("ddl: table %s has no columns", table)
	}
	names := ColumnNames(fields)
	td := TableDef{FQN: table, Columns: make([]ColumnDef, len(fields))}
	for i, f := range fields {
		td.Columns[i] = ColumnDef{Name: names[i], SQLType: mapType(f.Type), Nullable: true}
	}
	return td, nil
}

// ColumnClauses renders the body of a CREATE TABLE statement: one
// `<name> <type> [NOT NULL] [DEFAULT <expr>]` entry per column and a trailing
// PRIMARY KEY clause when any column is part of the key. Primary-key columns
// are always NOT NULL.
func ColumnClauses(t TableDef, quote func(string) string) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return cols, nil
}

// QuoteFQN quotes each dot-separated segment of name with quote, skipping
// empty segments.
func QuoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}
