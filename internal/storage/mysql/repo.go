// Package mysql implements a MySQL repository on database/sql and
// go-sql-driver/mysql. CopyFrom issues multi-row INSERT statements inside a
// transaction, split so no statement exceeds the server's placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"statbatch/internal/ddl"
)

// maxPlaceholders is MySQL's limit on bound parameters per statement.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN     string // go-sql-driver DSN, e.g. "user:pw@tcp(db:3306)/stats"
	Table   string
	Columns []string
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository validates the DSN, opens a pool and pings it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom inserts rows with as few multi-row INSERTs as the placeholder
// limit allows, all in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	per := maxPlaceholders / len(columns)
	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		stmt, args, err := insertSQL(r.cfg.Table, columns, rows[start:end])
		if err != nil {
			rollback()
			return 0, err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			rollback()
			return 0, fmt.Errorf("insert rows %d..%d: %w", start, end-1, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			rollback()
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// insertSQL renders one INSERT ... VALUES (?,..),(?,..) statement and its
// flattened arguments.
func insertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", myFQN(table), strings.Join(mapIdent(columns), ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(group)
		args = append(args, row...)
	}
	return sb.String(), args, nil
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a possibly schema-qualified name: "stats.people" becomes
// "`stats`.`people`".
func myFQN(name string) string { return ddl.QuoteFQN(name, myIdent) }

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
