// Package db loads batches into a relational table through internal/storage.
//
// Options:
//
//	driver       string  postgres | sqlite | mysql | mssql
//	dsn          string  backend connection string
//	table        string  destination table (default: lower-cased table
//	                     name from the file metadata, else the input stem)
//	create_table bool    create the table from the schema if absent
//	batch_size   int     rows per CopyFrom call (default 5000)
//
// The connection is opened on the first batch.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"statbatch/internal/batch"
	"statbatch/internal/ddl"
	"statbatch/internal/schema"
	"statbatch/internal/sink"
	"statbatch/internal/storage"
)

const (
	Kind             = "db"
	DefaultBatchSize = 5000
)

func init() {
	sink.Register(Kind, func(_ context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(cfg, cfg.Logger)
	})
}

// Sink writes every batch to one table.
type Sink struct {
	driver    string
	dsn       string
	table     string
	create    bool
	batchSize int
	logger    *slog.Logger

	repo    storage.Repository
	columns []string
	rows    int64
}

// New validates cfg. A nil logger discards the loader's progress lines.
func New(cfg sink.Config, logger *slog.Logger) (*Sink, error) {
	o := cfg.Options
	s := &Sink{
		driver:    o.String("driver", ""),
		dsn:       o.String("dsn", ""),
		table:     o.String("table", ""),
		create:    o.Bool("create_table", false),
		batchSize: o.Int("batch_size", DefaultBatchSize),
		logger:    logger,
	}
	if s.driver == "" {
		return nil, fmt.Errorf("db sink: driver is required")
	}
	if strings.TrimSpace(s.dsn) == "" {
		return nil, fmt.Errorf("db sink: dsn is required")
	}
	if s.batchSize <= 0 {
		return nil, fmt.Errorf("db sink: batch_size must be positive")
	}
	if s.table == "" {
		s.table = DefaultTable(cfg.Metadata.TableName, cfg.Input)
	}
	if s.table == "" {
		return nil, fmt.Errorf("db sink: cannot derive a table name; set options.table")
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("sink", Kind, "driver", s.driver, "table", s.table)
	return s, nil
}

// DefaultTable returns the lower-cased trimmed metadata table name, or the
// input file's base name without extension.
func DefaultTable(tableName, input string) string {
	if t := strings.ToLower(strings.TrimSpace(tableName)); t != "" {
		return t
	}
	if input == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
}

// Table returns the destination table name.
func (s *Sink) Table() string { return s.table }

// Rows returns the number of rows the backend accepted so far.
func (s *Sink) Rows() int64 { return s.rows }

func (s *Sink) open(ctx context.Context, sc *arrow.Schema) error {
	fields, err := schema.FieldsOf(sc)
	if err != nil {
		return fmt.Errorf("db sink: %w", err)
	}
	if len(fields) == 0 {
		return nil
	}
	s.columns = ddl.ColumnNames(fields)
	repo, err := storage.New(ctx, storage.Config{Kind: s.driver, DSN: s.dsn, Table: s.table, Columns: s.columns})
	if err != nil {
		return fmt.Errorf("db sink: %w", err)
	}
	if s.create {
		if err := storage.EnsureTable(ctx, s.driver, repo, s.table, fields); err != nil {
			repo.Close()
			return fmt.Errorf("db sink: ensure table %s: %w", s.table, err)
		}
	}
	s.repo = repo
	return nil
}

// Write implements sink.Sink. A batch with no columns is accepted and
// ignored.
func (s *Sink) Write(ctx context.Context, b *batch.Batch) error {
	if s.repo == nil {
		if err := s.open(ctx, b.Schema()); err != nil {
			return err
		}
		if s.repo == nil {
			return nil
		}
	}
	if b.NumRows() == 0 {
		return nil
	}

	get, err := getters(b.Record)
	if err != nil {
		return fmt.Errorf("db sink: batch %d: %w", b.Seq, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	rows := make(chan []any, s.batchSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(rows)
		eachRow(int(b.NumRows()), get, func(row []any) bool {
			select {
			case rows <- row:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	n, err := storage.LoadBatches(ctx, s.logger.With("batch", b.Seq), s.columns, rows, s.batchSize, s.repo.CopyFrom)
	cancel()
	<-done
	s.rows += n
	if err != nil {
		return fmt.Errorf("db sink: batch %d: %w", b.Seq, err)
	}
	return nil
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	if s.repo != nil {
		s.repo.Close()
		s.repo = nil
	}
	return nil
}

// EachRow calls fn with each row of rec as driver values: string, int16,
// int32, float32, float64, or nil for nulls. Iteration stops when fn
// returns false. Each row is a fresh slice.
func EachRow(rec arrow.RecordBatch, fn func([]any) bool) error {
	get, err := getters(rec)
	if err != nil {
		return err
	}
	eachRow(int(rec.NumRows()), get, fn)
	return nil
}

func getters(rec arrow.RecordBatch) ([]func(int) any, error) {
	cols := make([]func(int) any, rec.NumCols())
	for j, col := range rec.Columns() {
		get, err := getter(col)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", rec.ColumnName(j), err)
		}
		cols[j] = get
	}
	return cols, nil
}

func eachRow(n int, cols []func(int) any, fn func([]any) bool) {
	for i := 0; i < n; i++ {
		row := make([]any, len(cols))
		for j, get := range cols {
			row[j] = get(i)
		}
		if !fn(row) {
			return
		}
	}
}

func getter(col arrow.Array) (func(int) any, error) {
	valid := func(i int) bool { return col.IsValid(i) }
	switch a := col.(type) {
	case *array.String:
		return func(i int) any {
			if !valid(i) {
				return nil
			}
			return a.Value(i)
		}, nil
	case *array.Int16:
		return func(i int) any {
			if !valid(i) {
				return nil
			}
			return a.Value(i)
		}, nil
	case *array.Int32:
		return func(i int) any {
			if !valid(i) {
				return nil
			}
			return a.Value(i)
		}, nil
	case *array.Float32:
		return func(i int) any {
			if !valid(i) {
				return nil
			}
			return a.Value(i)
		}, nil
	case *array.Float64:
		return func(i int) any {
			if !valid(i) {
				return nil
			}
			return a.Value(i)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported array type %s", col.DataType())
	}
}
