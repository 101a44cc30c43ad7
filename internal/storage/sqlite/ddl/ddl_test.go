package ddl

import (
	"context"
	"strings"
	"testing"

	"statbatch/internal/ddl"
	"statbatch/internal/schema"
	"statbatch/internal/storage"
)

func TestMapType(t *testing.T) {
	t.Parallel()

	cases := map[schema.Type]string{
		schema.Utf8:    "TEXT",
		schema.Int16:   "INTEGER",
		schema.Int32:   "INTEGER",
		schema.Float32: "REAL",
		schema.Float64: "REAL",
	}
	for in, want := range cases {
		if got := MapType(in); got != want {
			t.Fatalf("MapType(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(ddl.TableDef{FQN: "main.people", Columns: []ddl.ColumnDef{
		{Name: "id", SQLType: "INTEGER", PrimaryKey: true},
		{Name: "name", SQLType: "TEXT", Nullable: true},
	}})
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"main\".\"people\" (\n" +
		"  \"id\" INTEGER NOT NULL,\n" +
		"  \"name\" TEXT,\n" +
		"  PRIMARY KEY (\"id\")\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

type fakeRepository struct {
	storage.Repository
	execCalls int
	lastSQL   string
}

func (f *fakeRepository) Exec(_ context.Context, sql string) error {
	f.execCalls++
	f.lastSQL = sql
	return nil
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	var repo fakeRepository
	def := ddl.TableDef{FQN: "events", Columns: []ddl.ColumnDef{{Name: "id", SQLType: "INTEGER"}}}
	if err := EnsureTable(context.Background(), &repo, def); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if repo.execCalls != 1 || !strings.HasPrefix(repo.lastSQL, "CREATE TABLE IF NOT EXISTS") {
		t.Fatalf("execCalls=%d sql=%q", repo.execCalls, repo.lastSQL)
	}

	repo = fakeRepository{}
	if err := EnsureTable(context.Background(), &repo, ddl.TableDef{}); err == nil {
		t.Fatalf("expected build error")
	}
	if repo.execCalls != 0 {
		t.Fatalf("Exec called on build error")
	}
}
