package all

import (
	"testing"

	"statbatch/internal/storage"
)

func TestAllKindsRegistered(t *testing.T) {
	t.Parallel()

	got := map[string]bool{}
	for _, k := range storage.ListKinds() {
		got[k] = true
	}
	for _, want := range []string{"mssql", "mysql", "postgres", "sqlite"} {
		if !got[want] {
			t.Fatalf("kind %q not registered; have %v", want, storage.ListKinds())
		}
	}
}
