package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"statbatch/internal/config"
	"statbatch/internal/sink"
	"statbatch/internal/sink/sinktest"
)

func write(t *testing.T, opts config.Options, n int) string {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	path := filepath.Join(t.TempDir(), "people.arrow")
	s, err := New(sink.Config{Kind: Kind, Path: path, Options: opts})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		b := sinktest.Batch(t, mem, i)
		require.NoError(t, s.Write(context.Background(), b))
		b.Release()
	}
	require.NoError(t, s.Close())
	return path
}

func TestFileFormat(t *testing.T) {
	t.Parallel()

	for _, c := range []string{"none", "lz4", "zstd"} {
		t.Run(c, func(t *testing.T) {
			t.Parallel()

			path := write(t, config.Options{"compression": c}, 2)
			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()

			r, err := ipc.NewFileReader(f)
			require.NoError(t, err)
			defer r.Close()

			require.Equal(t, 2, r.NumRecords())
			require.True(t, r.Schema().Equal(sinktest.Schema(t)))
			rec, err := r.RecordBatch(1)
			require.NoError(t, err)
			require.EqualValues(t, 3, rec.NumRows())
			names := rec.Column(0).(*array.String)
			require.Equal(t, "bo", names.Value(1))
			require.True(t, names.IsNull(2))
		})
	}
}

func TestStreamFormat(t *testing.T) {
	t.Parallel()

	path := write(t, config.Options{"stream": true}, 3)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := ipc.NewReader(f)
	require.NoError(t, err)
	defer r.Release()

	var rows int64
	for r.Next() {
		rows += r.RecordBatch().NumRows()
	}
	require.NoError(t, r.Err())
	require.EqualValues(t, 9, rows)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := New(sink.Config{Kind: Kind})
	require.Error(t, err)
	_, err = New(sink.Config{Kind: Kind, Path: "x.arrow", Options: config.Options{"compression": "brotli"}})
	require.Error(t, err)
}
