package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"statbatch/internal/convert"
)

const sampleLog = `{"kind":"metadata","row_count":2,"var_count":2,"table_name":"T"}
{"kind":"variable","index":0,"type":"string","name":"s"}
{"kind":"variable","index":1,"type":"int16","name":"n"}
{"kind":"value","row":0,"var":0,"value":"a"}
{"kind":"value","row":0,"var":1,"value":1}
{"kind":"value","row":1,"var":0,"value":"b"}
{"kind":"value","row":1,"var":1,"value":2}
`

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(sampleLog), 0o644))
	return p
}

func TestRunConvertsToOutDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	in := writeInput(t, dir, "t.ndjson")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-out", out, "-format", "csv,ipc", "-log-format", "json", in}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	got, err := os.ReadFile(filepath.Join(out, "t.csv"))
	require.NoError(t, err)
	require.Equal(t, "s,n\na,1\nb,2\n", string(got))
	_, err = os.Stat(filepath.Join(out, "t.arrow"))
	require.NoError(t, err)
	require.Contains(t, stderr.String(), `"run_id"`)
	require.Contains(t, stderr.String(), `"msg":"run complete"`)
}

func TestRunList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeInput(t, dir, "a.ndjson")
	b := writeInput(t, dir, "b.ndjson")
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte("# inputs\n"+a+"\n\n"+filepath.Base(b)+"\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-out", dir, "-list", list, "-parallel", "2"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	for _, name := range []string{"a.csv", "b.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}

func TestRunMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeInput(t, dir, "m.ndjson")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-metadata", "-out", dir, in}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var d convert.Description
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &d))
	require.Len(t, d.Variables, 2)
	require.Equal(t, "int16", d.Variables[1].Type)
	_, err := os.Stat(filepath.Join(dir, "m.csv"))
	require.True(t, os.IsNotExist(err))
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := []struct {
		name string
		args []string
		code int
	}{
		{name: "no inputs", args: []string{"-no-write"}, code: 2},
		{name: "bad flag", args: []string{"-bogus"}, code: 2},
		{name: "unknown format", args: []string{"-format", "xlsx", "x.ndjson"}, code: 1},
		{name: "invalid mode", args: []string{"-mode", "lazy", "x.ndjson"}, code: 1},
		{name: "missing input", args: []string{"-no-write", filepath.Join(dir, "missing.ndjson")}, code: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			require.Equal(t, tc.code, run(context.Background(), tc.args, &stdout, &stderr), stderr.String())
		})
	}
}

func TestRunValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("job: check\nassemble:\n  sink_policy: retry\n"), 0o644))

	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, run(context.Background(), []string{"-config", cfg, "-validate"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "assemble.sink_policy")

	require.NoError(t, os.WriteFile(cfg, []byte("job: check\n"), 0o644))
	stderr.Reset()
	require.Equal(t, 0, run(context.Background(), []string{"-config", cfg, "-validate"}, &stdout, &stderr))
	require.True(t, strings.HasSuffix(strings.TrimSpace(stderr.String()), "configuration is valid"))
}

func TestBuildJobOverrides(t *testing.T) {
	t.Parallel()

	f, _, set, err := parseFlags([]string{"-out", "/data", "-format", "parquet", "-chunk", "50", "-rows", "10", "-metrics", "prompush", "-metrics-url", "http://gw:9091"}, &bytes.Buffer{})
	require.NoError(t, err)
	job, err := buildJob(f, set)
	require.NoError(t, err)
	require.Len(t, job.Sinks, 1)
	require.Equal(t, "parquet", job.Sinks[0].Kind)
	require.Equal(t, filepath.Join("/data", "{stem}.parquet"), job.Sinks[0].Path)
	require.Equal(t, 50, job.Assemble.ChunkRows)
	require.EqualValues(t, 10, job.Source.RowLimit)
	require.Equal(t, "prompush", job.Metrics.Kind)
	require.Equal(t, "http://gw:9091", job.Metrics.URL)
}
