package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestValidate_EmptyJobWarns(t *testing.T) {
	t.Parallel()

	j := Default()
	j.Job = " "
	issues := Validate(j)
	if !hasIssue(t, issues, SeverityWarning, "job", "job is empty") {
		t.Fatalf("expected warning for job; got issues: %+v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("HasErrors = true for a warning-only job: %+v", issues)
	}
}

func TestValidate_Cases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Job)
		sev    IssueSeverity
		path   string
		substr string
	}{
		{"bad source kind", func(j *Job) { j.Source.Kind = "xpt" }, SeverityError, "source.kind", "not one of"},
		{"negative row limit", func(j *Job) { j.Source.RowLimit = -1 }, SeverityError, "source.row_limit", "negative"},
		{"bad mode", func(j *Job) { j.Assemble.Mode = "lazy" }, SeverityError, "assemble.mode", "not one of"},
		{"bad encoding policy", func(j *Job) { j.Assemble.EncodingPolicy = "drop" }, SeverityError, "assemble.encoding_policy", "not one of"},
		{"bad sink policy", func(j *Job) { j.Assemble.SinkPolicy = "retry" }, SeverityError, "assemble.sink_policy", "not one of"},
		{"negative chunk", func(j *Job) { j.Assemble.ChunkRows = -5 }, SeverityError, "assemble.chunk_rows", "negative"},
		{"chunk in full mode", func(j *Job) { j.Assemble.Mode = "full" }, SeverityWarning, "assemble.chunk_rows", "no effect"},
		{"no sinks", func(j *Job) { j.Sinks = nil }, SeverityWarning, "sinks", "discarded"},
		{"file sink without path", func(j *Job) { j.Sinks[0].Path = "" }, SeverityError, "sinks[0].path", "needs a path"},
		{"empty sink kind", func(j *Job) { j.Sinks[0].Kind = "" }, SeverityError, "sinks[0].kind", "must not be empty"},
		{"unknown sink kind", func(j *Job) { j.Sinks[0].Kind = "s3" }, SeverityWarning, "sinks[0].kind", "unknown sink kind"},
		{"db without dsn", func(j *Job) {
			j.Sinks = []SinkSpec{{Kind: "db", Options: Options{"driver": "sqlite"}}}
		}, SeverityError, "sinks[0].options.dsn", "needs a dsn"},
		{"db bad driver", func(j *Job) {
			j.Sinks = []SinkSpec{{Kind: "db", Options: Options{"driver": "oracle", "dsn": "x"}}}
		}, SeverityError, "sinks[0].options.driver", "not one of"},
		{"db bad batch size", func(j *Job) {
			j.Sinks = []SinkSpec{{Kind: "db", Options: Options{"driver": "sqlite", "dsn": "x", "batch_size": float64(0)}}}
		}, SeverityError, "sinks[0].options.batch_size", "positive"},
		{"prompush without url", func(j *Job) { j.Metrics.Kind = "prompush" }, SeverityError, "metrics.url", "pushgateway"},
		{"bad metrics kind", func(j *Job) { j.Metrics.Kind = "statsd" }, SeverityError, "metrics.kind", "not one of"},
		{"bad log level", func(j *Job) { j.Logging.Level = "trace" }, SeverityError, "logging.level", "not one of"},
		{"bad log format", func(j *Job) { j.Logging.Format = "xml" }, SeverityError, "logging.format", "not one of"},
		{"negative parallel", func(j *Job) { j.Runtime.Parallel = -1 }, SeverityError, "runtime.parallel", "negative"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			j := Default()
			tc.mutate(&j)
			issues := Validate(j)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.substr) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.substr, issues)
			}
		})
	}
}

func TestValidate_MetadataOnlyNeedsNoSinks(t *testing.T) {
	t.Parallel()

	j := Default()
	j.Sinks = nil
	j.Assemble.MetadataOnly = true
	if issues := Validate(j); len(issues) != 0 {
		t.Fatalf("Validate = %+v, want none", issues)
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	got := Issue{Severity: SeverityError, Path: "a.b", Message: "bad"}.Error()
	if got != "error at a.b: bad" {
		t.Fatalf("Issue.Error() = %q", got)
	}
}
