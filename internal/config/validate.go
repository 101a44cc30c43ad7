package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced but does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Job.
//
// Path is a dotted path into the config (e.g. "assemble.mode",
// "sinks[1].options.dsn"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate lints j without mutating it. Callers decide whether warnings are
// fatal.
//
// Example:
//
//	job, err := config.Load("job.yaml")
//	if err != nil { ... }
//	for _, iss := range config.Validate(job) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func Validate(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; it labels logs and metrics",
		})
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateAssemble(j.Assemble)...)
	issues = append(issues, validateSinks(j.Sinks, j.Assemble.MetadataOnly)...)
	issues = append(issues, validateMetrics(j.Metrics)...)
	issues = append(issues, validateLogging(j.Logging)...)
	issues = append(issues, validateRuntime(j.Runtime)...)

	return issues
}

func oneOf(path, val string, allowed ...string) []Issue {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     path,
		Message:  fmt.Sprintf("%q is not one of %s", val, strings.Join(allowed, "|")),
	}}
}

func validateSource(s Source) []Issue {
	issues := oneOf("source.kind", s.Kind, "", "auto", "sas7bdat", "dta", "eventlog")
	if s.RowLimit < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.row_limit",
			Message:  "row_limit must not be negative",
		})
	}
	if s.ReadChunk < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.read_chunk",
			Message:  "read_chunk must not be negative",
		})
	}
	return issues
}

func validateAssemble(a Assemble) []Issue {
	var issues []Issue
	issues = append(issues, oneOf("assemble.mode", a.Mode, "", "streaming", "full")...)
	issues = append(issues, oneOf("assemble.encoding_policy", a.EncodingPolicy, "", "replace", "skip", "abort")...)
	issues = append(issues, oneOf("assemble.sink_policy", a.SinkPolicy, "", "fail_fast", "best_effort")...)
	if a.ChunkRows < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "assemble.chunk_rows",
			Message:  "chunk_rows must not be negative",
		})
	}
	if a.Mode == "full" && a.ChunkRows > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "assemble.chunk_rows",
			Message:  "chunk_rows has no effect in full mode",
		})
	}
	return issues
}

func validateSinks(sinks []SinkSpec, metadataOnly bool) []Issue {
	var issues []Issue
	if len(sinks) == 0 && !metadataOnly {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sinks",
			Message:  "no sinks configured; batches will be discarded",
		})
	}
	for i, s := range sinks {
		p := fmt.Sprintf("sinks[%d]", i)
		switch s.Kind {
		case "csv", "parquet", "ipc":
			if strings.TrimSpace(s.Path) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     p + ".path",
					Message:  s.Kind + " sink needs a path",
				})
			}
		case "db":
			issues = append(issues, oneOf(p+".options.driver", s.Options.String("driver", ""), "postgres", "sqlite", "mysql", "mssql")...)
			if strings.TrimSpace(s.Options.String("dsn", "")) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     p + ".options.dsn",
					Message:  "db sink needs a dsn",
				})
			}
			if s.Options.Int("batch_size", 5000) <= 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     p + ".options.batch_size",
					Message:  "batch_size must be positive",
				})
			}
		case "discard":
		case "":
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".kind",
				Message:  "sink kind must not be empty",
			})
		default:
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     p + ".kind",
				Message:  fmt.Sprintf("unknown sink kind %q; ensure a matching backend is registered", s.Kind),
			})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	issues := oneOf("metrics.kind", m.Kind, "", "none", "prompush", "datadog")
	if m.Kind == "prompush" && strings.TrimSpace(m.URL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.url",
			Message:  "prompush needs a pushgateway url",
		})
	}
	return issues
}

func validateLogging(l Logging) []Issue {
	var issues []Issue
	issues = append(issues, oneOf("logging.level", strings.ToLower(l.Level), "", "debug", "info", "warn", "error")...)
	issues = append(issues, oneOf("logging.format", l.Format, "", "text", "json")...)
	return issues
}

func validateRuntime(r Runtime) []Issue {
	if r.Parallel < 0 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "runtime.parallel",
			Message:  "parallel must not be negative",
		}}
	}
	return nil
}
