// Command statbatch converts SAS7BDAT, Stata and event-log files into Arrow
// record batches and writes them to CSV, Parquet, Arrow IPC or a database.
//
// Usage:
//
//	statbatch [flags] input...
//
// A job file (-config) describes sources, assembly and sinks; the flags
// below override it. STATBATCH_* environment variables are applied between
// the two.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"statbatch/internal/config"
	"statbatch/internal/convert"
	"statbatch/internal/datasource/file"
	"statbatch/internal/logging"
	"statbatch/internal/metrics"
	"statbatch/internal/metrics/datadog"
	"statbatch/internal/metrics/prompush"

	// register every sink kind and storage backend.
	_ "statbatch/internal/sink/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	cfgPath    string
	outDir     string
	formats    string
	mode       string
	chunk      int
	rows       int64
	metadata   bool
	noWrite    bool
	list       string
	parallel   int
	logLevel   string
	logFormat  string
	metrics    string
	metricsURL string
	validate   bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, []string, map[string]bool, error) {
	var f flags
	fs := flag.NewFlagSet("statbatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.cfgPath, "config", "", "job config (JSON or YAML)")
	fs.StringVar(&f.outDir, "out", "", "directory for relative sink paths")
	fs.StringVar(&f.formats, "format", "", "comma-separated output formats: csv,parquet,ipc")
	fs.StringVar(&f.mode, "mode", "", "assembly mode: streaming or full")
	fs.IntVar(&f.chunk, "chunk", 0, "rows per streaming batch")
	fs.Int64Var(&f.rows, "rows", 0, "read at most this many rows per input (preview)")
	fs.BoolVar(&f.metadata, "metadata", false, "print metadata and variables as JSON and exit")
	fs.BoolVar(&f.noWrite, "no-write", false, "assemble but discard every batch")
	fs.StringVar(&f.list, "list", "", "file with input paths or URLs, one per line; relative paths resolve against the list's directory")
	fs.IntVar(&f.parallel, "parallel", 0, "inputs converted concurrently")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "text or json")
	fs.StringVar(&f.metrics, "metrics", "", "metrics backend: none, prompush or datadog")
	fs.StringVar(&f.metricsURL, "metrics-url", "", "Pushgateway URL or DogStatsD address")
	fs.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return &f, fs.Args(), set, nil
}

// formatPaths maps -format names to sink kinds and default paths.
var formatPaths = map[string]string{
	"csv":     "{stem}.csv",
	"parquet": "{stem}.parquet",
	"ipc":     "{stem}.arrow",
}

// buildJob resolves the job: file or defaults, then environment, then flags.
func buildJob(f *flags, set map[string]bool) (config.Job, error) {
	job := config.Default()
	if f.cfgPath != "" {
		j, err := config.Load(f.cfgPath)
		if err != nil {
			return config.Job{}, err
		}
		job = j
	}
	if err := config.ApplyEnv(&job); err != nil {
		return config.Job{}, err
	}

	if set["format"] {
		job.Sinks = nil
		for _, name := range strings.Split(f.formats, ",") {
			name = strings.TrimSpace(name)
			p, ok := formatPaths[name]
			if !ok {
				return config.Job{}, fmt.Errorf("unknown format %q", name)
			}
			job.Sinks = append(job.Sinks, config.SinkSpec{Kind: name, Path: p, Options: config.Options{}})
		}
	}
	if f.outDir != "" {
		for i, s := range job.Sinks {
			if s.Path != "" && s.Path != "-" && !filepath.IsAbs(s.Path) {
				job.Sinks[i].Path = filepath.Join(f.outDir, s.Path)
			}
		}
	}
	if f.noWrite {
		job.Sinks = []config.SinkSpec{{Kind: "discard", Options: config.Options{}}}
	}
	if set["mode"] {
		job.Assemble.Mode = f.mode
	}
	if set["chunk"] {
		job.Assemble.ChunkRows = f.chunk
	}
	if set["rows"] {
		job.Source.RowLimit = f.rows
	}
	if f.metadata {
		job.Assemble.MetadataOnly = true
	}
	if set["parallel"] {
		job.Runtime.Parallel = f.parallel
	}
	if set["log-level"] {
		job.Logging.Level = f.logLevel
	}
	if set["log-format"] {
		job.Logging.Format = f.logFormat
	}
	if set["metrics"] {
		job.Metrics.Kind = f.metrics
	}
	if set["metrics-url"] {
		job.Metrics.URL = f.metricsURL
		if job.Metrics.Addr == "" {
			job.Metrics.Addr = f.metricsURL
		}
	}
	return job, nil
}

// setupMetrics installs the configured backend. The returned func flushes
// it and is safe to call when metrics are disabled.
func setupMetrics(m config.Metrics, job string, log *slog.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch m.Kind {
	case "prompush":
		b, err = prompush.NewBackend(job, m.URL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{Addr: m.Addr, Namespace: m.Namespace, GlobalTags: m.Tags})
	default:
		return func() {}
	}
	if err != nil {
		log.Warn("metrics disabled", slog.String("backend", m.Kind), slog.Any("err", err))
		return func() {}
	}
	metrics.SetBackend(b)
	log.Debug("metrics enabled", slog.String("backend", m.Kind))
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush", slog.Any("err", err))
		}
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, inputs, set, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	job, err := buildJob(f, set)
	if err != nil {
		fmt.Fprintf(stderr, "statbatch: %v\n", err)
		return 1
	}

	issues := config.Validate(job)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "statbatch: configuration is invalid")
		return 1
	}
	if f.validate {
		fmt.Fprintln(stderr, "statbatch: configuration is valid")
		return 0
	}

	logger, err := logging.New(stderr, logging.Config{Level: job.Logging.Level, Format: job.Logging.Format})
	if err != nil {
		fmt.Fprintf(stderr, "statbatch: %v\n", err)
		return 1
	}
	ctx = logging.With(ctx, slog.String("run_id", uuid.NewString()))
	log := logging.FromContext(ctx, logger)

	if f.list != "" {
		listed, err := file.ReadInputs(f.list)
		if err != nil {
			log.Error("read input list", slog.String("list", f.list), slog.Any("err", err))
			return 1
		}
		inputs = append(inputs, listed...)
	}
	if len(inputs) == 0 {
		fmt.Fprintln(stderr, "statbatch: no input files")
		return 2
	}

	flush := setupMetrics(job.Metrics, job.Job, log)
	defer flush()

	c := convert.New(job, logger)
	if f.metadata {
		if err := c.Describe(ctx, stdout, inputs); err != nil {
			log.Error("describe failed", slog.Any("err", err))
			return 1
		}
		return 0
	}

	start := time.Now()
	reports, err := c.Run(ctx, inputs)
	var rows int64
	failed := 0
	for _, r := range reports {
		rows += r.Rows
		if r.Err != nil {
			failed++
		}
	}
	log.Info("run complete",
		slog.Int("inputs", len(reports)),
		slog.Int("failed", failed),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
	if err != nil {
		return 1
	}
	return 0
}
