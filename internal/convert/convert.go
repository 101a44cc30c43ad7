// Package convert runs jobs: it opens each input, assembles it into record
// batches, and fans the batches out to the configured sinks.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"statbatch/internal/assemble"
	"statbatch/internal/config"
	"statbatch/internal/datasource"
	"statbatch/internal/datasource/httpds"
	"statbatch/internal/logging"
	"statbatch/internal/meta"
	"statbatch/internal/metrics"
	"statbatch/internal/schema"
	"statbatch/internal/sink"
	"statbatch/internal/textenc"
)

// Report is the outcome of converting one input.
type Report struct {
	File        string            `json:"file"`
	Metadata    meta.FileMetadata `json:"metadata"`
	Fields      []schema.Field    `json:"-"`
	Fingerprint string            `json:"fingerprint"`
	Batches     int               `json:"batches"`
	Rows        int64             `json:"rows"`

	// Loaded counts rows accepted by database sinks.
	Loaded       int64         `json:"loaded,omitempty"`
	SinkFailures []string      `json:"sink_failures,omitempty"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
}

// Converter converts inputs according to Job.
type Converter struct {
	Job    config.Job
	Logger *slog.Logger

	// Allocator backs column buffers; nil means memory.DefaultAllocator.
	Allocator memory.Allocator

	// HTTP fetches http(s) inputs.
	HTTP *httpds.Client
}

// New returns a Converter for job. A nil logger discards output.
func New(job config.Job, logger *slog.Logger) *Converter {
	return &Converter{
		Job:    job,
		Logger: logging.OrDiscard(logger),
		HTTP:   httpds.NewClient(httpds.Config{MaxRetries: 3}),
	}
}

// File converts one input with slog.Default as the logger.
func File(ctx context.Context, job config.Job, path string) (Report, error) {
	return New(job, slog.Default()).File(ctx, path)
}

// Run converts paths with slog.Default as the logger.
func Run(ctx context.Context, job config.Job, paths []string) ([]Report, error) {
	return New(job, slog.Default()).Run(ctx, paths)
}

type options struct {
	assemble assemble.Options
	chunk    int
}

func (c *Converter) options() (options, error) {
	a := c.Job.Assemble
	mode, err := assemble.ParseMode(a.Mode)
	if err != nil {
		return options{}, err
	}
	enc, err := textenc.ParsePolicy(a.EncodingPolicy)
	if err != nil {
		return options{}, err
	}
	sp, err := sink.ParsePolicy(a.SinkPolicy)
	if err != nil {
		return options{}, err
	}
	flush := assemble.FlushPolicy{Mode: mode, ChunkRows: a.ChunkRows}
	return options{
		assemble: assemble.Options{
			Flush:        flush,
			Encoding:     enc,
			SinkPolicy:   sp,
			MetadataOnly: a.MetadataOnly,
			Allocator:    c.Allocator,
		},
		chunk: flush.Chunk(),
	}, nil
}

// File converts one input end to end. The returned error is also stored in
// Report.Err.
func (c *Converter) File(ctx context.Context, path string) (Report, error) {
	start := time.Now()
	rep := Report{File: path}
	job := c.Job.Job

	ctx = logging.With(ctx, slog.String("file", path))
	log := logging.FromContext(ctx, c.Logger)

	fail := func(err error) (Report, error) {
		rep.Duration = time.Since(start)
		rep.Err = fmt.Errorf("%s: %w", path, err)
		log.Error("conversion failed", slog.Any("err", err), slog.Duration("elapsed", rep.Duration.Truncate(time.Millisecond)))
		return rep, rep.Err
	}

	opts, err := c.options()
	if err != nil {
		return fail(err)
	}

	t := time.Now()
	in, err := c.openInput(ctx, opts.chunk, path)
	metrics.RecordStep(job, "open", err, time.Since(t))
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := in.close(); err != nil {
			log.Warn("close input", slog.Any("err", err))
		}
	}()

	specs := c.Job.Sinks
	if opts.assemble.MetadataOnly {
		specs = nil
	}
	var sess *assemble.Session
	out, lazy := buildSinks(specs, datasource.Name(path), func() meta.FileMetadata { return sess.Metadata() }, log)
	opts.assemble.Logger = log
	sess = assemble.New(out, opts.assemble)

	t = time.Now()
	res, runErr := sess.Run(ctx, in.src)
	metrics.RecordStep(job, "assemble", runErr, time.Since(t))

	t = time.Now()
	closeErr := out.Close()
	metrics.RecordStep(job, "close", closeErr, time.Since(t))

	rep.Metadata = res.Metadata
	rep.Fields = res.Fields
	rep.Fingerprint = fmt.Sprintf("%016x", res.Fingerprint)
	rep.Batches = res.Batches
	rep.Rows = res.Rows
	for _, l := range lazy {
		rep.Loaded += l.loaded()
	}

	failed := append([]error{}, res.SinkErrors...)
	failed = append(failed, runErr, closeErr)
	for _, e := range failed {
		for _, se := range sinkErrors(e) {
			rep.SinkFailures = append(rep.SinkFailures, se.Error())
			metrics.RecordSinkFailure(job, se.Sink)
		}
	}
	metrics.RecordRows(job, "assembled", res.Rows)
	metrics.RecordRows(job, "loaded", rep.Loaded)
	metrics.RecordBatches(job, int64(res.Batches))

	err = runErr
	if closeErr != nil {
		if opts.assemble.SinkPolicy == sink.BestEffort {
			log.Warn("sink close failed; continuing", slog.Any("err", closeErr))
		} else {
			err = errors.Join(err, closeErr)
		}
	}
	if err != nil {
		return fail(err)
	}

	rep.Duration = time.Since(start)
	log.Info("converted",
		slog.Int64("rows", rep.Rows),
		slog.Int("batches", rep.Batches),
		slog.Int("fields", len(rep.Fields)),
		slog.String("fingerprint", rep.Fingerprint),
		slog.Int("sink_failures", len(rep.SinkFailures)),
		slog.Duration("elapsed", rep.Duration.Truncate(time.Millisecond)),
	)
	return rep, nil
}

// Run converts paths, at most Job.Runtime.Parallel at a time. One failed
// input does not stop the others; the error joins every failure and the
// reports keep the input order.
func (c *Converter) Run(ctx context.Context, paths []string) ([]Report, error) {
	reports := make([]Report, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(max(1, c.Job.Runtime.Parallel))
	for i, p := range paths {
		g.Go(func() error {
			reports[i], errs[i] = c.File(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}
