package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Default returns a runnable job: auto-detected inputs, streaming assembly,
// one CSV file per input.
func Default() Job {
	return Job{
		Job:      "statbatch",
		Source:   Source{Kind: "auto"},
		Assemble: Assemble{Mode: "streaming", ChunkRows: 100000, EncodingPolicy: "replace", SinkPolicy: "fail_fast"},
		Sinks:    []SinkSpec{{Kind: "csv", Path: "{stem}.csv", Options: Options{}}},
		Metrics:  Metrics{Kind: "none"},
		Logging:  Logging{Level: "info", Format: "text"},
		Runtime:  Runtime{Parallel: 1},
	}
}

// Load reads a job file. Files ending in .yaml or .yml are decoded as YAML,
// anything else as JSON. Fields absent from the file keep their Default
// values.
func Load(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("config: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	job, err := Decode(bytes.NewReader(b), format)
	if err != nil {
		return Job{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return job, nil
}

// Decode decodes a job in the given format ("json" or "yaml") on top of
// Default. A document without a "sinks" key keeps the default sink.
func Decode(r io.Reader, format string) (Job, error) {
	job := Default()
	defaultSinks := job.Sinks
	job.Sinks = nil
	switch format {
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&job); err != nil && err != io.EOF {
			return Job{}, err
		}
	case "json", "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&job); err != nil && err != io.EOF {
			return Job{}, err
		}
	default:
		return Job{}, fmt.Errorf("unknown config format %q", format)
	}
	if job.Sinks == nil {
		job.Sinks = defaultSinks
	}
	for i := range job.Sinks {
		if job.Sinks[i].Options == nil {
			job.Sinks[i].Options = Options{}
		}
	}
	return job, nil
}

// Env holds the STATBATCH_* overrides.
type Env struct {
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogFormat   string `envconfig:"LOG_FORMAT"`
	ChunkRows   int    `envconfig:"CHUNK_ROWS"`
	Parallel    int    `envconfig:"PARALLEL"`
	MetricsURL  string `envconfig:"METRICS_URL"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// ApplyEnv overlays set STATBATCH_* variables onto job.
func ApplyEnv(job *Job) error {
	var env Env
	if err := envconfig.Process("statbatch", &env); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	if env.LogLevel != "" {
		job.Logging.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		job.Logging.Format = env.LogFormat
	}
	if env.ChunkRows != 0 {
		job.Assemble.ChunkRows = env.ChunkRows
	}
	if env.Parallel != 0 {
		job.Runtime.Parallel = env.Parallel
	}
	if env.MetricsURL != "" {
		job.Metrics.URL = env.MetricsURL
	}
	if env.MetricsAddr != "" {
		job.Metrics.Addr = env.MetricsAddr
	}
	return nil
}
