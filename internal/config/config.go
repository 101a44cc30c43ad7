// Package config defines the job model for statbatch: which inputs to read,
// how to assemble them, and where the batches go. Jobs are decoded from JSON
// or YAML files and may be overlaid from STATBATCH_* environment variables.
//
// Example (trimmed):
//
//	{
//	  "job": "nightly-extract",
//	  "source":   { "kind": "auto", "row_limit": 0 },
//	  "assemble": { "mode": "streaming", "chunk_rows": 100000 },
//	  "sinks": [
//	    { "kind": "parquet", "path": "out/{stem}.parquet", "options": { "compression": "zstd" } },
//	    { "kind": "db", "options": { "driver": "postgres", "dsn": "...", "create_table": true } }
//	  ]
//	}
package config

import "encoding/json"

// Job is the top-level object decoded from a job file.
type Job struct {
	// Job names the run in logs and metric labels.
	Job string `json:"job" yaml:"job"`

	Source   Source     `json:"source" yaml:"source"`
	Assemble Assemble   `json:"assemble" yaml:"assemble"`
	Sinks    []SinkSpec `json:"sinks" yaml:"sinks"`
	Metrics  Metrics    `json:"metrics" yaml:"metrics"`
	Logging  Logging    `json:"logging" yaml:"logging"`
	Runtime  Runtime    `json:"runtime" yaml:"runtime"`
}

// Source selects and tunes the input reader.
type Source struct {
	// Kind is "auto" (by extension), "sas7bdat", "dta" or "eventlog".
	Kind string `json:"kind" yaml:"kind"`

	// Encoding overrides the text encoding recorded in the file.
	Encoding string `json:"encoding" yaml:"encoding"`

	// RowLimit caps the rows read from each input; 0 reads everything.
	RowLimit int64 `json:"row_limit" yaml:"row_limit"`

	// ReadChunk is the number of rows a reader decodes at once.
	ReadChunk int `json:"read_chunk" yaml:"read_chunk"`
}

// Assemble configures batch assembly.
type Assemble struct {
	// Mode is "streaming" (default) or "full".
	Mode string `json:"mode" yaml:"mode"`

	// ChunkRows is the streaming batch size; 0 means 100000.
	ChunkRows int `json:"chunk_rows" yaml:"chunk_rows"`

	// EncodingPolicy is "replace" (default), "skip" or "abort".
	EncodingPolicy string `json:"encoding_policy" yaml:"encoding_policy"`

	// SinkPolicy is "fail_fast" (default) or "best_effort".
	SinkPolicy string `json:"sink_policy" yaml:"sink_policy"`

	// MetadataOnly stops after the declarations; no batches are written.
	MetadataOnly bool `json:"metadata_only" yaml:"metadata_only"`
}

// SinkSpec describes one output.
type SinkSpec struct {
	// Kind selects a registered sink: csv, parquet, ipc, db, discard.
	Kind string `json:"kind" yaml:"kind"`

	// Path is the output file; "{stem}" expands to the input's base name.
	Path string `json:"path" yaml:"path"`

	// Options is interpreted by the sink implementation.
	Options Options `json:"options" yaml:"options"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Kind is "none" (default), "prompush" or "datadog".
	Kind      string   `json:"kind" yaml:"kind"`
	URL       string   `json:"url" yaml:"url"`
	Addr      string   `json:"addr" yaml:"addr"`
	Namespace string   `json:"namespace" yaml:"namespace"`
	Tags      []string `json:"tags" yaml:"tags"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Runtime controls concurrency.
type Runtime struct {
	// Parallel is the number of inputs converted at once; 0 means 1.
	Parallel int `json:"parallel" yaml:"parallel"`
}

// Options fetches typed values from a free-form map decoded from JSON or YAML.
// It performs only minimal type coercion and returns the provided default when
// a key is absent or of an unexpected type.
//
// Options carries sink-specific settings whose shape varies by kind.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64 and yaml.v3 as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character parser settings such as
// a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive).
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
