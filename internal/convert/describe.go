package convert

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"statbatch/internal/meta"
)

// Description is the metadata-only view of one input.
type Description struct {
	File        string            `json:"file"`
	Metadata    meta.FileMetadata `json:"metadata"`
	Compression string            `json:"compression"`
	Endianness  string            `json:"endianness"`
	Fingerprint string            `json:"fingerprint"`
	Variables   []Variable        `json:"variables"`
}

// Variable describes one declared column.
type Variable struct {
	Name         string `json:"name"`
	Index        int    `json:"index"`
	Type         string `json:"type"`
	SemanticType string `json:"semantic_type"`
	Label        string `json:"label,omitempty"`
	Format       string `json:"format,omitempty"`
	FormatClass  string `json:"format_class"`
}

// Describe reads only the header of each input and writes its description
// to w as indented JSON, one document per input. Inputs that fail are
// skipped and their errors joined.
func (c *Converter) Describe(ctx context.Context, w io.Writer, paths []string) error {
	mc := *c
	mc.Job.Assemble.MetadataOnly = true
	mc.Job.Sinks = nil

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	var errs []error
	for _, p := range paths {
		rep, err := mc.File(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := enc.Encode(describe(rep)); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}
	return errors.Join(errs...)
}

func describe(rep Report) Description {
	d := Description{
		File:        rep.File,
		Metadata:    rep.Metadata,
		Compression: rep.Metadata.Compression.String(),
		Endianness:  rep.Metadata.Endianness.String(),
		Fingerprint: rep.Fingerprint,
		Variables:   make([]Variable, len(rep.Fields)),
	}
	for i, f := range rep.Fields {
		d.Variables[i] = Variable{
			Name:         f.Name,
			Index:        f.Index,
			Type:         f.Declared.String(),
			SemanticType: f.Type.String(),
			Label:        f.Label,
			Format:       f.Format,
			FormatClass:  f.Class.String(),
		}
	}
	return d
}
