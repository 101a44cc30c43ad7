// Package meta holds the file-level metadata captured from a source.
package meta

import (
	"fmt"
	"strconv"
	"time"

	"statbatch/internal/errkind"
	"statbatch/internal/event"
)

// TimestampLayout renders creation and modification times.
const TimestampLayout = "2006-01-02 15:04:05"

// FileMetadata is the immutable metadata of one parsed file.
type FileMetadata struct {
	RowCount    int64             `json:"row_count"`
	VarCount    int               `json:"var_count"`
	TableName   string            `json:"table_name"`
	FileLabel   string            `json:"file_label"`
	Encoding    string            `json:"encoding"`
	Version     int               `json:"version"`
	Is64Bit     bool              `json:"is_64bit"`
	Created     time.Time         `json:"created"`
	Modified    time.Time         `json:"modified"`
	Compression event.Compression `json:"-"`
	Endianness  event.Endianness  `json:"-"`
}

// RowsKnown reports whether the source declared a row count.
func (m FileMetadata) RowsKnown() bool { return m.RowCount >= 0 }

// CreatedString formats Created with TimestampLayout.
func (m FileMetadata) CreatedString() string { return m.Created.Format(TimestampLayout) }

// ModifiedString formats Modified with TimestampLayout.
func (m FileMetadata) ModifiedString() string { return m.Modified.Format(TimestampLayout) }

// Absent returns one ErrMetadataAbsent-wrapping error per optional string
// field the source left empty.
func (m FileMetadata) Absent() []error {
	var out []error
	for _, f := range []struct{ name, v string }{
		{"table_name", m.TableName},
		{"file_label", m.FileLabel},
		{"encoding", m.Encoding},
	} {
		if f.v == "" {
			out = append(out, fmt.Errorf("%s: %w", f.name, errkind.ErrMetadataAbsent))
		}
	}
	return out
}

// KeyValues renders m as string pairs for arrow schema metadata.
func (m FileMetadata) KeyValues() map[string]string {
	return map[string]string{
		"row_count":     strconv.FormatInt(m.RowCount, 10),
		"var_count":     strconv.Itoa(m.VarCount),
		"table_name":    m.TableName,
		"file_label":    m.FileLabel,
		"encoding":      m.Encoding,
		"version":       strconv.Itoa(m.Version),
		"is_64bit":      strconv.FormatBool(m.Is64Bit),
		"creation_time": m.CreatedString(),
		"modified_time": m.ModifiedString(),
		"compression":   m.Compression.String(),
		"endianness":    m.Endianness.String(),
	}
}

// FromEvent converts a metadata event. Epoch seconds become UTC times.
func FromEvent(e event.Metadata) FileMetadata {
	return FileMetadata{
		RowCount:    e.RowCount,
		VarCount:    e.VarCount,
		TableName:   e.TableName,
		FileLabel:   e.FileLabel,
		Encoding:    e.Encoding,
		Version:     e.Version,
		Is64Bit:     e.Is64Bit,
		Created:     time.Unix(e.CreatedUnix, 0).UTC(),
		Modified:    time.Unix(e.ModifiedUnix, 0).UTC(),
		Compression: e.Compression,
		Endianness:  e.Endianness,
	}
}

// Registry captures metadata exactly once.
type Registry struct {
	md       FileMetadata
	captured bool
}

// Capture records e. A second call is a contract violation and leaves the
// first capture in place.
func (r *Registry) Capture(e event.Metadata) error {
	if r.captured {
		return errkind.Contractf("metadata delivered more than once")
	}
	if e.VarCount < 0 {
		return errkind.Contractf("negative var_count %d", e.VarCount)
	}
	r.md = FromEvent(e)
	r.captured = true
	return nil
}

// Captured reports whether Capture has succeeded.
func (r *Registry) Captured() bool { return r.captured }

// Metadata returns the captured metadata, or the zero value before Capture.
func (r *Registry) Metadata() FileMetadata { return r.md }
