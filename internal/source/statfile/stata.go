package statfile

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kshedden/datareader"
	"golang.org/x/text/encoding"

	"statbatch/internal/event"
	"statbatch/internal/textenc"
)

// Stata dta type codes after datareader has normalized old-format codes.
const (
	stataMaxStrF  = 2045
	stataStrL     = 32768
	stataFloat64  = 65526
	stataFloat32  = 65527
	stataInt32    = 65528
	stataInt16    = 65529
	stataInt8     = 65530
	stataUTF8From = 118
)

// stataTimeLayout matches the dta header time stamp, e.g. " 1 Jul 2016 13:52".
const stataTimeLayout = "_2 Jan 2006 15:04"

type stataReader struct {
	r        *datareader.StataReader
	dec      *encoding.Decoder
	encoding string
	types    []event.VarType
}

func newStata(rs io.ReadSeeker, opts Options) (*stataReader, error) {
	r, err := datareader.NewStataReader(rs)
	if err != nil {
		return nil, err
	}
	// Values keep their storage type: no value-label or date substitution.
	r.InsertCategoryLabels = false
	r.ConvertDates = false
	r.InsertStrls = true

	enc := opts.Encoding
	if enc == "" {
		enc = "UTF-8"
		if r.FormatVersion < stataUTF8From {
			enc = "latin1"
		}
	}
	dec, err := textenc.Decoder(enc)
	if err != nil {
		return nil, err
	}

	codes := r.ColumnTypes()
	types := make([]event.VarType, len(codes))
	for j, code := range codes {
		vt, err := stataType(int(code))
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		types[j] = vt
	}
	return &stataReader{r: r, dec: dec, encoding: textenc.Canonical(enc), types: types}, nil
}

func stataType(code int) (event.VarType, error) {
	switch {
	case code >= 0 && code <= stataMaxStrF:
		return event.TypeString, nil
	case code == stataStrL:
		return event.TypeStringRef, nil
	case code == stataFloat64:
		return event.TypeDouble, nil
	case code == stataFloat32:
		return event.TypeFloat, nil
	case code == stataInt32:
		return event.TypeInt32, nil
	case code == stataInt16:
		return event.TypeInt16, nil
	case code == stataInt8:
		return event.TypeInt8, nil
	}
	return event.TypeUnknown, fmt.Errorf("unsupported %s", sprintType(code))
}

func (s *stataReader) metadata() event.Metadata {
	r := s.r
	md := event.Metadata{
		RowCount:    int64(r.RowCount()),
		VarCount:    len(s.types),
		FileLabel:   s.text(strings.TrimSpace(r.DatasetLabel)),
		Encoding:    s.encoding,
		Version:     r.FormatVersion,
		Compression: event.CompressionNone,
		Endianness:  endianness(r.ByteOrder),
	}
	if ts, ok := parseStataTime(r.TimeStamp); ok {
		md.CreatedUnix = ts.Unix()
		md.ModifiedUnix = ts.Unix()
	}
	return md
}

// parseStataTime reads the header time stamp as UTC.
func parseStataTime(s string) (time.Time, bool) {
	s = strings.TrimRight(s, " \x00")
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(stataTimeLayout, s)
	if err != nil {
		t, err = time.Parse(stataTimeLayout, strings.TrimSpace(s))
	}
	return t, err == nil
}

func (s *stataReader) text(v string) string {
	if s.dec == nil {
		return v
	}
	if out, err := s.dec.String(v); err == nil {
		return out
	}
	return v
}

func (s *stataReader) variables() []event.Variable {
	r := s.r
	names := r.ColumnNames()
	out := make([]event.Variable, len(s.types))
	for j, vt := range s.types {
		v := event.Variable{Index: j, Type: vt, Class: event.ClassOf(vt)}
		if j < len(names) {
			v.Name = s.text(names[j])
		}
		if j < len(r.ColumnNamesLong) {
			v.Label = s.text(r.ColumnNamesLong[j])
		}
		if j < len(r.Formats) {
			v.Format = r.Formats[j]
		}
		out[j] = v
	}
	return out
}

func (s *stataReader) read(n int) ([]*datareader.Series, error) {
	cols, err := s.r.Read(n)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, io.EOF
	}
	for _, c := range cols {
		if strs, ok := c.Data().([]string); ok {
			decodeAll(s.dec, strs)
		}
	}
	return cols, nil
}
