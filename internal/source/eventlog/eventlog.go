// Package eventlog reads and writes event streams as newline-delimited JSON,
// one event per line:
//
//	{"kind":"metadata","row_count":2,"var_count":1,"table_name":"t"}
//	{"kind":"variable","index":0,"type":"double","name":"x"}
//	{"kind":"value","row":0,"var":0,"value":1.5}
//	{"kind":"value","row":1,"var":0,"missing":true}
//
// A value line may omit "type"; it then carries the type its variable was
// declared with. Non-finite floats are written as the strings "NaN", "+Inf"
// and "-Inf". Blank lines and lines starting with '#' are ignored.
package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"statbatch/internal/errkind"
	"statbatch/internal/event"
)

const (
	KindMetadata = "metadata"
	KindVariable = "variable"
	KindValue    = "value"
)

// maxLine bounds a single NDJSON line.
const maxLine = 16 << 20

const ctxCheckEvery = 4096

// Line is the wire form of one event.
type Line struct {
	Kind string `json:"kind"`

	RowCount    *int64 `json:"row_count,omitempty"`
	VarCount    int    `json:"var_count,omitempty"`
	TableName   string `json:"table_name,omitempty"`
	FileLabel   string `json:"file_label,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	Version     int    `json:"version,omitempty"`
	Is64Bit     bool   `json:"is_64bit,omitempty"`
	Created     int64  `json:"creation_time,omitempty"`
	Modified    int64  `json:"modified_time,omitempty"`
	Compression string `json:"compression,omitempty"`
	Endianness  string `json:"endianness,omitempty"`

	Index  int    `json:"index,omitempty"`
	Type   string `json:"type,omitempty"`
	Name   string `json:"name,omitempty"`
	Label  string `json:"label,omitempty"`
	Format string `json:"format,omitempty"`

	Row     int64           `json:"row,omitempty"`
	Var     int             `json:"var,omitempty"`
	Missing bool            `json:"missing,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// Reader is an event.Source over an NDJSON stream.
type Reader struct {
	r io.Reader
}

// New returns a Reader over r.
func New(r io.Reader) *Reader { return &Reader{r: r} }

// Parse implements event.Source. Malformed lines fail with an error naming
// the line number; ordering is left to the handler to validate.
func (r *Reader) Parse(ctx context.Context, h event.Handler) error {
	sc := bufio.NewScanner(r.r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	var declared []event.VarType
	n := 0
	for sc.Scan() {
		n++
		if n%ctxCheckEvery == 1 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var l Line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return fmt.Errorf("eventlog: line %d: %w", n, err)
		}

		var st event.Status
		switch l.Kind {
		case KindMetadata:
			md, err := l.metadata()
			if err != nil {
				return fmt.Errorf("eventlog: line %d: %w", n, err)
			}
			st = h.OnMetadata(md)
		case KindVariable:
			v, err := l.variable()
			if err != nil {
				return fmt.Errorf("eventlog: line %d: %w", n, err)
			}
			for len(declared) <= v.Index {
				declared = append(declared, event.TypeUnknown)
			}
			declared[v.Index] = v.Type
			st = h.OnVariable(v)
		case KindValue:
			vt := event.TypeUnknown
			if l.Var >= 0 && l.Var < len(declared) {
				vt = declared[l.Var]
			}
			v, err := l.value(vt)
			if err != nil {
				return fmt.Errorf("eventlog: line %d: %w", n, err)
			}
			st = h.OnValue(v)
		default:
			return fmt.Errorf("eventlog: line %d: unknown kind %q", n, l.Kind)
		}
		if st == event.StatusAbort {
			return errkind.ErrAborted
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("eventlog: %w", err)
	}
	return nil
}

func (l *Line) metadata() (event.Metadata, error) {
	md := event.Metadata{
		RowCount:     -1,
		VarCount:     l.VarCount,
		TableName:    l.TableName,
		FileLabel:    l.FileLabel,
		Encoding:     l.Encoding,
		Version:      l.Version,
		Is64Bit:      l.Is64Bit,
		CreatedUnix:  l.Created,
		ModifiedUnix: l.Modified,
	}
	if l.RowCount != nil {
		md.RowCount = *l.RowCount
	}
	switch l.Compression {
	case "", "none":
		md.Compression = event.CompressionNone
	case "row", "rows":
		md.Compression = event.CompressionRows
	case "binary":
		md.Compression = event.CompressionBinary
	default:
		md.Compression = event.CompressionUnknown
	}
	switch l.Endianness {
	case "little":
		md.Endianness = event.EndianLittle
	case "big":
		md.Endianness = event.EndianBig
	default:
		md.Endianness = event.EndianUnknown
	}
	return md, nil
}

func (l *Line) variable() (event.Variable, error) {
	vt, err := event.ParseVarType(l.Type)
	if err != nil {
		return event.Variable{}, err
	}
	if l.Index < 0 {
		return event.Variable{}, fmt.Errorf("negative variable index %d", l.Index)
	}
	return event.Variable{
		Index:  l.Index,
		Type:   vt,
		Class:  event.ClassOf(vt),
		Name:   l.Name,
		Label:  l.Label,
		Format: l.Format,
	}, nil
}

func (l *Line) value(declared event.VarType) (event.Value, error) {
	vt := declared
	if l.Type != "" {
		t, err := event.ParseVarType(l.Type)
		if err != nil {
			return event.Value{}, err
		}
		vt = t
	}
	v := event.Value{Row: l.Row, Var: l.Var, Type: vt}
	if l.Missing || len(l.Value) == 0 || string(l.Value) == "null" {
		v.Missing = true
		return v, nil
	}

	switch vt {
	case event.TypeString, event.TypeStringRef, event.TypeUnknown:
		if err := json.Unmarshal(l.Value, &v.Str); err != nil {
			return v, fmt.Errorf("value (%d,%d): want string: %w", l.Row, l.Var, err)
		}
	case event.TypeInt8, event.TypeInt16, event.TypeInt32:
		x, err := strconv.ParseInt(string(l.Value), 10, 64)
		if err != nil {
			return v, fmt.Errorf("value (%d,%d): want integer: %w", l.Row, l.Var, err)
		}
		if !fits(vt, x) {
			return v, fmt.Errorf("value (%d,%d): %d overflows %s", l.Row, l.Var, x, vt)
		}
		v.Int = x
	default:
		f, err := parseFloat(l.Value)
		if err != nil {
			return v, fmt.Errorf("value (%d,%d): want number: %w", l.Row, l.Var, err)
		}
		v.Float = f
	}
	return v, nil
}

func fits(vt event.VarType, x int64) bool {
	switch vt {
	case event.TypeInt8:
		return x >= math.MinInt8 && x <= math.MaxInt8
	case event.TypeInt16:
		return x >= math.MinInt16 && x <= math.MaxInt16
	default:
		return x >= math.MinInt32 && x <= math.MaxInt32
	}
}

func parseFloat(raw json.RawMessage) (float64, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, 64)
	}
	return strconv.ParseFloat(string(raw), 64)
}
