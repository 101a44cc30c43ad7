package eventlog

import (
	"bufio"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"statbatch/internal/event"
)

// Tee is an event.Handler that writes every event to w before passing it to
// Next. A nil Next accepts everything. Call Flush when the parse returns.
type Tee struct {
	Next event.Handler

	w   *bufio.Writer
	enc *json.Encoder
	err error
}

// NewTee returns a Tee writing to w.
func NewTee(w io.Writer, next event.Handler) *Tee {
	bw := bufio.NewWriter(w)
	return &Tee{Next: next, w: bw, enc: json.NewEncoder(bw)}
}

// Err returns the first write error.
func (t *Tee) Err() error { return t.err }

// Flush writes buffered lines and returns the first error seen.
func (t *Tee) Flush() error {
	if err := t.w.Flush(); err != nil && t.err == nil {
		t.err = err
	}
	return t.err
}

func (t *Tee) write(l *Line) event.Status {
	if t.err == nil {
		t.err = t.enc.Encode(l)
	}
	if t.err != nil {
		return event.StatusAbort
	}
	return event.StatusOK
}

// OnMetadata implements event.Handler.
func (t *Tee) OnMetadata(md event.Metadata) event.Status {
	rc := md.RowCount
	l := &Line{
		Kind:        KindMetadata,
		RowCount:    &rc,
		VarCount:    md.VarCount,
		TableName:   md.TableName,
		FileLabel:   md.FileLabel,
		Encoding:    md.Encoding,
		Version:     md.Version,
		Is64Bit:     md.Is64Bit,
		Created:     md.CreatedUnix,
		Modified:    md.ModifiedUnix,
		Compression: md.Compression.String(),
		Endianness:  md.Endianness.String(),
	}
	if st := t.write(l); st != event.StatusOK || t.Next == nil {
		return st
	}
	return t.Next.OnMetadata(md)
}

// OnVariable implements event.Handler.
func (t *Tee) OnVariable(v event.Variable) event.Status {
	l := &Line{
		Kind:   KindVariable,
		Index:  v.Index,
		Type:   v.Type.String(),
		Name:   v.Name,
		Label:  v.Label,
		Format: v.Format,
	}
	if st := t.write(l); st != event.StatusOK || t.Next == nil {
		return st
	}
	return t.Next.OnVariable(v)
}

// OnValue implements event.Handler.
func (t *Tee) OnValue(v event.Value) event.Status {
	l := &Line{Kind: KindValue, Row: v.Row, Var: v.Var, Type: v.Type.String(), Missing: v.Missing}
	if !v.Missing {
		l.Value = rawValue(v)
	}
	if st := t.write(l); st != event.StatusOK || t.Next == nil {
		return st
	}
	return t.Next.OnValue(v)
}

func rawValue(v event.Value) json.RawMessage {
	switch v.Type {
	case event.TypeString, event.TypeStringRef, event.TypeUnknown:
		b, _ := json.Marshal(v.Str)
		return b
	case event.TypeInt8, event.TypeInt16, event.TypeInt32:
		return json.RawMessage(strconv.FormatInt(v.Int, 10))
	default:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return json.RawMessage(strconv.Quote(strconv.FormatFloat(v.Float, 'g', -1, 64)))
		}
		return json.RawMessage(strconv.FormatFloat(v.Float, 'g', -1, 64))
	}
}
