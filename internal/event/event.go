// Package event defines the push protocol between a statistical-file parser
// and the row assembler.
//
// A Source delivers three kinds of events to a Handler, strictly in order:
//
//  1. exactly one Metadata event;
//  2. Metadata.VarCount Variable events with indices 0..VarCount-1;
//  3. RowCount x VarCount Value events in row-major order.
//
// Each handler call returns a Status. A Source must stop delivering events as
// soon as it receives StatusAbort and return errkind.ErrAborted.
package event

import (
	"context"
	"fmt"
)

// VarType is the primitive storage type a source declares for a variable.
type VarType uint8

const (
	TypeUnknown VarType = iota
	TypeString
	TypeStringRef
	TypeInt8
	TypeInt16
	TypeInt32
	TypeFloat
	TypeDouble
)

var varTypeNames = [...]string{
	TypeUnknown:   "unknown",
	TypeString:    "string",
	TypeStringRef: "string-ref",
	TypeInt8:      "int8",
	TypeInt16:     "int16",
	TypeInt32:     "int32",
	TypeFloat:     "float",
	TypeDouble:    "double",
}

func (t VarType) String() string {
	if int(t) < len(varTypeNames) {
		return varTypeNames[t]
	}
	return fmt.Sprintf("VarType(%d)", t)
}

// ParseVarType is the inverse of VarType.String.
func ParseVarType(s string) (VarType, error) {
	for i, n := range varTypeNames {
		if n == s {
			return VarType(i), nil
		}
	}
	return TypeUnknown, fmt.Errorf("event: unknown variable type %q", s)
}

// Textual reports whether values of this type are carried in Value.Str.
func (t VarType) Textual() bool {
	return t == TypeString || t == TypeStringRef || t == TypeUnknown
}

// TypeClass is the coarse class of a variable.
type TypeClass uint8

const (
	ClassNumeric TypeClass = iota
	ClassString
)

func (c TypeClass) String() string {
	if c == ClassString {
		return "string"
	}
	return "numeric"
}

// ClassOf returns the class implied by a declared type.
func ClassOf(t VarType) TypeClass {
	if t.Textual() {
		return ClassString
	}
	return ClassNumeric
}

// Compression describes how the source file stores its rows.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionRows
	CompressionBinary
	CompressionUnknown
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionRows:
		return "row"
	case CompressionBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Endianness is the byte order of the source file.
type Endianness uint8

const (
	EndianUnknown Endianness = iota
	EndianLittle
	EndianBig
)

func (e Endianness) String() string {
	switch e {
	case EndianLittle:
		return "little"
	case EndianBig:
		return "big"
	default:
		return "unknown"
	}
}

// Metadata is the file-level metadata event.
type Metadata struct {
	// RowCount is the declared number of observations. Negative means the
	// source does not know; it is then only a sizing hint.
	RowCount int64
	VarCount int

	TableName string
	FileLabel string
	Encoding  string
	Version   int
	Is64Bit   bool

	// CreatedUnix and ModifiedUnix are seconds since the Unix epoch.
	CreatedUnix  int64
	ModifiedUnix int64

	Compression Compression
	Endianness  Endianness
}

// Variable is one variable declaration.
type Variable struct {
	Index  int
	Type   VarType
	Class  TypeClass
	Name   string
	Label  string
	Format string // raw display format, e.g. "YYMMDD10."
}

// Value is one cell. Exactly one of Str, Int, Float is meaningful, selected
// by Type; none is when Missing is set.
type Value struct {
	Row     int64
	Var     int
	Missing bool
	Type    VarType

	Str   string
	Int   int64
	Float float64
}

// String builds a non-missing string value.
func String(row int64, v int, s string) Value {
	return Value{Row: row, Var: v, Type: TypeString, Str: s}
}

// Int8 builds a non-missing int8 value.
func Int8(row int64, v int, x int8) Value {
	return Value{Row: row, Var: v, Type: TypeInt8, Int: int64(x)}
}

// Int16 builds a non-missing int16 value.
func Int16(row int64, v int, x int16) Value {
	return Value{Row: row, Var: v, Type: TypeInt16, Int: int64(x)}
}

// Int32 builds a non-missing int32 value.
func Int32(row int64, v int, x int32) Value {
	return Value{Row: row, Var: v, Type: TypeInt32, Int: int64(x)}
}

// Float32 builds a non-missing float value.
func Float32(row int64, v int, x float32) Value {
	return Value{Row: row, Var: v, Type: TypeFloat, Float: float64(x)}
}

// Double builds a non-missing double value.
func Double(row int64, v int, x float64) Value {
	return Value{Row: row, Var: v, Type: TypeDouble, Float: x}
}

// Missing builds a missing value of the given type.
func Missing(row int64, v int, t VarType) Value {
	return Value{Row: row, Var: v, Type: t, Missing: true}
}

// Status is a handler's answer to an event.
type Status uint8

const (
	StatusOK Status = iota
	StatusAbort
	// StatusSkipVariable is part of the protocol but no handler in this
	// module returns it; sources treat it like StatusOK.
	StatusSkipVariable
)

// Handler consumes events. Implementations are not safe for concurrent use;
// sources call one method at a time.
type Handler interface {
	OnMetadata(Metadata) Status
	OnVariable(Variable) Status
	OnValue(Value) Status
}

// Source produces events for h until the input is exhausted, ctx is done, or
// h aborts.
type Source interface {
	Parse(ctx context.Context, h Handler) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, h Handler) error

// Parse calls f(ctx, h).
func (f SourceFunc) Parse(ctx context.Context, h Handler) error { return f(ctx, h) }
