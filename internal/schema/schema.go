// Package schema builds the assembled table's schema one variable
// declaration at a time.
//
// Declared primitive types map to semantic storage types:
//
//	string, string-ref, unknown -> Utf8
//	int8, int16                -> Int16 (int8 is widened)
//	int32                      -> Int32
//	float                      -> Float32
//	double                     -> Float64
//
// Date, datetime and time display formats do not change the storage type.
// Their classification travels in the arrow field metadata under
// MetaFormatClass.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/zeebo/xxh3"

	"statbatch/internal/errkind"
	"statbatch/internal/event"
	"statbatch/internal/format"
)

// Arrow field metadata keys.
const (
	MetaLabel        = "label"
	MetaFormat       = "format"
	MetaFormatClass  = "format_class"
	MetaDeclaredType = "declared_type"
	MetaIndex        = "index"
)

// Type is the semantic storage type of a column.
type Type uint8

const (
	Utf8 Type = iota
	Int16
	Int32
	Float32
	Float64
)

func (t Type) String() string {
	switch t {
	case Utf8:
		return "utf8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// TypeOf maps a declared primitive type to its storage type.
func TypeOf(vt event.VarType) Type {
	switch vt {
	case event.TypeInt8, event.TypeInt16:
		return Int16
	case event.TypeInt32:
		return Int32
	case event.TypeFloat:
		return Float32
	case event.TypeDouble:
		return Float64
	default:
		return Utf8
	}
}

// Arrow returns the arrow data type for t.
func (t Type) Arrow() arrow.DataType {
	switch t {
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// Field is one column of the assembled schema.
type Field struct {
	Index    int
	Name     string
	Label    string
	Format   string
	Class    format.Class
	Declared event.VarType
	Type     Type
}

// FieldOf derives the schema field for a declaration.
func FieldOf(v event.Variable) Field {
	return Field{
		Index:    v.Index,
		Name:     v.Name,
		Label:    v.Label,
		Format:   v.Format,
		Class:    format.Classify(v.Format),
		Declared: v.Type,
		Type:     TypeOf(v.Type),
	}
}

// Arrow renders f as a nullable arrow field carrying its metadata.
func (f Field) Arrow() arrow.Field {
	md := arrow.NewMetadata(
		[]string{MetaIndex, MetaDeclaredType, MetaLabel, MetaFormat, MetaFormatClass},
		[]string{strconv.Itoa(f.Index), f.Declared.String(), f.Label, f.Format, f.Class.String()},
	)
	return arrow.Field{Name: f.Name, Type: f.Type.Arrow(), Nullable: true, Metadata: md}
}

// Builder accumulates fields in declaration order. The zero value is ready
// to use. A Builder is not safe for concurrent use.
type Builder struct {
	fields []Field
	byName map[string]int // first index declared under each name
	meta   map[string]string
	cached *arrow.Schema
}

// Add appends the field for v.
//
// Redeclaring an existing index with the same name and type is a no-op and
// returns added=false. Any other redeclaration, or a repeated name whose
// storage type differs, is a SchemaConflict. An index that skips ahead of
// the next expected one is a contract violation.
func (b *Builder) Add(v event.Variable) (added bool, err error) {
	f := FieldOf(v)
	switch {
	case v.Index < 0:
		return false, errkind.Contractf("variable %q has negative index %d", v.Name, v.Index)
	case v.Index < len(b.fields):
		prev := b.fields[v.Index]
		if prev.Name == f.Name && prev.Type == f.Type {
			return false, nil
		}
		return false, errkind.Conflictf("index %d redeclared as %q (%s), previously %q (%s)",
			v.Index, f.Name, f.Type, prev.Name, prev.Type)
	case v.Index > len(b.fields):
		return false, errkind.Contractf("variable %q declared at index %d, want %d", v.Name, v.Index, len(b.fields))
	}

	if i, ok := b.byName[f.Name]; ok && b.fields[i].Type != f.Type {
		return false, errkind.Conflictf("field %q declared as %s at index %d, previously %s at index %d",
			f.Name, f.Type, f.Index, b.fields[i].Type, i)
	}
	if b.byName == nil {
		b.byName = make(map[string]int)
	}
	if _, ok := b.byName[f.Name]; !ok {
		b.byName[f.Name] = f.Index
	}
	b.fields = append(b.fields, f)
	b.cached = nil
	return true, nil
}

// Len returns the number of fields declared so far.
func (b *Builder) Len() int { return len(b.fields) }

// Field returns the field at index i.
func (b *Builder) Field(i int) Field { return b.fields[i] }

// Fields returns a copy of the declared fields.
func (b *Builder) Fields() []Field {
	out := make([]Field, len(b.fields))
	copy(out, b.fields)
	return out
}

// SetMetadata attaches schema-level key/value metadata.
func (b *Builder) SetMetadata(kv map[string]string) {
	b.meta = kv
	b.cached = nil
}

// Arrow returns the arrow schema for the fields declared so far. The result
// is cached until the next Add or SetMetadata.
func (b *Builder) Arrow() *arrow.Schema {
	if b.cached != nil {
		return b.cached
	}
	fields := make([]arrow.Field, len(b.fields))
	for i, f := range b.fields {
		fields[i] = f.Arrow()
	}
	var md *arrow.Metadata
	if len(b.meta) > 0 {
		m := arrow.MetadataFrom(b.meta)
		md = &m
	}
	b.cached = arrow.NewSchema(fields, md)
	return b.cached
}

// Fingerprint hashes the ordered (name, type) pairs of fields. Labels and
// formats do not contribute, so two files with the same column layout share
// a fingerprint.
func Fingerprint(fields []Field) uint64 {
	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(f.Name)
		sb.WriteByte(0)
		sb.WriteString(f.Type.String())
		sb.WriteByte(0)
	}
	return xxh3.HashString(sb.String())
}

// FieldsOf recovers the fields of an arrow schema produced by Builder.Arrow.
// Fields without metadata get their position as index and a declared type
// derived from the storage type.
func FieldsOf(sc *arrow.Schema) ([]Field, error) {
	out := make([]Field, sc.NumFields())
	for i, af := range sc.Fields() {
		f := Field{Index: i, Name: af.Name}
		switch af.Type.ID() {
		case arrow.STRING:
			f.Type, f.Declared = Utf8, event.TypeString
		case arrow.INT16:
			f.Type, f.Declared = Int16, event.TypeInt16
		case arrow.INT32:
			f.Type, f.Declared = Int32, event.TypeInt32
		case arrow.FLOAT32:
			f.Type, f.Declared = Float32, event.TypeFloat
		case arrow.FLOAT64:
			f.Type, f.Declared = Float64, event.TypeDouble
		default:
			return nil, fmt.Errorf("schema: field %q has unsupported type %s", af.Name, af.Type)
		}
		md := af.Metadata
		if j := md.FindKey(MetaIndex); j >= 0 {
			if n, err := strconv.Atoi(md.Values()[j]); err == nil {
				f.Index = n
			}
		}
		if j := md.FindKey(MetaDeclaredType); j >= 0 {
			if vt, err := event.ParseVarType(md.Values()[j]); err == nil {
				f.Declared = vt
			}
		}
		if j := md.FindKey(MetaLabel); j >= 0 {
			f.Label = md.Values()[j]
		}
		if j := md.FindKey(MetaFormat); j >= 0 {
			f.Format = md.Values()[j]
		}
		f.Class = format.Classify(f.Format)
		out[i] = f
	}
	return out, nil
}
