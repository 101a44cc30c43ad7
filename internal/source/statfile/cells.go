package statfile

import (
	"fmt"
	"math"
	"time"

	"github.com/kshedden/datareader"
	"golang.org/x/text/encoding"

	"statbatch/internal/errkind"
	"statbatch/internal/event"
)

// sasEpoch is day zero of SAS and Stata date values.
var sasEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

// sasDays returns t as days since sasEpoch. Whole seconds and the
// nanosecond remainder are counted apart so dates far from 1960 neither
// saturate nor drop the time of day.
func sasDays(t time.Time) float64 {
	secs := t.Unix() - sasEpoch.Unix()
	return float64(secs)/secondsPerDay + float64(t.Nanosecond())/(secondsPerDay*1e9)
}

const secondsPerDay = 86400

// cells is one decoded column of a chunk.
type cells struct {
	typ     event.VarType
	missing []bool

	str []string
	f64 []float64
	f32 []float32
	i32 []int32
	i16 []int16
	i8  []int8
}

func (c *cells) value(row int64, v, i int) event.Value {
	if c.missing != nil && c.missing[i] {
		return event.Missing(row, v, c.typ)
	}
	switch {
	case c.str != nil:
		return event.Value{Row: row, Var: v, Type: c.typ, Str: c.str[i]}
	case c.f64 != nil:
		if math.IsNaN(c.f64[i]) {
			return event.Missing(row, v, c.typ)
		}
		return event.Double(row, v, c.f64[i])
	case c.f32 != nil:
		return event.Float32(row, v, c.f32[i])
	case c.i32 != nil:
		return event.Int32(row, v, c.i32[i])
	case c.i16 != nil:
		return event.Int16(row, v, c.i16[i])
	default:
		return event.Int8(row, v, c.i8[i])
	}
}

// cellsOf unpacks the series of one chunk. Text is decoded with dec when the
// reader did not decode it already.
func cellsOf(cols []*datareader.Series, vars []event.Variable) ([]*cells, error) {
	out := make([]*cells, len(cols))
	for j, s := range cols {
		c := &cells{typ: vars[j].Type, missing: s.Missing()}
		switch data := s.Data().(type) {
		case []string:
			c.str = data
		case []float64:
			c.f64 = data
		case []float32:
			c.f32 = data
		case []int32:
			c.i32 = data
		case []int16:
			c.i16 = data
		case []int8:
			c.i8 = data
		case []time.Time:
			// The SAS reader converts DATE columns unconditionally; undo it
			// so the column keeps its declared numeric type.
			c.f64 = make([]float64, len(data))
			for i, t := range data {
				c.f64[i] = sasDays(t)
			}
		default:
			return nil, errkind.Contractf("column %d (%q): unsupported series type %T", j, vars[j].Name, data)
		}
		if err := checkKind(c, vars[j]); err != nil {
			return nil, err
		}
		out[j] = c
	}
	return out, nil
}

func checkKind(c *cells, v event.Variable) error {
	ok := false
	switch v.Type {
	case event.TypeString, event.TypeStringRef:
		ok = c.str != nil
	case event.TypeDouble:
		ok = c.f64 != nil
	case event.TypeFloat:
		ok = c.f32 != nil
	case event.TypeInt32:
		ok = c.i32 != nil
	case event.TypeInt16:
		ok = c.i16 != nil
	case event.TypeInt8:
		ok = c.i8 != nil
	}
	if !ok {
		return errkind.Contractf("column %d (%q): series does not hold %s values", v.Index, v.Name, v.Type)
	}
	return nil
}

// decodeAll rewrites strs through dec in place. Undecodable values are left
// as they are; the assembler's encoding policy handles them.
func decodeAll(dec *encoding.Decoder, strs []string) {
	if dec == nil {
		return
	}
	for i, s := range strs {
		if out, err := dec.String(s); err == nil {
			strs[i] = out
		}
	}
}

func sprintType(code int) string { return fmt.Sprintf("stata type code %d", code) }
