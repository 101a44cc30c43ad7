package statfile

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"github.com/kshedden/datareader"

	"statbatch/internal/event"
	"statbatch/internal/textenc"
)

type sasReader struct {
	r        *datareader.SAS7BDAT
	encoding string
}

func newSAS(rs io.ReadSeeker, opts Options) (*sasReader, error) {
	r, err := datareader.NewSAS7BDATReader(rs)
	if err != nil {
		return nil, err
	}
	r.TrimStrings = !opts.KeepPadding
	r.ConvertDates = false

	enc := r.FileEncoding
	if opts.Encoding != "" {
		enc = opts.Encoding
	}
	dec, err := textenc.Decoder(enc)
	if err != nil && opts.Encoding != "" {
		return nil, err
	}
	// An encoding the file names but x/text does not know is passed through
	// undecoded.
	r.TextDecoder = dec
	return &sasReader{r: r, encoding: textenc.Canonical(enc)}, nil
}

func (s *sasReader) metadata() event.Metadata {
	r := s.r
	md := event.Metadata{
		RowCount:    int64(r.RowCount()),
		VarCount:    len(r.ColumnNames()),
		TableName:   strings.TrimSpace(r.Name),
		Encoding:    s.encoding,
		Version:     sasVersion(r.SASRelease),
		Is64Bit:     r.U64,
		Compression: sasCompression(r.Compression),
		Endianness:  endianness(r.ByteOrder),
	}
	if !r.DateCreated.IsZero() {
		md.CreatedUnix = r.DateCreated.Unix()
	}
	if !r.DateModified.IsZero() {
		md.ModifiedUnix = r.DateModified.Unix()
	}
	return md
}

func (s *sasReader) variables() []event.Variable {
	names := s.r.ColumnNames()
	labels := s.r.ColumnLabels()
	types := s.r.ColumnTypes()
	out := make([]event.Variable, len(names))
	for j, name := range names {
		vt := event.TypeDouble
		if types[j] == datareader.SASStringType {
			vt = event.TypeString
		}
		v := event.Variable{Index: j, Type: vt, Class: event.ClassOf(vt), Name: name}
		if j < len(labels) {
			v.Label = labels[j]
		}
		if j < len(s.r.ColumnFormats) {
			v.Format = s.r.ColumnFormats[j]
		}
		out[j] = v
	}
	return out
}

func (s *sasReader) read(n int) ([]*datareader.Series, error) { return s.r.Read(n) }

// sasVersion returns the major SAS release, e.g. 9 for "9.0401M6".
func sasVersion(release string) int {
	release = strings.TrimSpace(release)
	if i := strings.IndexByte(release, '.'); i >= 0 {
		release = release[:i]
	}
	v, err := strconv.Atoi(release)
	if err != nil {
		return 0
	}
	return v
}

func sasCompression(c string) event.Compression {
	switch strings.TrimSpace(c) {
	case "":
		return event.CompressionNone
	case "SASYZCRL":
		return event.CompressionRows
	case "SASYZCR2":
		return event.CompressionBinary
	default:
		return event.CompressionUnknown
	}
}

func endianness(bo binary.ByteOrder) event.Endianness {
	switch bo {
	case binary.LittleEndian:
		return event.EndianLittle
	case binary.BigEndian:
		return event.EndianBig
	default:
		return event.EndianUnknown
	}
}
