// Package textenc resolves source text encodings and applies the policy for
// string values that are not valid UTF-8.
package textenc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"statbatch/internal/errkind"
)

// Policy decides what happens to a string that is not valid UTF-8.
type Policy uint8

const (
	// Replace substitutes U+FFFD for each invalid sequence.
	Replace Policy = iota
	// Skip stores a null instead of the value.
	Skip
	// Abort fails the parse with an EncodingError.
	Abort
)

func (p Policy) String() string {
	switch p {
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return "replace"
	}
}

// ParsePolicy parses "replace", "skip" or "abort"; empty means Replace.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return Replace, nil
	case "skip":
		return Skip, nil
	case "abort":
		return Abort, nil
	default:
		return Replace, fmt.Errorf("textenc: unknown encoding policy %q", s)
	}
}

// Sanitize applies p to s. It returns the string to store and whether the
// value should be stored as null instead.
func Sanitize(s string, p Policy) (out string, null bool, err error) {
	if utf8.ValidString(s) {
		return s, false, nil
	}
	switch p {
	case Skip:
		return "", true, nil
	case Abort:
		return "", false, errkind.Encodingf("invalid UTF-8 in %q", truncate(s, 32))
	default:
		return strings.ToValidUTF8(s, string(utf8.RuneError)), false, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SAS writes its own names for common code pages.
var aliases = map[string]encoding.Encoding{
	"latin1":    charmap.ISO8859_1,
	"wlatin1":   charmap.Windows1252,
	"wlatin2":   charmap.Windows1250,
	"cyrillic":  charmap.ISO8859_5,
	"wcyrillic": charmap.Windows1251,
}

// Lookup resolves an encoding name. UTF-8 and the empty name resolve to
// nil, meaning no decoding is needed.
func Lookup(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "utf-8" || n == "utf8" {
		return nil, nil
	}
	if e, ok := aliases[n]; ok {
		return e, nil
	}
	e, err := htmlindex.Get(n)
	if err != nil {
		return nil, fmt.Errorf("textenc: unsupported encoding %q: %w", name, err)
	}
	if e == unicode.UTF8 {
		return nil, nil
	}
	return e, nil
}

// Decoder returns a decoder for name, or nil when strings already are UTF-8.
func Decoder(name string) (*encoding.Decoder, error) {
	e, err := Lookup(name)
	if err != nil || e == nil {
		return nil, err
	}
	return e.NewDecoder(), nil
}

// Canonical returns the display name used in metadata: "UTF-8" for UTF-8
// spellings, otherwise name unchanged.
func Canonical(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return "UTF-8"
	}
	return name
}
