// Package source turns a byte stream into delimited lines.
//
// It owns the two concerns that sit in front of the loader core:
// decoding the declared character encoding into UTF-8, and tokenizing
// each physical record into fields. Readers are pluggable through
// [Factory]; [Positional] and [Headed] cover the common cases.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Line is one record produced by a Reader.
type Line struct {
	Number int               // 1-based line in the file where the record starts
	Fields []string          // Values in column order
	Named  map[string]string // Header name -> value; nil for positional readers
}

// At returns the value at a zero-based position.
func (l Line) At(i int) (string, bool) {
	if i < 0 || i >= len(l.Fields) {
		return "", false
	}
	return l.Fields[i], true
}

// Get returns the value stored under a header name.
func (l Line) Get(name string) (string, bool) {
	v, ok := l.Named[name]
	return v, ok
}

// Reader yields lines until it returns io.EOF.
type Reader interface {
	Next() (Line, error)
}

// Factory builds a Reader over decoded text using the given delimiter.
type Factory func(r io.Reader, delimiter rune) (Reader, error)

// ErrBadDelimiter is returned for delimiters encoding/csv cannot use.
var ErrBadDelimiter = errors.New("source: invalid delimiter")

// CheckDelimiter reports whether encoding/csv accepts d as a field separator.
func CheckDelimiter(d rune) error {
	if d == 0 || d == '"' || d == '\r' || d == '\n' || !utf8.ValidRune(d) || d == utf8.RuneError {
		return fmt.Errorf("%w: %q", ErrBadDelimiter, d)
	}
	return nil
}

// ParseDelimiter converts a configured delimiter to a rune. Empty means ','
// and "tab" or `\t` mean a tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: %q is not a single character", ErrBadDelimiter, s)
	}
	d, _ := utf8.DecodeRuneInString(s)
	if err := CheckDelimiter(d); err != nil {
		return 0, err
	}
	return d, nil
}

func newCSV(r io.Reader, delimiter rune) (*csv.Reader, error) {
	if err := CheckDelimiter(delimiter); err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	return cr, nil
}

type positional struct {
	cr *csv.Reader
}

// Positional yields every record as an ordered field slice.
func Positional(r io.Reader, delimiter rune) (Reader, error) {
	cr, err := newCSV(r, delimiter)
	if err != nil {
		return nil, err
	}
	return &positional{cr: cr}, nil
}

func (p *positional) Next() (Line, error) {
	record, err := p.cr.Read()
	if err != nil {
		return Line{}, err
	}
	n, _ := p.cr.FieldPos(0)
	return Line{Number: n, Fields: record}, nil
}

type headed struct {
	cr     *csv.Reader
	header []string
	done   bool
}

// Headed treats the first record as the header and yields each following
// record keyed by header name. Values missing from a short record are absent
// from Named, not empty.
func Headed(r io.Reader, delimiter rune) (Reader, error) {
	cr, err := newCSV(r, delimiter)
	if err != nil {
		return nil, err
	}
	return &headed{cr: cr}, nil
}

func (h *headed) Next() (Line, error) {
	if h.header == nil {
		if h.done {
			return Line{}, io.EOF
		}
		header, err := h.cr.Read()
		if err != nil {
			h.done = true
			return Line{}, err
		}
		h.header = make([]string, len(header))
		for i, name := range header {
			h.header[i] = strings.TrimSpace(name)
		}
	}

	record, err := h.cr.Read()
	if err != nil {
		return Line{}, err
	}
	n, _ := h.cr.FieldPos(0)

	named := make(map[string]string, len(h.header))
	for i, name := range h.header {
		if i >= len(record) {
			break
		}
		if _, dup := named[name]; dup {
			continue // first column wins on duplicate header names
		}
		named[name] = record[i]
	}
	return Line{Number: n, Fields: record, Named: named}, nil
}
