package source

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is wrapped when an encoding name cannot be resolved.
var ErrUnknownEncoding = errors.New("unknown encoding")

// EncodingError reports a source that cannot be decoded.
type EncodingError struct {
	Encoding string
	Offset   int64 // byte offset of the first bad byte; -1 when not applicable
	Err      error
}

func (e *EncodingError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("encoding error: %s: %v at byte %d", e.Encoding, e.Err, e.Offset)
	}
	return fmt.Sprintf("encoding error: %s: %v", e.Encoding, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Lookup resolves an IANA or common encoding name. Empty means UTF-8.
func Lookup(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return nil, &EncodingError{Encoding: name, Offset: -1, Err: fmt.Errorf("%w: %v", ErrUnknownEncoding, err)}
	}
	if enc == nil {
		// Registered with IANA but not implemented by x/text.
		return nil, &EncodingError{Encoding: name, Offset: -1, Err: ErrUnknownEncoding}
	}
	return enc, nil
}

// Decode returns a reader producing UTF-8 text from r.
//
// UTF-8 input has its BOM stripped and is validated according to mode.
// Other encodings are transcoded by x/text, which maps undecodable bytes
// to U+FFFD.
func Decode(r io.Reader, name string, mode InvalidUTF8) (io.Reader, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if enc == unicode.UTF8 {
		return NewUTF8Reader(SkipBOM(r), mode), nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
