package source

// streaming.go provides the io.Reader wrappers applied before tokenizing:
//
//   - SkipBOM: drops a leading UTF-8 byte order mark (Windows exports)
//   - UTF8Reader: validates UTF-8, failing or replacing invalid bytes
//   - CountingReader: tracks bytes consumed for progress reporting
//
// None of them buffer more than a rune beyond what the caller asks for.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type bomReader struct {
	r       *bufio.Reader
	checked bool
}

// SkipBOM wraps r and discards a UTF-8 BOM if the stream starts with one.
func SkipBOM(r io.Reader) io.Reader {
	return &bomReader{r: bufio.NewReader(r)}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		// Peek fails on streams shorter than the BOM; those cannot carry one.
		if head, err := b.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// InvalidUTF8 selects how UTF8Reader treats bytes that are not valid UTF-8.
type InvalidUTF8 string

const (
	// Strict stops the read with an *EncodingError.
	Strict InvalidUTF8 = "strict"
	// Replace substitutes '?' for each invalid byte and keeps going.
	Replace InvalidUTF8 = "replace"
)

// ParseInvalidUTF8 converts a config value into a mode. Empty means Strict.
func ParseInvalidUTF8(s string) (InvalidUTF8, error) {
	switch InvalidUTF8(s) {
	case "", Strict:
		return Strict, nil
	case Replace:
		return Replace, nil
	default:
		return "", fmt.Errorf("source: unknown invalid-utf8 mode %q (want strict or replace)", s)
	}
}

// ErrInvalidUTF8 is wrapped by the EncodingError a strict UTF8Reader returns.
var ErrInvalidUTF8 = errors.New("invalid utf-8 sequence")

// UTF8Reader checks a UTF-8 stream rune by rune.
//
// Replacement uses '?' rather than U+FFFD so the output never grows beyond
// the input.
type UTF8Reader struct {
	br     *bufio.Reader
	mode   InvalidUTF8
	offset int64  // input bytes consumed
	pend   []byte // encoded bytes that did not fit the caller's buffer
	err    error  // sticky
}

// NewUTF8Reader wraps r. A zero mode is treated as Strict.
func NewUTF8Reader(r io.Reader, mode InvalidUTF8) *UTF8Reader {
	if mode == "" {
		mode = Strict
	}
	return &UTF8Reader{br: bufio.NewReader(r), mode: mode}
}

// Read implements io.Reader.
func (u *UTF8Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, u.pend)
	u.pend = u.pend[n:]

	var buf [utf8.UTFMax]byte
	for n < len(p) && u.err == nil {
		r, size, err := u.br.ReadRune()
		if err != nil {
			u.err = err
			break
		}

		var enc []byte
		if r == utf8.RuneError && size == 1 {
			if u.mode == Strict {
				u.err = &EncodingError{Encoding: "utf-8", Offset: u.offset, Err: ErrInvalidUTF8}
				break
			}
			buf[0] = '?'
			enc = buf[:1]
		} else {
			enc = buf[:utf8.EncodeRune(buf[:], r)]
		}
		u.offset += int64(size)

		c := copy(p[n:], enc)
		n += c
		if c < len(enc) {
			u.pend = append(u.pend[:0], enc[c:]...)
		}
	}

	if n > 0 {
		return n, nil
	}
	return 0, u.err
}

// CountingReader tracks bytes read from the underlying reader.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

// NewCountingReader wraps r with an optional known total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}
