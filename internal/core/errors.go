package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"

	"github.com/JonMunkholm/csvload/internal/source"
)

var (
	// ErrFieldMissing is wrapped by DataFormatError when a required value is absent.
	ErrFieldMissing = errors.New("field is missing")
	// ErrCoercion is wrapped by DataFormatError when a value cannot be converted.
	ErrCoercion = errors.New("invalid value")
	// ErrUnknownLoader is returned by registry lookups.
	ErrUnknownLoader = errors.New("unknown loader")
)

// DataFormatError reports a required value that is absent or a value that
// cannot be coerced to its declared type.
type DataFormatError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e DataFormatError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s: %q", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e DataFormatError) Unwrap() error { return e.Err }

// MissingContextError reports a loader whose required binding was never
// published. It means the loaders are registered in the wrong order.
type MissingContextError struct {
	Loader string
	Name   string
}

func (e MissingContextError) Error() string {
	return fmt.Sprintf("loader %q requires %q, which no earlier loader published", e.Loader, e.Name)
}

// LineError locates a failure within a file run.
type LineError struct {
	Line   int
	Loader string
	Err    error
}

func (e *LineError) Error() string {
	if e.Loader == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Loader, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// HookError reports an error returned by one of the FileLoader hooks.
type HookError struct {
	Hook string // "before file", "before line", "after line" or "after file"
	Err  error
}

func (e *HookError) Error() string { return e.Hook + ": " + e.Err.Error() }

func (e *HookError) Unwrap() error { return e.Err }

// FileError reports a failure opening or reading the input.
type FileError struct {
	Op   string // "open" or "read"
	Name string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// ErrorKind classifies a run failure.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindDataFormat     ErrorKind = "data_format"
	KindValidation     ErrorKind = "validation"
	KindMissingContext ErrorKind = "missing_context"
	KindEncoding       ErrorKind = "encoding"
	KindFile           ErrorKind = "file"
	KindHook           ErrorKind = "hook"
	KindCancelled      ErrorKind = "cancelled"
	KindStore          ErrorKind = "store"
	KindUnknown        ErrorKind = "unknown"
)

// KindOf classifies err. Errors a line loader returns that are not one of the
// core kinds are attributed to the store, since the adapter is the only other
// thing a line loader calls.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		dfe  DataFormatError
		ve   ValidationError
		mce  MissingContextError
		ence *source.EncodingError
		he   *HookError
		le   *LineError
		pe   *csv.ParseError
		fe   *FileError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &dfe):
		return KindDataFormat
	case errors.As(err, &mce):
		return KindMissingContext
	case errors.As(err, &ence):
		return KindEncoding
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.As(err, &he):
		return KindHook
	case errors.As(err, &le) && le.Loader != "":
		return KindStore
	case errors.As(err, &pe), errors.As(err, &fe), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return KindFile
	default:
		return KindUnknown
	}
}

// IsDataError reports whether err was caused by the content of the input
// rather than by the environment. Callers implementing skip-and-continue
// typically skip only these.
func IsDataError(err error) bool {
	switch KindOf(err) {
	case KindDataFormat, KindValidation:
		return true
	}
	return false
}
