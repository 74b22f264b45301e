package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvload/internal/logging"
	"github.com/JonMunkholm/csvload/internal/source"
)

// ContextCheckInterval is how often (in lines) a run checks for cancellation.
// Values below 1 check on every line.
var ContextCheckInterval = 100

// Hooks are optional extension points around a run. A hook returning an
// error stops the run with that error.
type Hooks struct {
	BeforeFile func(ctx context.Context, file string) error
	BeforeLine func(ctx context.Context, line source.Line) error
	AfterLine  func(ctx context.Context, line source.Line, b Bindings) error
	AfterFile  func(ctx context.Context, res Result) error
}

// Counts tallies one loader's outcomes.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Result summarizes a file run. On error it reflects the lines completed
// before the failing one.
type Result struct {
	RunID     string            `json:"runId"`
	Key       string            `json:"key"`
	File      string            `json:"file"`
	Lines     int               `json:"lines"`
	Created   int               `json:"created"`
	Updated   int               `json:"updated"`
	Bytes     int64             `json:"bytes"`
	PerLoader map[string]Counts `json:"perLoader"`
	StartedAt time.Time         `json:"startedAt"`
	Duration  time.Duration     `json:"duration"`
}

func (r *Result) add(out Outcome) {
	c := r.PerLoader[out.Loader]
	switch out.Action {
	case ActionCreated:
		c.Created++
		r.Created++
	case ActionUpdated:
		c.Updated++
		r.Updated++
	}
	r.PerLoader[out.Loader] = c
}

// FileLoader streams a delimited file and runs its line loaders against
// every line. Configure it before the first Run; a configured FileLoader is
// safe for concurrent runs as long as its adapters are.
type FileLoader struct {
	Key     string
	Loaders []*LineLoader

	Encoding    string             // IANA name; empty means UTF-8
	Delimiter   rune               // zero means ','
	Header      bool               // first record names the columns
	Reader      source.Factory     // overrides Header when set
	InvalidUTF8 source.InvalidUTF8 // UTF-8 sources only; zero means strict

	// CarryBindings starts each line from the previous line's bindings
	// instead of a fresh copy of the initial ones.
	CarryBindings bool

	Hooks Hooks
}

// NewFileLoader returns a FileLoader with default settings.
func NewFileLoader(key string, loaders ...*LineLoader) *FileLoader {
	return &FileLoader{Key: key, Loaders: loaders}
}

// Check reports configuration errors that would fail every run.
func (f *FileLoader) Check() error {
	if len(f.Loaders) == 0 {
		return fmt.Errorf("file loader %q: no line loaders", f.Key)
	}
	names := make(map[string]bool, len(f.Loaders))
	for i, l := range f.Loaders {
		if l == nil {
			return fmt.Errorf("file loader %q: line loader %d is nil", f.Key, i)
		}
		if names[l.Name()] {
			return fmt.Errorf("file loader %q: duplicate line loader %q", f.Key, l.Name())
		}
		names[l.Name()] = true
	}
	if _, err := source.Lookup(f.Encoding); err != nil {
		return fmt.Errorf("file loader %q: %w", f.Key, err)
	}
	return nil
}

func (f *FileLoader) delimiter() rune {
	if f.Delimiter == 0 {
		return ','
	}
	return f.Delimiter
}

func (f *FileLoader) factory() source.Factory {
	switch {
	case f.Reader != nil:
		return f.Reader
	case f.Header:
		return source.Headed
	default:
		return source.Positional
	}
}

// Run loads the file at path. initial seeds every line's bindings and is
// never modified.
func (f *FileLoader) Run(ctx context.Context, path string, initial Bindings) (Result, error) {
	return f.run(ctx, filepath.Base(path), func() (io.ReadCloser, int64, error) {
		file, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		var size int64
		if info, err := file.Stat(); err == nil {
			size = info.Size()
		}
		return file, size, nil
	}, initial)
}

// RunReader loads from r. name identifies the input in results and logs.
func (f *FileLoader) RunReader(ctx context.Context, name string, r io.Reader, initial Bindings) (Result, error) {
	return f.run(ctx, name, func() (io.ReadCloser, int64, error) {
		return io.NopCloser(r), 0, nil
	}, initial)
}

func (f *FileLoader) run(
	ctx context.Context,
	name string,
	open func() (io.ReadCloser, int64, error),
	initial Bindings,
) (Result, error) {
	res := Result{
		RunID:     uuid.NewString(),
		Key:       f.Key,
		File:      name,
		PerLoader: make(map[string]Counts, len(f.Loaders)),
		StartedAt: time.Now(),
	}
	logger := logging.WithFields(ctx, "run_id", res.RunID, "loader", f.Key, "file", name)

	finish := func(err error) (Result, error) {
		res.Duration = time.Since(res.StartedAt)
		if err != nil {
			logger.Warn("load failed",
				"lines", res.Lines,
				"kind", string(KindOf(err)),
				"error", err,
			)
		}
		return res, err
	}

	if err := f.Check(); err != nil {
		return finish(err)
	}

	if h := f.Hooks.BeforeFile; h != nil {
		if err := h(ctx, name); err != nil {
			return finish(&HookError{Hook: "before file", Err: err})
		}
	}

	rc, size, err := open()
	if err != nil {
		return finish(&FileError{Op: "open", Name: name, Err: err})
	}
	defer rc.Close()

	counter := source.NewCountingReader(rc, size)
	decoded, err := source.Decode(counter, f.Encoding, f.InvalidUTF8)
	if err != nil {
		return finish(err)
	}
	lines, err := f.factory()(decoded, f.delimiter())
	if err != nil {
		return finish(err)
	}

	logger.Info("load started", "bytes_total", size, "loaders", len(f.Loaders))

	checkEvery := max(ContextCheckInterval, 1)
	var carried Bindings
	for i := 0; ; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return finish(fmt.Errorf("load cancelled after %d lines: %w", res.Lines, err))
			}
		}

		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(&FileError{Op: "read", Name: name, Err: err})
		}

		b := carried
		if b == nil {
			b = initial.Clone()
		}

		if h := f.Hooks.BeforeLine; h != nil {
			if err := h(ctx, line); err != nil {
				return finish(&LineError{Line: line.Number, Err: &HookError{Hook: "before line", Err: err}})
			}
		}

		for _, l := range f.Loaders {
			out, err := l.Load(ctx, line, b)
			if err != nil {
				return finish(&LineError{Line: line.Number, Loader: l.Name(), Err: err})
			}
			res.add(out)
			logger.Debug("line loaded",
				"line", line.Number,
				"line_loader", out.Loader,
				"action", string(out.Action),
			)
		}

		if h := f.Hooks.AfterLine; h != nil {
			if err := h(ctx, line, b); err != nil {
				return finish(&LineError{Line: line.Number, Err: &HookError{Hook: "after line", Err: err}})
			}
		}

		if f.CarryBindings {
			carried = b
		}
		res.Lines++
		res.Bytes = counter.BytesRead
	}
	res.Bytes = counter.BytesRead

	if h := f.Hooks.AfterFile; h != nil {
		res.Duration = time.Since(res.StartedAt)
		if err := h(ctx, res); err != nil {
			return finish(&HookError{Hook: "after file", Err: err})
		}
	}

	res, _ = finish(nil)
	logger.Info("load completed",
		"lines", res.Lines,
		"created", res.Created,
		"updated", res.Updated,
		"bytes", res.Bytes,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
