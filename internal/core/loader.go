package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvload/internal/source"
)

// LineLoaderSpec is the declarative schema of one line loader.
type LineLoaderSpec struct {
	// Name is the binding the resulting record is published under.
	Name string
	// Fields are evaluated in order into the line's data.
	Fields []FieldSpec
	// Unique lists the attributes identifying an existing record. Empty
	// means every line creates a new record.
	Unique []string
	// Requires lists bindings copied into the data before fields run.
	Requires []string
	// Clean maps a target attribute to a function applied between
	// validation and coercion.
	Clean map[string]CleanFunc
}

// Action reports what a line loader did with its record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Outcome is the result of loading one line.
type Outcome struct {
	Loader string
	Action Action
	Record Record
}

// LineLoader runs one LineLoaderSpec against lines, persisting through an
// Adapter. It holds no per-line state and may be reused for every line.
type LineLoader struct {
	spec  LineLoaderSpec
	store Adapter
}

// NewLineLoader validates spec and binds it to store.
func NewLineLoader(spec LineLoaderSpec, store Adapter) (*LineLoader, error) {
	if spec.Name == "" {
		return nil, errors.New("line loader: empty name")
	}
	if store == nil {
		return nil, fmt.Errorf("line loader %q: nil adapter", spec.Name)
	}

	produced := make(map[string]bool, len(spec.Fields)+len(spec.Requires))
	for _, name := range spec.Requires {
		if name == "" {
			return nil, fmt.Errorf("line loader %q: empty required binding", spec.Name)
		}
		produced[name] = true
	}
	seen := make(map[string]bool, len(spec.Fields))
	for _, f := range spec.Fields {
		if err := f.Check(); err != nil {
			return nil, fmt.Errorf("line loader %q: %w", spec.Name, err)
		}
		if seen[f.Target] {
			return nil, fmt.Errorf("line loader %q: duplicate field %q", spec.Name, f.Target)
		}
		seen[f.Target] = true
		produced[f.Target] = true
	}
	for _, attr := range spec.Unique {
		if !produced[attr] {
			return nil, fmt.Errorf("line loader %q: unique attribute %q is not produced by any field or requirement", spec.Name, attr)
		}
	}
	for attr, fn := range spec.Clean {
		if !seen[attr] {
			return nil, fmt.Errorf("line loader %q: clean function for unknown field %q", spec.Name, attr)
		}
		if fn == nil {
			return nil, fmt.Errorf("line loader %q: nil clean function for %q", spec.Name, attr)
		}
	}

	spec.Fields = append([]FieldSpec(nil), spec.Fields...)
	spec.Unique = append([]string(nil), spec.Unique...)
	spec.Requires = append([]string(nil), spec.Requires...)
	return &LineLoader{spec: spec, store: store}, nil
}

// MustLineLoader is like NewLineLoader but panics on error.
// Use it for loaders declared at package level.
func MustLineLoader(spec LineLoaderSpec, store Adapter) *LineLoader {
	l, err := NewLineLoader(spec, store)
	if err != nil {
		panic(err)
	}
	return l
}

// Name returns the binding name.
func (l *LineLoader) Name() string { return l.spec.Name }

// Requires returns the bindings the loader reads.
func (l *LineLoader) Requires() []string { return append([]string(nil), l.spec.Requires...) }

// Data builds the line's attributes: required bindings first, then every
// field in declared order. The first failing field stops evaluation.
func (l *LineLoader) Data(line source.Line, b Bindings) (Attrs, error) {
	data := make(Attrs, len(l.spec.Requires)+len(l.spec.Fields))
	for _, name := range l.spec.Requires {
		v, ok := b[name]
		if !ok {
			return nil, MissingContextError{Loader: l.spec.Name, Name: name}
		}
		data[name] = v
	}
	for _, f := range l.spec.Fields {
		v, err := f.Evaluate(line, l.spec.Clean[f.Target])
		if err != nil {
			return nil, err
		}
		data[f.Target] = v
	}
	return data, nil
}

// Key extracts the unique attributes from data.
func (l *LineLoader) Key(data Attrs) Attrs {
	key := make(Attrs, len(l.spec.Unique))
	for _, attr := range l.spec.Unique {
		key[attr] = data[attr]
	}
	return key
}

// Load upserts the record described by line and publishes it into b under
// the loader's name. Adapter errors are returned unchanged.
func (l *LineLoader) Load(ctx context.Context, line source.Line, b Bindings) (Outcome, error) {
	data, err := l.Data(line, b)
	if err != nil {
		return Outcome{}, err
	}

	if len(l.spec.Unique) > 0 {
		rec, found, err := l.store.Find(ctx, l.Key(data))
		if err != nil {
			return Outcome{}, err
		}
		if found {
			if err := l.store.Update(ctx, rec, data); err != nil {
				return Outcome{}, err
			}
			b[l.spec.Name] = rec
			return Outcome{Loader: l.spec.Name, Action: ActionUpdated, Record: rec}, nil
		}
	}

	rec, err := l.store.Create(ctx, data)
	if err != nil {
		return Outcome{}, err
	}
	b[l.spec.Name] = rec
	return Outcome{Loader: l.spec.Name, Action: ActionCreated, Record: rec}, nil
}
