package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/source"
	"github.com/JonMunkholm/csvload/internal/store"
)

// Defaults fill in settings a document leaves unset.
type Defaults struct {
	Encoding      string
	Delimiter     string
	Header        bool
	CarryBindings bool
	InvalidUTF8   string
}

// Build turns the document into a FileLoader whose line loaders persist
// through adapters from factory.
func (d Document) Build(factory store.Factory, def Defaults) (*core.FileLoader, error) {
	if factory == nil {
		return nil, fmt.Errorf("schema: %s: nil adapter factory", d.Key)
	}

	loaders := make([]*core.LineLoader, 0, len(d.Loaders))
	for i, decl := range d.Loaders {
		l, err := decl.build(factory)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: loader %d: %w", d.Key, i, err)
		}
		loaders = append(loaders, l)
	}

	f := core.NewFileLoader(d.Key, loaders...)

	f.Encoding = firstNonEmpty(d.Encoding, def.Encoding)

	delim, err := source.ParseDelimiter(firstNonEmpty(d.Delimiter, def.Delimiter))
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", d.Key, err)
	}
	f.Delimiter = delim

	f.Header = def.Header
	if d.Header != nil {
		f.Header = *d.Header
	}
	f.CarryBindings = def.CarryBindings
	if d.CarryBindings != nil {
		f.CarryBindings = *d.CarryBindings
	}

	mode, err := source.ParseInvalidUTF8(firstNonEmpty(d.InvalidUTF8, def.InvalidUTF8))
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", d.Key, err)
	}
	f.InvalidUTF8 = mode

	if err := f.Check(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return f, nil
}

func (l Loader) build(factory store.Factory) (*core.LineLoader, error) {
	table := firstNonEmpty(l.Table, l.Name)
	adapter, err := factory(store.Table{Name: table, PrimaryKey: l.PrimaryKey, Columns: l.Columns})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name, err)
	}

	spec := core.LineLoaderSpec{
		Name:     l.Name,
		Unique:   l.Unique,
		Requires: l.Requires,
		Fields:   make([]core.FieldSpec, 0, len(l.Fields)),
		Clean:    make(map[string]core.CleanFunc),
	}

	for target, names := range l.Clean {
		fn, err := cleaner(names)
		if err != nil {
			return nil, fmt.Errorf("%s: clean %s: %w", l.Name, target, err)
		}
		spec.Clean[target] = fn
	}

	for _, decl := range l.Fields {
		field, err := decl.build()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.Name, err)
		}
		spec.Fields = append(spec.Fields, field)

		if len(decl.Clean) == 0 {
			continue
		}
		if _, dup := spec.Clean[decl.Target]; dup {
			return nil, fmt.Errorf("%s: field %q has clean functions at both loader and field level", l.Name, decl.Target)
		}
		fn, err := cleaner(decl.Clean)
		if err != nil {
			return nil, fmt.Errorf("%s: field %q: %w", l.Name, decl.Target, err)
		}
		spec.Clean[decl.Target] = fn
	}

	return core.NewLineLoader(spec, adapter)
}

func (f Field) build() (core.FieldSpec, error) {
	spec := core.FieldSpec{
		Target:   f.Target,
		Index:    f.Index,
		Source:   f.Source,
		Required: f.Required == nil || *f.Required,
	}

	if f.Type != "" {
		c, ok := core.Coercions[strings.ToLower(f.Type)]
		if !ok {
			return core.FieldSpec{}, fmt.Errorf("field %q: unknown type %q", f.Target, f.Type)
		}
		spec.Type = c
	}
	if f.Nullable {
		if spec.Type == nil {
			spec.Type = core.String
		}
		spec.Type = core.Nullable(spec.Type)
	}

	if f.Validate != "" {
		spec.Validators = append(spec.Validators, core.Tag(f.Validate))
	}
	if len(f.OneOf) > 0 {
		spec.Validators = append(spec.Validators, core.OneOf(f.OneOf...))
	}
	if f.MaxLen > 0 {
		spec.Validators = append(spec.Validators, core.MaxLen(f.MaxLen))
	}
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return core.FieldSpec{}, fmt.Errorf("field %q: pattern: %w", f.Target, err)
		}
		spec.Validators = append(spec.Validators, core.Matches(re))
	}

	if err := spec.Check(); err != nil {
		return core.FieldSpec{}, err
	}
	return spec, nil
}

func cleaner(names []string) (core.CleanFunc, error) {
	fns := make([]core.CleanFunc, 0, len(names))
	for _, name := range names {
		fn, ok := core.Cleaners[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown clean function %q", name)
		}
		fns = append(fns, fn)
	}
	if len(fns) == 1 {
		return fns[0], nil
	}
	return core.Chain(fns...), nil
}

// RegisterAll builds every document and registers the result.
func RegisterAll(reg *core.Registry, docs []Document, factory store.Factory, def Defaults) error {
	for _, doc := range docs {
		f, err := doc.Build(factory, def)
		if err != nil {
			return err
		}
		if err := reg.Register(f); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
