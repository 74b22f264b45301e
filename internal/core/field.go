package core

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvload/internal/source"
)

// FieldSpec declares how one attribute is read from a line.
//
// Exactly one of Index or Source must be set. Build specs with [Column] or
// [Named] and refine them with the chaining helpers:
//
//	core.Column("amount", 1).As(core.Int)
//	core.Named("email", "E-mail").Optional().With(core.Tag("email"))
type FieldSpec struct {
	Target     string      // Attribute name in the line's data
	Index      *int        // Zero-based column position
	Source     string      // Header name (requires a headed reader)
	Required   bool        // Missing value is a DataFormatError; otherwise ""
	Validators []Validator // Run in order on the raw value
	Type       Coercion    // Applied last; nil keeps the string
}

// Pos returns a pointer to i for FieldSpec.Index literals.
func Pos(i int) *int { return &i }

// Column declares a required field read by position.
func Column(target string, index int) FieldSpec {
	return FieldSpec{Target: target, Index: Pos(index), Required: true}
}

// Named declares a required field read by header name.
func Named(target, source string) FieldSpec {
	return FieldSpec{Target: target, Source: source, Required: true}
}

// Optional returns a copy that substitutes "" for a missing value.
func (f FieldSpec) Optional() FieldSpec {
	f.Required = false
	return f
}

// As returns a copy coerced with c.
func (f FieldSpec) As(c Coercion) FieldSpec {
	f.Type = c
	return f
}

// With returns a copy with validators appended.
func (f FieldSpec) With(v ...Validator) FieldSpec {
	f.Validators = append(append([]Validator(nil), f.Validators...), v...)
	return f
}

var (
	ErrNoLocator   = errors.New("index or source must be set")
	ErrTwoLocators = errors.New("index and source are both set")
)

// Check reports whether the spec is well formed.
func (f FieldSpec) Check() error {
	switch {
	case f.Target == "":
		return errors.New("field: empty target attribute")
	case f.Index == nil && f.Source == "":
		return fmt.Errorf("field %q: %w", f.Target, ErrNoLocator)
	case f.Index != nil && f.Source != "":
		return fmt.Errorf("field %q: %w", f.Target, ErrTwoLocators)
	case f.Index != nil && *f.Index < 0:
		return fmt.Errorf("field %q: negative index %d", f.Target, *f.Index)
	}
	for i, v := range f.Validators {
		if v == nil {
			return fmt.Errorf("field %q: validator %d is nil", f.Target, i)
		}
	}
	return nil
}

func (f FieldSpec) locator() string {
	if f.Index != nil {
		return fmt.Sprintf("column %d", *f.Index)
	}
	return fmt.Sprintf("column %q", f.Source)
}

func (f FieldSpec) lookup(line source.Line) (string, bool) {
	if f.Index != nil {
		return line.At(*f.Index)
	}
	return line.Get(f.Source)
}

// Evaluate extracts the attribute value from line.
//
// The raw value is validated, then passed through clean (if non-nil), then
// coerced.
func (f FieldSpec) Evaluate(line source.Line, clean CleanFunc) (any, error) {
	raw, ok := f.lookup(line)
	if !ok {
		if f.Required {
			return nil, DataFormatError{
				Field:  f.Target,
				Reason: fmt.Sprintf("field is missing (%s)", f.locator()),
				Err:    ErrFieldMissing,
			}
		}
		raw = ""
	}

	for _, validate := range f.Validators {
		if err := validate(raw); err != nil {
			var ve ValidationError
			if errors.As(err, &ve) {
				if ve.Field == "" {
					ve.Field = f.Target
				}
				return nil, ve
			}
			return nil, ValidationError{Field: f.Target, Value: raw, Message: err.Error()}
		}
	}

	value := raw
	if clean != nil {
		value = clean(value)
	}

	if f.Type == nil {
		return value, nil
	}
	out, err := f.Type(value)
	if err != nil {
		return nil, DataFormatError{
			Field:  f.Target,
			Value:  value,
			Reason: err.Error(),
			Err:    fmt.Errorf("%w: %w", ErrCoercion, err),
		}
	}
	return out, nil
}
