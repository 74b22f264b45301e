package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/csvload/internal/source"
)

func TestFieldSpec_Check(t *testing.T) {
	tests := []struct {
		name    string
		spec    FieldSpec
		wantErr error
		ok      bool
	}{
		{name: "positional", spec: Column("a", 0), ok: true},
		{name: "named", spec: Named("a", "A"), ok: true},
		{name: "no locator", spec: FieldSpec{Target: "a"}, wantErr: ErrNoLocator},
		{name: "two locators", spec: FieldSpec{Target: "a", Index: Pos(0), Source: "A"}, wantErr: ErrTwoLocators},
		{name: "empty target", spec: FieldSpec{Index: Pos(0)}},
		{name: "negative index", spec: FieldSpec{Target: "a", Index: Pos(-1)}},
		{name: "nil validator", spec: Column("a", 0).With(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Check()
			if tt.ok {
				if err != nil {
					t.Fatalf("Check() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Check() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFieldSpec_Evaluate_Missing(t *testing.T) {
	line := source.Line{Number: 1, Fields: []string{"x"}}

	_, err := Column("amount", 3).Evaluate(line, nil)
	var dfe DataFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("required missing: error = %v, want DataFormatError", err)
	}
	if dfe.Field != "amount" || !errors.Is(err, ErrFieldMissing) {
		t.Errorf("required missing: got %+v", dfe)
	}

	got, err := Column("note", 3).Optional().Evaluate(line, nil)
	if err != nil || got != "" {
		t.Errorf("optional missing = %v, %v; want \"\", nil", got, err)
	}
}

func TestFieldSpec_Evaluate_OptionalMissingIsCoercedEmpty(t *testing.T) {
	line := source.Line{Number: 1}
	coerce := func(s string) (any, error) { return "coerced:" + s, nil }

	got, err := Column("v", 0).Optional().As(coerce).Evaluate(line, nil)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	want, _ := coerce("")
	if got != want {
		t.Errorf("Evaluate() = %v, want %v", got, want)
	}
}

func TestFieldSpec_Evaluate_Named(t *testing.T) {
	line := source.Line{
		Number: 2,
		Fields: []string{"Ann", "5"},
		Named:  map[string]string{"Name": "Ann", "Qty": "5"},
	}

	got, err := Named("qty", "Qty").As(Int).Evaluate(line, nil)
	if err != nil || got != 5 {
		t.Errorf("Evaluate() = %v, %v; want 5, nil", got, err)
	}

	_, err = Named("price", "Price").Evaluate(line, nil)
	if !errors.Is(err, ErrFieldMissing) {
		t.Errorf("missing header: error = %v, want ErrFieldMissing", err)
	}
}

func TestFieldSpec_Evaluate_ValidatorOrder(t *testing.T) {
	var calls []string
	mk := func(name string, fail bool) Validator {
		return func(string) error {
			calls = append(calls, name)
			if fail {
				return errors.New(name + " rejected")
			}
			return nil
		}
	}

	spec := Column("a", 0).With(mk("first", false), mk("second", true), mk("third", false))
	_, err := spec.Evaluate(source.Line{Fields: []string{"v"}}, nil)

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	want := ValidationError{Field: "a", Value: "v", Message: "second rejected"}
	if diff := cmp.Diff(want, ve); diff != "" {
		t.Errorf("ValidationError mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"first", "second"}, calls); diff != "" {
		t.Errorf("validator calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldSpec_Evaluate_ValidatorSeesRawValue(t *testing.T) {
	var seen string
	spec := Column("a", 0).
		With(func(s string) error { seen = s; return nil }).
		As(Int)

	got, err := spec.Evaluate(source.Line{Fields: []string{" 12 "}}, Trim)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if seen != " 12 " {
		t.Errorf("validator saw %q, want raw %q", seen, " 12 ")
	}
	if got != 12 {
		t.Errorf("Evaluate() = %v, want 12", got)
	}
}

func TestFieldSpec_Evaluate_CoercionFailure(t *testing.T) {
	_, err := Column("amount", 0).As(Int).Evaluate(source.Line{Fields: []string{"ten"}}, nil)

	var dfe DataFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("error = %v, want DataFormatError", err)
	}
	if !errors.Is(err, ErrCoercion) {
		t.Errorf("error = %v, want ErrCoercion in chain", err)
	}
	if dfe.Value != "ten" || dfe.Field != "amount" {
		t.Errorf("DataFormatError = %+v", dfe)
	}
}

func TestFieldSpec_ChainingDoesNotAlias(t *testing.T) {
	base := Column("a", 0).With(NotEmpty)
	one := base.With(MaxLen(1))
	two := base.With(MaxLen(2))

	if len(base.Validators) != 1 || len(one.Validators) != 2 || len(two.Validators) != 2 {
		t.Fatalf("validator counts = %d, %d, %d", len(base.Validators), len(one.Validators), len(two.Validators))
	}
	if _, err := one.Evaluate(source.Line{Fields: []string{"ab"}}, nil); err == nil {
		t.Error("MaxLen(1) accepted \"ab\"")
	}
	if _, err := two.Evaluate(source.Line{Fields: []string{"ab"}}, nil); err != nil {
		t.Errorf("MaxLen(2) rejected \"ab\": %v", err)
	}
}
