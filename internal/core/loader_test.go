package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/csvload/internal/source"
)

// fakeRecord is a pointer-identity record used by the call-logging adapter.
type fakeRecord struct {
	ID    int
	Attrs Attrs
}

// callLog records adapter calls in order.
type callLog struct {
	calls   []string
	records []*fakeRecord
}

// adapter returns an AdapterFuncs that finds records whose attributes match
// the key, creates pointer records and merges updates.
func (c *callLog) adapter() AdapterFuncs {
	return AdapterFuncs{
		FindFunc: func(_ context.Context, key Attrs) (Record, bool, error) {
			c.calls = append(c.calls, "find")
			for _, r := range c.records {
				match := true
				for k, v := range key {
					if r.Attrs[k] != v {
						match = false
						break
					}
				}
				if match {
					return r, true, nil
				}
			}
			return nil, false, nil
		},
		CreateFunc: func(_ context.Context, attrs Attrs) (Record, error) {
			c.calls = append(c.calls, "create")
			r := &fakeRecord{ID: len(c.records) + 1, Attrs: attrs}
			c.records = append(c.records, r)
			return r, nil
		},
		UpdateFunc: func(_ context.Context, rec Record, attrs Attrs) error {
			c.calls = append(c.calls, "update")
			r := rec.(*fakeRecord)
			for k, v := range attrs {
				r.Attrs[k] = v
			}
			return nil
		},
	}
}

func TestNewLineLoader_Rejects(t *testing.T) {
	store := AdapterFuncs{}
	tests := []struct {
		name  string
		spec  LineLoaderSpec
		store Adapter
		want  string
	}{
		{"empty name", LineLoaderSpec{}, store, "empty name"},
		{"nil adapter", LineLoaderSpec{Name: "a"}, nil, "nil adapter"},
		{"bad field", LineLoaderSpec{Name: "a", Fields: []FieldSpec{{Target: "x"}}}, store, "index or source"},
		{"duplicate field", LineLoaderSpec{Name: "a", Fields: []FieldSpec{Column("x", 0), Column("x", 1)}}, store, "duplicate field"},
		{"unknown unique", LineLoaderSpec{Name: "a", Fields: []FieldSpec{Column("x", 0)}, Unique: []string{"y"}}, store, "unique attribute"},
		{"unknown clean", LineLoaderSpec{Name: "a", Fields: []FieldSpec{Column("x", 0)}, Clean: map[string]CleanFunc{"y": Trim}}, store, "unknown field"},
		{"nil clean", LineLoaderSpec{Name: "a", Fields: []FieldSpec{Column("x", 0)}, Clean: map[string]CleanFunc{"x": nil}}, store, "nil clean"},
		{"empty requires", LineLoaderSpec{Name: "a", Requires: []string{""}}, store, "empty required binding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineLoader(tt.spec, tt.store)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("NewLineLoader() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestNewLineLoader_UniqueFromRequires(t *testing.T) {
	_, err := NewLineLoader(LineLoaderSpec{
		Name:     "order",
		Fields:   []FieldSpec{Column("number", 0)},
		Unique:   []string{"customer", "number"},
		Requires: []string{"customer"},
	}, AdapterFuncs{})
	if err != nil {
		t.Fatalf("NewLineLoader() error: %v", err)
	}
}

func TestLineLoader_CreatesOnceWhenNotFound(t *testing.T) {
	log := &callLog{}
	l := MustLineLoader(LineLoaderSpec{
		Name:   "item",
		Fields: []FieldSpec{Column("name", 0), Column("amount", 1).As(Int)},
		Unique: []string{"name"},
	}, log.adapter())

	b := Bindings{}
	out, err := l.Load(context.Background(), source.Line{Number: 1, Fields: []string{"a", "1"}}, b)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if diff := cmp.Diff([]string{"find", "create"}, log.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if out.Action != ActionCreated {
		t.Errorf("Action = %q, want %q", out.Action, ActionCreated)
	}
	if b["item"] != log.records[0] || out.Record != log.records[0] {
		t.Error("created record not published")
	}
	if diff := cmp.Diff(Attrs{"name": "a", "amount": 1}, log.records[0].Attrs); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
}

func TestLineLoader_UpdatePreservesIdentity(t *testing.T) {
	existing := &fakeRecord{ID: 42, Attrs: Attrs{"name": "a", "amount": 0}}
	log := &callLog{records: []*fakeRecord{existing}}
	l := MustLineLoader(LineLoaderSpec{
		Name:   "item",
		Fields: []FieldSpec{Column("name", 0), Column("amount", 1).As(Int)},
		Unique: []string{"name"},
	}, log.adapter())

	b := Bindings{}
	out, err := l.Load(context.Background(), source.Line{Number: 1, Fields: []string{"a", "9"}}, b)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if diff := cmp.Diff([]string{"find", "update"}, log.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if out.Action != ActionUpdated {
		t.Errorf("Action = %q, want %q", out.Action, ActionUpdated)
	}
	if b["item"] != existing {
		t.Errorf("published %v, want the existing record", b["item"])
	}
	if existing.Attrs["amount"] != 9 {
		t.Errorf("amount = %v, want 9", existing.Attrs["amount"])
	}
}

func TestLineLoader_NoUniqueAlwaysCreates(t *testing.T) {
	log := &callLog{}
	l := MustLineLoader(LineLoaderSpec{
		Name:   "event",
		Fields: []FieldSpec{Column("name", 0)},
	}, log.adapter())

	for i := 0; i < 2; i++ {
		if _, err := l.Load(context.Background(), source.Line{Fields: []string{"same"}}, Bindings{}); err != nil {
			t.Fatalf("Load() error: %v", err)
		}
	}
	if diff := cmp.Diff([]string{"create", "create"}, log.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLineLoader_RequiresAndPublishing(t *testing.T) {
	customers := &callLog{}
	orders := &callLog{}

	customer := MustLineLoader(LineLoaderSpec{
		Name:   "customer",
		Fields: []FieldSpec{Column("email", 0)},
		Unique: []string{"email"},
	}, customers.adapter())
	order := MustLineLoader(LineLoaderSpec{
		Name:     "order",
		Fields:   []FieldSpec{Column("number", 1)},
		Requires: []string{"customer"},
	}, orders.adapter())

	line := source.Line{Number: 1, Fields: []string{"ann@example.com", "A-1"}}
	ctx := context.Background()

	t.Run("producer first", func(t *testing.T) {
		b := Bindings{}
		if _, err := customer.Load(ctx, line, b); err != nil {
			t.Fatalf("customer.Load() error: %v", err)
		}
		if _, err := order.Load(ctx, line, b); err != nil {
			t.Fatalf("order.Load() error: %v", err)
		}
		got := orders.records[0].Attrs["customer"]
		if got != customers.records[0] {
			t.Errorf("order.customer = %v, want the customer record", got)
		}
	})

	t.Run("consumer first", func(t *testing.T) {
		_, err := order.Load(ctx, line, Bindings{})
		var mce MissingContextError
		if !errors.As(err, &mce) {
			t.Fatalf("error = %v, want MissingContextError", err)
		}
		if diff := cmp.Diff(MissingContextError{Loader: "order", Name: "customer"}, mce); diff != "" {
			t.Errorf("MissingContextError mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestLineLoader_CleanAppliedBeforeCoercion(t *testing.T) {
	log := &callLog{}
	l := MustLineLoader(LineLoaderSpec{
		Name:   "item",
		Fields: []FieldSpec{Column("code", 0), Column("qty", 1).As(Int)},
		Clean: map[string]CleanFunc{
			"code": Chain(Trim, Upper),
			"qty":  CleanCell,
		},
	}, log.adapter())

	if _, err := l.Load(context.Background(), source.Line{Fields: []string{" ab ", `="007"`}}, Bindings{}); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(Attrs{"code": "AB", "qty": 7}, log.records[0].Attrs); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
}

func TestLineLoader_AdapterErrorsReturnedUnchanged(t *testing.T) {
	boom := errors.New("boom")
	l := MustLineLoader(LineLoaderSpec{
		Name:   "item",
		Fields: []FieldSpec{Column("name", 0)},
		Unique: []string{"name"},
	}, AdapterFuncs{
		FindFunc: func(context.Context, Attrs) (Record, bool, error) { return nil, false, boom },
	})

	_, err := l.Load(context.Background(), source.Line{Fields: []string{"a"}}, Bindings{})
	if err != boom {
		t.Errorf("error = %v, want the adapter's error unchanged", err)
	}
}

func TestLineLoader_FieldErrorStopsBeforeAdapter(t *testing.T) {
	log := &callLog{}
	l := MustLineLoader(LineLoaderSpec{
		Name:   "item",
		Fields: []FieldSpec{Column("amount", 0).As(Int)},
		Unique: []string{"amount"},
	}, log.adapter())

	_, err := l.Load(context.Background(), source.Line{Fields: []string{"x"}}, Bindings{})
	if !errors.Is(err, ErrCoercion) {
		t.Fatalf("error = %v, want ErrCoercion", err)
	}
	if len(log.calls) != 0 {
		t.Errorf("adapter called %v after a field error", log.calls)
	}
}
