package memstore

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/csvload/internal/core"
)

func TestStore_CreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	s := New().Table("items")

	rec, err := s.Create(ctx, core.Attrs{"name": "a", "amount": 1})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	created := rec.(*Record)
	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}

	found, ok, err := s.Find(ctx, core.Attrs{"name": "a"})
	if err != nil || !ok {
		t.Fatalf("Find() = %v, %v, %v", found, ok, err)
	}
	if found != created {
		t.Error("Find() returned a different record")
	}

	if _, ok, _ := s.Find(ctx, core.Attrs{"name": "b"}); ok {
		t.Error("Find(name=b) found a record")
	}
	if _, ok, _ := s.Find(ctx, core.Attrs{"missing": "a"}); ok {
		t.Error("Find on an absent attribute found a record")
	}

	if err := s.Update(ctx, found, core.Attrs{"amount": 5}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if diff := cmp.Diff(core.Attrs{"name": "a", "amount": 5}, created.Attrs); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_CreateCopiesAttrs(t *testing.T) {
	s := New().Table("items")
	attrs := core.Attrs{"name": "a"}
	rec, _ := s.Create(context.Background(), attrs)
	attrs["name"] = "changed"

	if got := rec.(*Record).Attrs["name"]; got != "a" {
		t.Errorf("stored name = %v, want a", got)
	}
}

func TestStore_FindByRecordReference(t *testing.T) {
	ctx := context.Background()
	db := New()
	customers := db.Table("customers")
	orders := db.Table("orders")

	ann, _ := customers.Create(ctx, core.Attrs{"email": "ann@example.com"})
	bob, _ := customers.Create(ctx, core.Attrs{"email": "bob@example.com"})
	if _, err := orders.Create(ctx, core.Attrs{"customer": ann, "number": "1"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, ok, _ := orders.Find(ctx, core.Attrs{"customer": ann, "number": "1"}); !ok {
		t.Error("Find by the same customer record failed")
	}
	if _, ok, _ := orders.Find(ctx, core.Attrs{"customer": bob, "number": "1"}); ok {
		t.Error("Find by a different customer record matched")
	}
}

func TestStore_UpdateRejectsForeignRecords(t *testing.T) {
	ctx := context.Background()
	db := New()
	rec, _ := db.Table("a").Create(ctx, core.Attrs{})

	tests := []struct {
		name string
		rec  core.Record
		want string
	}{
		{"wrong type", "not a record", "unexpected record type"},
		{"other table", rec, "not in table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Table("b").Update(ctx, tt.rec, core.Attrs{"x": 1})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Update() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDB_Tables(t *testing.T) {
	db := New()
	first := db.Table("orders")
	db.Table("customers")

	if db.Table("orders") != first {
		t.Error("Table() returned a new store for an existing name")
	}
	if diff := cmp.Diff([]string{"customers", "orders"}, db.Tables()); diff != "" {
		t.Errorf("Tables() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_WithLineLoader(t *testing.T) {
	s := New().Table("items")
	f := core.NewFileLoader("items", core.MustLineLoader(core.LineLoaderSpec{
		Name:   "item",
		Fields: []core.FieldSpec{core.Column("name", 0), core.Column("amount", 1).As(core.Int)},
		Unique: []string{"name"},
	}, s))

	input := "a,1\nb,2\na,3\n"
	res, err := f.RunReader(context.Background(), "inline", strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("RunReader() error: %v", err)
	}
	if res.Created != 2 || res.Updated != 1 {
		t.Errorf("Result = %+v, want 2 created 1 updated", res)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got := s.All()[0].Attrs["amount"]; got != 3 {
		t.Errorf("a.amount = %v, want 3", got)
	}
}
