package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/store"
	"github.com/JonMunkholm/csvload/internal/store/memstore"
)

const export = "Customer ID,Customer Name,Email,State,Order Number,Order Date,Amount,Paid\n" +
	"C-1, Ann Lee ,ANN@example.com,california,so-1,2024-03-15,\"$1,200.50\",yes\n" +
	"C-2,Bob,,TX,so-2,03/16/2024,10,\n" +
	"C-1,Ann Lee,ann@example.com,CA,so-3,2024-03-17,5.25,no\n"

func TestRegister(t *testing.T) {
	reg := core.NewRegistry()
	if err := Register(reg, store.Memory(memstore.New())); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if diff := cmp.Diff([]string{"customer_orders"}, reg.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if err := Register(reg, store.Memory(memstore.New())); err == nil {
		t.Error("Register() twice expected duplicate error")
	}
}

func TestRegister_FactoryError(t *testing.T) {
	boom := errors.New("no database")
	factory := func(store.Table) (core.Adapter, error) { return nil, boom }
	if err := Register(core.NewRegistry(), factory); !errors.Is(err, boom) {
		t.Errorf("Register() error = %v, want factory error", err)
	}
}

func TestCustomerOrders(t *testing.T) {
	db := memstore.New()
	f, err := CustomerOrders(store.Memory(db))
	if err != nil {
		t.Fatalf("CustomerOrders() error: %v", err)
	}

	res, err := f.RunReader(context.Background(), "export.csv", strings.NewReader(export), nil)
	if err != nil {
		t.Fatalf("RunReader() error: %v", err)
	}
	want := map[string]core.Counts{
		"customer": {Created: 2, Updated: 1},
		"order":    {Created: 3},
	}
	if diff := cmp.Diff(want, res.PerLoader); diff != "" {
		t.Errorf("PerLoader mismatch (-want +got):\n%s", diff)
	}

	customers := db.Table("customers").All()
	if len(customers) != 2 {
		t.Fatalf("customers = %d, want 2", len(customers))
	}
	ann, bob := customers[0], customers[1]
	if ann.Attrs["state"] != "CA" || ann.Attrs["email"] != "ann@example.com" || ann.Attrs["name"] != "Ann Lee" {
		t.Errorf("ann = %v", ann.Attrs)
	}
	if bob.Attrs["email"] != "" {
		t.Errorf("bob email = %q, want empty", bob.Attrs["email"])
	}

	orders := db.Table("orders").All()
	owners := []*memstore.Record{ann, bob, ann}
	numbers := []string{"SO-1", "SO-2", "SO-3"}
	for i, o := range orders {
		if o.Attrs["customer"] != owners[i] {
			t.Errorf("order %d customer = %v, want record %d", i, o.Attrs["customer"], owners[i].ID)
		}
		if o.Attrs["number"] != numbers[i] {
			t.Errorf("order %d number = %v, want %s", i, o.Attrs["number"], numbers[i])
		}
	}

	if paid := orders[1].Attrs["paid"].(pgtype.Bool); paid.Valid {
		t.Errorf("blank paid = %+v, want NULL", paid)
	}
	if date := orders[1].Attrs["ordered_on"].(pgtype.Date); !date.Valid || date.Time.Day() != 16 {
		t.Errorf("ordered_on = %+v, want 2024-03-16", date)
	}
}

func TestCustomerOrders_BadLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"bad email", "C-1,Ann,not-an-email,CA,SO-1,2024-03-15,1,", "email"},
		{"bad amount", "C-1,Ann,,CA,SO-1,2024-03-15,lots,", "amount"},
		{"bad date", "C-1,Ann,,CA,SO-1,someday,1,", "ordered_on"},
		{"blank id", ",Ann,,CA,SO-1,2024-03-15,1,", "external_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := CustomerOrders(store.Memory(memstore.New()))
			if err != nil {
				t.Fatalf("CustomerOrders() error: %v", err)
			}
			input := strings.SplitN(export, "\n", 2)[0] + "\n" + tt.line + "\n"
			_, err = f.RunReader(context.Background(), "export.csv", strings.NewReader(input), nil)
			if !core.IsDataError(err) {
				t.Fatalf("RunReader() error = %v, want a data error", err)
			}
			if msg := core.MapError(err); msg.Field != tt.field || msg.Line != 2 {
				t.Errorf("MapError() = line %d field %q, want line 2 field %q", msg.Line, msg.Field, tt.field)
			}
		})
	}
}
