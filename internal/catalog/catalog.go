// Package catalog holds the file loaders declared in Go rather than YAML.
package catalog

import (
	"fmt"

	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/store"
)

// Register adds every built-in file loader to reg, persisting through
// adapters from factory.
func Register(reg *core.Registry, factory store.Factory) error {
	builders := []func(store.Factory) (*core.FileLoader, error){
		CustomerOrders,
	}
	for _, build := range builders {
		f, err := build(factory)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if err := reg.Register(f); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}

// CustomerOrders loads an order export in which every line names the
// customer and one of their orders. Customers are matched on their external
// id; orders on their number and are linked to the line's customer.
func CustomerOrders(factory store.Factory) (*core.FileLoader, error) {
	customer, err := customerLoader(factory)
	if err != nil {
		return nil, err
	}
	order, err := orderLoader(factory)
	if err != nil {
		return nil, err
	}

	f := core.NewFileLoader("customer_orders", customer, order)
	f.Header = true
	if err := f.Check(); err != nil {
		return nil, err
	}
	return f, nil
}

func customerLoader(factory store.Factory) (*core.LineLoader, error) {
	adapter, err := factory(store.Table{
		Name:    "customers",
		Columns: map[string]string{"name": "full_name"},
	})
	if err != nil {
		return nil, err
	}

	return core.NewLineLoader(core.LineLoaderSpec{
		Name:   "customer",
		Unique: []string{"external_id"},
		Fields: []core.FieldSpec{
			core.Named("external_id", "Customer ID").With(core.NotEmpty),
			core.Named("name", "Customer Name").With(core.MaxLen(200)),
			core.Named("email", "Email").Optional().With(core.Tag("omitempty,email")),
			core.Named("state", "State").Optional(),
		},
		Clean: map[string]core.CleanFunc{
			"external_id": core.Trim,
			"name":        core.CleanCell,
			"email":       core.Chain(core.Trim, core.Lower),
			"state":       core.NormalizeUsState,
		},
	}, adapter)
}

func orderLoader(factory store.Factory) (*core.LineLoader, error) {
	adapter, err := factory(store.Table{
		Name:    "orders",
		Columns: map[string]string{"customer": "customer_id"},
	})
	if err != nil {
		return nil, err
	}

	return core.NewLineLoader(core.LineLoaderSpec{
		Name:     "order",
		Requires: []string{"customer"},
		Unique:   []string{"number"},
		Fields: []core.FieldSpec{
			core.Named("number", "Order Number").With(core.NotEmpty),
			core.Named("ordered_on", "Order Date").As(core.PgDate),
			core.Named("amount", "Amount").As(core.PgNumeric),
			core.Named("paid", "Paid").Optional().As(core.PgBool),
		},
		Clean: map[string]core.CleanFunc{
			"number": core.Chain(core.Trim, core.Upper),
		},
	}, adapter)
}
