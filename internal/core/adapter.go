package core

import (
	"context"
	"maps"
	"sort"

	"github.com/samber/lo"
)

// Record is a persisted object. Core never looks inside it.
type Record any

// Attrs maps attribute names to values for one line.
type Attrs map[string]any

// Adapter is the persistence strategy behind a LineLoader.
type Adapter interface {
	// Find returns the record matching every attribute in key.
	Find(ctx context.Context, key Attrs) (Record, bool, error)
	// Create persists a new record and returns it.
	Create(ctx context.Context, attrs Attrs) (Record, error)
	// Update writes attrs onto an existing record.
	Update(ctx context.Context, rec Record, attrs Attrs) error
}

// AdapterFuncs adapts plain functions to Adapter. A nil FindFunc never finds
// anything; nil CreateFunc or UpdateFunc succeed without doing anything.
type AdapterFuncs struct {
	FindFunc   func(ctx context.Context, key Attrs) (Record, bool, error)
	CreateFunc func(ctx context.Context, attrs Attrs) (Record, error)
	UpdateFunc func(ctx context.Context, rec Record, attrs Attrs) error
}

func (a AdapterFuncs) Find(ctx context.Context, key Attrs) (Record, bool, error) {
	if a.FindFunc == nil {
		return nil, false, nil
	}
	return a.FindFunc(ctx, key)
}

func (a AdapterFuncs) Create(ctx context.Context, attrs Attrs) (Record, error) {
	if a.CreateFunc == nil {
		return attrs, nil
	}
	return a.CreateFunc(ctx, attrs)
}

func (a AdapterFuncs) Update(ctx context.Context, rec Record, attrs Attrs) error {
	if a.UpdateFunc == nil {
		return nil
	}
	return a.UpdateFunc(ctx, rec, attrs)
}

// Bindings maps a loader's name to the record it produced. A FileLoader run
// owns its bindings; they are never shared between runs.
type Bindings map[string]any

// Clone returns a shallow copy. Cloning nil yields an empty, writable map.
func (b Bindings) Clone() Bindings {
	if b == nil {
		return Bindings{}
	}
	return maps.Clone(b)
}

// Names returns the bound names in sorted order.
func (b Bindings) Names() []string {
	names := lo.Keys(b)
	sort.Strings(names)
	return names
}
