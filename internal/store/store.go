// Package store chooses the adapter behind each declared table, so the same
// loader declarations can run against memory (dry runs, tests) or Postgres.
package store

import (
	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/store/memstore"
	"github.com/JonMunkholm/csvload/internal/store/pgstore"
)

// Table names the storage behind one line loader.
type Table struct {
	Name       string
	PrimaryKey string            // Postgres only; defaults to "id"
	Columns    map[string]string // attribute -> column overrides; Postgres only
}

// Factory builds the adapter for a table.
type Factory func(Table) (core.Adapter, error)

// Memory returns a Factory backed by db.
func Memory(db *memstore.DB) Factory {
	return func(t Table) (core.Adapter, error) {
		return db.Table(t.Name), nil
	}
}

// Postgres returns a Factory issuing SQL through db.
func Postgres(db pgstore.DBTX) Factory {
	return func(t Table) (core.Adapter, error) {
		return pgstore.NewTable(db, pgstore.TableSpec{
			Name:       t.Name,
			PrimaryKey: t.PrimaryKey,
			Columns:    t.Columns,
		})
	}
}
