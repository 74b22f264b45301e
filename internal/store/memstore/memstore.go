// Package memstore is an in-memory core.Adapter.
//
// It backs dry runs of the CLI and the package tests. Records live for the
// lifetime of the DB and are never persisted.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/JonMunkholm/csvload/internal/core"
)

// Record is a stored row. The pointer is the record's identity: Find returns
// the same *Record that Create produced.
type Record struct {
	ID    int64
	Attrs core.Attrs
}

// DB groups named tables.
type DB struct {
	mu     sync.Mutex
	tables map[string]*Store
}

// New returns an empty DB.
func New() *DB {
	return &DB{tables: make(map[string]*Store)}
}

// Table returns the named table, creating it on first use.
func (db *DB) Table(name string) *Store {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.tables[name]
	if !ok {
		s = &Store{name: name}
		db.tables[name] = s
	}
	return s
}

// Tables returns the table names in sorted order.
func (db *DB) Tables() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	names := lo.Keys(db.tables)
	sort.Strings(names)
	return names
}

// Store is one table of records.
type Store struct {
	name string

	mu      sync.RWMutex
	records []*Record
	nextID  int64
}

var _ core.Adapter = (*Store)(nil)

// Find returns the first record whose attributes equal every key attribute.
func (s *Store) Find(_ context.Context, key core.Attrs) (core.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if matches(r.Attrs, key) {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// Create stores a copy of attrs under a new ID.
func (s *Store) Create(_ context.Context, attrs core.Attrs) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r := &Record{ID: s.nextID, Attrs: maps.Clone(attrs)}
	if r.Attrs == nil {
		r.Attrs = core.Attrs{}
	}
	s.records = append(s.records, r)
	return r, nil
}

// Update merges attrs into rec, which must have come from this store.
func (s *Store) Update(_ context.Context, rec core.Record, attrs core.Attrs) error {
	r, ok := rec.(*Record)
	if !ok {
		return fmt.Errorf("memstore %s: update: unexpected record type %T", s.name, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !lo.Contains(s.records, r) {
		return fmt.Errorf("memstore %s: update: record %d not in table", s.name, r.ID)
	}
	maps.Copy(r.Attrs, attrs)
	return nil
}

// All returns the records in creation order.
func (s *Store) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Record(nil), s.records...)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matches(attrs, key core.Attrs) bool {
	for k, want := range key {
		got, ok := attrs[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
