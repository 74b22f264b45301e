// Package pgstore implements core.Adapter over PostgreSQL with pgx.
//
// A Table maps loader attributes onto the columns of one database table and
// issues plain SELECT / INSERT / UPDATE statements. Values produced by the
// pg_* coercions (pgtype.Numeric, pgtype.Date, ...) are passed to pgx
// unchanged, and a *Row bound into another loader's attributes is written as
// its primary key, which is how foreign keys are filled in.
package pgstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/csvload/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// ErrRowNotFound is returned by Update when the row has disappeared.
var ErrRowNotFound = errors.New("row not found")

// TableSpec describes the table behind a loader.
type TableSpec struct {
	Name       string            // optionally schema-qualified, e.g. "sales.orders"
	PrimaryKey string            // defaults to "id"
	Columns    map[string]string // attribute -> column; unmapped attributes use ColumnName
}

// Row is a record read back from the table.
type Row struct {
	table  string
	pk     string
	Values map[string]any // column -> value
}

// ID returns the primary key value.
func (r *Row) ID() any { return r.Values[r.pk] }

// Get returns a column value.
func (r *Row) Get(column string) any { return r.Values[column] }

// Value implements driver.Valuer and yields the primary key, so a bound
// parent row can be written into a foreign-key column.
func (r *Row) Value() (driver.Value, error) {
	switch id := r.ID().(type) {
	case nil:
		return nil, fmt.Errorf("%s: row has no %q value", r.table, r.pk)
	case int32:
		return int64(id), nil
	case int16:
		return int64(id), nil
	case int64, string, []byte:
		return id, nil
	case [16]byte:
		return uuid.UUID(id).String(), nil
	case pgtype.UUID:
		if !id.Valid {
			return nil, nil
		}
		return uuid.UUID(id.Bytes).String(), nil
	default:
		return fmt.Sprint(id), nil
	}
}

// Table is a core.Adapter for one table.
type Table struct {
	db   DBTX
	spec TableSpec
	name string // quoted
}

var _ core.Adapter = (*Table)(nil)

// NewTable returns an adapter for spec.Name.
func NewTable(db DBTX, spec TableSpec) (*Table, error) {
	if db == nil {
		return nil, errors.New("pgstore: nil database")
	}
	if strings.TrimSpace(spec.Name) == "" {
		return nil, errors.New("pgstore: empty table name")
	}
	if spec.PrimaryKey == "" {
		spec.PrimaryKey = "id"
	}
	return &Table{
		db:   db,
		spec: spec,
		name: pgx.Identifier(strings.Split(spec.Name, ".")).Sanitize(),
	}, nil
}

// ColumnName converts an attribute name to a column name.
// "Transaction ID" -> "transaction_id"
func ColumnName(attr string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(attr), " ", "_"))
}

func (t *Table) column(attr string) string {
	if col, ok := t.spec.Columns[attr]; ok {
		return col
	}
	return ColumnName(attr)
}

// split returns quoted columns and their values in a stable order.
func (t *Table) split(attrs core.Attrs) ([]string, []any) {
	names := make([]string, 0, len(attrs))
	for attr := range attrs {
		names = append(names, attr)
	}
	sort.Strings(names)

	cols := make([]string, len(names))
	args := make([]any, len(names))
	for i, attr := range names {
		cols[i] = quoteIdentifier(t.column(attr))
		args[i] = attrs[attr]
	}
	return cols, args
}

// Find selects the first row whose columns equal key. NULL matches NULL.
func (t *Table) Find(ctx context.Context, key core.Attrs) (core.Record, bool, error) {
	cols, args := t.split(key)
	conditions := make([]string, len(cols))
	for i, col := range cols {
		conditions[i] = fmt.Sprintf("%s IS NOT DISTINCT FROM $%d", col, i+1)
	}

	query := fmt.Sprintf("SELECT * FROM %s", t.name)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " LIMIT 1"

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("find in %s: %w", t.spec.Name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("find in %s: %w", t.spec.Name, err)
		}
		return nil, false, nil
	}
	row, err := t.scan(rows)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Create inserts attrs and returns the stored row, including defaults.
func (t *Table) Create(ctx context.Context, attrs core.Attrs) (core.Record, error) {
	cols, args := t.split(attrs)

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", t.name)
	} else {
		placeholders := make([]string, len(cols))
		for i := range cols {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query = fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			t.name,
			strings.Join(cols, ", "),
			strings.Join(placeholders, ", "),
		)
	}

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t.spec.Name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", t.spec.Name, err)
		}
		return nil, fmt.Errorf("insert into %s: no row returned", t.spec.Name)
	}
	return t.scan(rows)
}

// Update sets attrs on rec, which must be a *Row read from this table.
func (t *Table) Update(ctx context.Context, rec core.Record, attrs core.Attrs) error {
	row, ok := rec.(*Row)
	if !ok || row.table != t.spec.Name {
		return fmt.Errorf("update %s: record %T does not belong to this table", t.spec.Name, rec)
	}
	if len(attrs) == 0 {
		return nil
	}

	cols, args := t.split(attrs)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, row.ID())

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d",
		t.name,
		strings.Join(sets, ", "),
		quoteIdentifier(t.spec.PrimaryKey),
		len(args),
	)

	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.spec.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %v: %w", t.spec.Name, row.ID(), ErrRowNotFound)
	}

	for attr, v := range attrs {
		row.Values[t.column(attr)] = v
	}
	return nil
}

func (t *Table) scan(rows pgx.Rows) (*Row, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("read row from %s: %w", t.spec.Name, err)
	}

	fields := rows.FieldDescriptions()
	row := &Row{table: t.spec.Name, pk: t.spec.PrimaryKey, Values: make(map[string]any, len(fields))}
	for i, fd := range fields {
		if i < len(values) {
			row.Values[fd.Name] = values[i]
		}
	}
	if _, ok := row.Values[t.spec.PrimaryKey]; !ok {
		return nil, fmt.Errorf("read row from %s: no %q column", t.spec.Name, t.spec.PrimaryKey)
	}
	return row, nil
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
