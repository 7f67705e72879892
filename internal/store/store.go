// Package store is the SQLite persistence of materials, budget lines, piece
// rows and waste backups.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/muebles/internal/db"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store runs every query through q, which may be a transaction.
type Store struct {
	q db.Querier
}

func New(q db.Querier) *Store {
	return &Store{q: q}
}

// column pairs a column name with the struct field it maps to.
type column struct {
	name string
	ptr  any
}

func names(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

func ptrs(cols []column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.ptr
	}
	return out
}

// values dereferences the column pointers into driver arguments.
func values(cols []column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		switch p := c.ptr.(type) {
		case *decimal.Decimal:
			out[i] = *p
		case *decimal.NullDecimal:
			out[i] = *p
		case *string:
			out[i] = *p
		case *int64:
			out[i] = *p
		case *int:
			out[i] = *p
		case *bool:
			out[i] = *p
		default:
			panic(fmt.Sprintf("store: unsupported column type %T for %s", c.ptr, c.name))
		}
	}
	return out
}

func insertSQL(table string, cols []column) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names(cols), ", "), marks)
}

func updateSQL(table string, cols []column) string {
	sets := make([]string, len(cols))
	for i, n := range names(cols) {
		sets[i] = n + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
