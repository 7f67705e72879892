package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/muebles/internal/pricing"
)

func lineColumns(l *pricing.BudgetLine) []column {
	return []column{
		{"budget_id", &l.BudgetID},
		{"version", &l.Version},
		{"description", &l.Description},
		{"height", &l.Height},
		{"width", &l.Width},
		{"depth", &l.Depth},
		{"quantity", &l.Quantity},
		{"produced_cost", &l.ProducedCost},
		{"adjustment", &l.Adjustment},
		{"pct_profit", &l.Percentages.Profit},
		{"pct_overhead", &l.Percentages.Overhead},
		{"pct_finishing", &l.Percentages.Finishing},
		{"pct_material", &l.Percentages.Material},
		{"pct_labor", &l.Percentages.Labor},
		{"val_profit", &l.Values.Profit},
		{"val_overhead", &l.Values.Overhead},
		{"val_finishing", &l.Values.Finishing},
		{"val_material", &l.Values.Material},
		{"val_labor", &l.Values.Labor},
		{"unit_price", &l.UnitPrice},
		{"total", &l.Total},
	}
}

var lineSelect = func() string {
	var l pricing.BudgetLine
	return "SELECT id, " + strings.Join(names(lineColumns(&l)), ", ") + " FROM budget_lines"
}()

func scanLine(row interface{ Scan(...any) error }) (pricing.BudgetLine, error) {
	var l pricing.BudgetLine
	dest := append([]any{&l.ID}, ptrs(lineColumns(&l))...)
	if err := row.Scan(dest...); err != nil {
		return pricing.BudgetLine{}, err
	}
	return l, nil
}

// CreateLine inserts l and sets its ID.
func (s *Store) CreateLine(ctx context.Context, l *pricing.BudgetLine) error {
	cols := lineColumns(l)
	res, err := s.q.ExecContext(ctx, insertSQL("budget_lines", cols), values(cols)...)
	if err != nil {
		return fmt.Errorf("insert budget line: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("budget line id: %w", err)
	}
	l.ID = id
	return nil
}

// Line returns one budget line.
func (s *Store) Line(ctx context.Context, id int64) (pricing.BudgetLine, error) {
	l, err := scanLine(s.q.QueryRowContext(ctx, lineSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.BudgetLine{}, fmt.Errorf("budget line %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return pricing.BudgetLine{}, fmt.Errorf("query budget line %d: %w", id, err)
	}
	return l, nil
}

// Lines returns the lines of one budget version ordered by id.
func (s *Store) Lines(ctx context.Context, budgetID int64, version int) ([]pricing.BudgetLine, error) {
	rows, err := s.q.QueryContext(ctx, lineSelect+" WHERE budget_id = ? AND version = ? ORDER BY id", budgetID, version)
	if err != nil {
		return nil, fmt.Errorf("query budget lines: %w", err)
	}
	defer rows.Close()

	var out []pricing.BudgetLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget lines: %w", err)
	}
	return out, nil
}

// UpdateLine writes every column of l.
func (s *Store) UpdateLine(ctx context.Context, l pricing.BudgetLine) error {
	cols := lineColumns(&l)
	args := append(values(cols), l.ID)
	res, err := s.q.ExecContext(ctx, updateSQL("budget_lines", cols), args...)
	if err != nil {
		return fmt.Errorf("update budget line %d: %w", l.ID, err)
	}
	return expectOne(res, "budget line", l.ID)
}

// DeleteLine removes a line and, by cascade, its piece rows.
func (s *Store) DeleteLine(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM budget_lines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget line %d: %w", id, err)
	}
	return expectOne(res, "budget line", id)
}
