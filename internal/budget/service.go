// Package budget runs the costing, pricing and reconciliation passes against
// persisted budgets, one transaction per operation.
package budget

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/muebles/internal/costing"
	"github.com/Simplici0/muebles/internal/db"
	"github.com/Simplici0/muebles/internal/pricing"
	"github.com/Simplici0/muebles/internal/rates"
	"github.com/Simplici0/muebles/internal/reconcile"
	"github.com/Simplici0/muebles/internal/store"
)

// Options tune the calculators. Zero values select the defaults.
type Options struct {
	Policy costing.GeometryPolicy
	Times  costing.TimeStandards
	Solver pricing.SolveOptions
}

type Service struct {
	db   *sql.DB
	log  *zap.Logger
	opts Options
}

func New(database *sql.DB, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Times == (costing.TimeStandards{}) {
		opts.Times = costing.DefaultTimeStandards()
	}
	return &Service{db: database, log: log, opts: opts}
}

// Item is a budget line with its recalculated piece rows.
type Item struct {
	Line pricing.BudgetLine `json:"line"`
	Rows []costing.PieceRow `json:"rows"`
}

// tx bundles the repositories bound to one transaction.
type tx struct {
	store *store.Store
	rates *rates.Provider
	table map[rates.Context]costing.RateTable
}

func (s *Service) inTx(ctx context.Context, fn func(t *tx) error) error {
	return db.WithTx(ctx, s.db, func(sqlTx *sql.Tx) error {
		return fn(&tx{
			store: store.New(sqlTx),
			rates: rates.New(sqlTx, s.log),
			table: map[rates.Context]costing.RateTable{},
		})
	})
}

func (t *tx) rateTable(ctx context.Context, c rates.Context) (costing.RateTable, error) {
	if table, ok := t.table[c]; ok {
		return table, nil
	}
	table, err := t.rates.Table(ctx, c)
	if err != nil {
		return costing.RateTable{}, err
	}
	t.table[c] = table
	return table, nil
}

// calculate runs the edge-band pass and then the station allocation on row.
func (s *Service) calculate(ctx context.Context, t *tx, row *costing.PieceRow, operator string) error {
	bander := costing.EdgeBander{Materials: t.store, Policy: s.opts.Policy}
	if err := bander.Calculate(ctx, row); err != nil {
		return fmt.Errorf("edge-band piece %d: %w", row.ID, err)
	}

	table, err := t.rateTable(ctx, rates.Context{BudgetID: row.BudgetID, Version: row.Version, Operator: operator})
	if err != nil {
		return err
	}
	costing.Allocator{Times: s.opts.Times}.Allocate(row, table)
	return nil
}

// RecalculatePiece recomputes every derived column of one piece row using
// the rate table of operator.
func (s *Service) RecalculatePiece(ctx context.Context, pieceID int64, operator string) (costing.PieceRow, error) {
	var row costing.PieceRow
	err := s.inTx(ctx, func(t *tx) error {
		var err error
		if row, err = t.store.Piece(ctx, pieceID); err != nil {
			return err
		}
		if err := s.calculate(ctx, t, &row, operator); err != nil {
			return err
		}
		return t.store.UpdatePiece(ctx, row)
	})
	if err != nil {
		return costing.PieceRow{}, err
	}
	return row, nil
}

// RecalculateBudgetItem recomputes every row of a line and rolls their cost
// up into the line's produced cost and price.
func (s *Service) RecalculateBudgetItem(ctx context.Context, lineID int64, operator string) (Item, error) {
	var item Item
	err := s.inTx(ctx, func(t *tx) error {
		var err error
		item, err = s.recalculateLine(ctx, t, lineID, operator)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (s *Service) recalculateLine(ctx context.Context, t *tx, lineID int64, operator string) (Item, error) {
	line, err := t.store.Line(ctx, lineID)
	if err != nil {
		return Item{}, err
	}
	rows, err := t.store.PiecesByLine(ctx, lineID)
	if err != nil {
		return Item{}, err
	}

	sum := decimal.Zero
	for i := range rows {
		if err := s.calculate(ctx, t, &rows[i], operator); err != nil {
			return Item{}, err
		}
		if err := t.store.UpdatePiece(ctx, rows[i]); err != nil {
			return Item{}, err
		}
		sum = sum.Add(rows[i].ProducedCost())
	}

	qty := line.Quantity
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(1)
	}
	line.ProducedCost = costing.Round2(sum.Div(qty))
	line.Price(line.Percentages)
	if err := t.store.UpdateLine(ctx, line); err != nil {
		return Item{}, err
	}
	return Item{Line: line, Rows: rows}, nil
}

// PriceBudget applies pct to every line of a budget version and returns the
// budget total with the priced lines.
func (s *Service) PriceBudget(ctx context.Context, budgetID int64, version int, pct pricing.Markups) (decimal.Decimal, []pricing.BudgetLine, error) {
	var (
		total decimal.Decimal
		lines []pricing.BudgetLine
	)
	err := s.inTx(ctx, func(t *tx) error {
		var err error
		if lines, err = t.store.Lines(ctx, budgetID, version); err != nil {
			return err
		}
		total = pricing.ApplyMargins(lines, pct)
		return updateLines(ctx, t, lines)
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return total, lines, nil
}

func updateLines(ctx context.Context, t *tx, lines []pricing.BudgetLine) error {
	for _, l := range lines {
		if err := t.store.UpdateLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// SolveForTarget back-solves markups so the budget version totals target.
// With apply set the result is written to every line.
func (s *Service) SolveForTarget(ctx context.Context, budgetID int64, version int, pct pricing.Markups, target decimal.Decimal, opts pricing.SolveOptions, apply bool) (pricing.Solution, error) {
	if opts.Minimum == nil {
		opts.Minimum = s.opts.Solver.Minimum
	}
	if opts.Tolerance == nil {
		opts.Tolerance = s.opts.Solver.Tolerance
	}

	var sol pricing.Solution
	err := s.inTx(ctx, func(t *tx) error {
		lines, err := t.store.Lines(ctx, budgetID, version)
		if err != nil {
			return err
		}
		if sol, err = pricing.SolveForTarget(lines, pct, target, opts); err != nil {
			return err
		}
		if !apply {
			return nil
		}
		pricing.ApplyMargins(lines, sol.Percentages)
		return updateLines(ctx, t, lines)
	})
	if err != nil {
		return pricing.Solution{}, err
	}

	s.log.Info("markups solved",
		zap.Int64("budget_id", budgetID),
		zap.Int("version", version),
		zap.String("target", target.String()),
		zap.String("estimated", sol.Estimated.String()),
		zap.Bool("reached", sol.Reached),
		zap.Bool("applied", apply),
	)
	return sol, nil
}

// Reconciliation is the outcome of a board reconciliation toggle, with every
// budget line that owns an affected row already recalculated.
type Reconciliation struct {
	reconcile.Result
	Lines []pricing.BudgetLine `json:"lines"`
}

// ToggleBoardReconciliation switches reconciliation of g and recalculates the
// lines of every affected row in the same transaction.
func (s *Service) ToggleBoardReconciliation(ctx context.Context, g reconcile.Group, on bool) (Reconciliation, error) {
	var out Reconciliation
	err := s.inTx(ctx, func(t *tx) error {
		engine := reconcile.New(t.store, t.store, s.log)
		res, err := engine.Toggle(ctx, g, on)
		if err != nil {
			return err
		}
		out.Result = res

		lineIDs := map[int64]bool{}
		for _, id := range res.Affected {
			row, err := t.store.Piece(ctx, id)
			if err != nil {
				return err
			}
			lineIDs[row.LineID] = true
		}
		ids := make([]int64, 0, len(lineIDs))
		for id := range lineIDs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			item, err := s.recalculateLine(ctx, t, id, g.Operator)
			if err != nil {
				return err
			}
			out.Lines = append(out.Lines, item.Line)
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return out, nil
}
