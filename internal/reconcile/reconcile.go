// Package reconcile corrects per-piece waste so that the material cost of a
// group of pieces matches the whole boards that must actually be bought.
package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/muebles/internal/costing"
)

// Group selects the pieces of one budget version that share a material.
type Group struct {
	BudgetID  int64  `json:"budget_id"`
	Version   int    `json:"version"`
	Operator  string `json:"operator"`
	Reference string `json:"reference"`
}

// Backup is the pre-reconciliation snapshot of one piece.
type Backup struct {
	BudgetID       int64
	Version        int
	Operator       string
	PieceID        int64
	WastePercent   decimal.Decimal
	WholeBoardLock bool
	Active         bool
}

// Store is the persistence the engine needs. GroupRows returns the rows of the
// budget version using reference that need material and are not non-stock.
type Store interface {
	GroupRows(ctx context.Context, budgetID int64, version int, reference string) ([]costing.PieceRow, error)
	Backup(ctx context.Context, g Group, pieceID int64) (Backup, bool, error)
	SaveBackup(ctx context.Context, b Backup) error
	SetWaste(ctx context.Context, pieceID int64, waste decimal.Decimal, lock bool) error
}

// Result reports a toggle. Callers must recalculate every affected piece.
type Result struct {
	Affected []int64         `json:"affected"`
	Current  decimal.Decimal `json:"current_total"`
	Target   decimal.Decimal `json:"target_total"`
	Boards   decimal.Decimal `json:"boards"`
	Excess   decimal.Decimal `json:"excess"`
}

type Engine struct {
	store     Store
	materials costing.MaterialResolver
	log       *zap.Logger
}

func New(store Store, materials costing.MaterialResolver, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, materials: materials, log: log}
}

// Toggle switches reconciliation of g on or off.
func (e *Engine) Toggle(ctx context.Context, g Group, on bool) (Result, error) {
	if g.Reference == "" {
		return Result{}, costing.Invalid("reference", nil, "material reference must not be empty")
	}

	var (
		res Result
		err error
	)
	if on {
		res, err = e.on(ctx, g)
	} else {
		res, err = e.off(ctx, g)
	}
	if err != nil {
		return Result{}, err
	}

	e.log.Info("board reconciliation toggled",
		zap.Int64("budget_id", g.BudgetID),
		zap.Int("version", g.Version),
		zap.String("operator", g.Operator),
		zap.String("reference", g.Reference),
		zap.Bool("on", on),
		zap.Int("rows", len(res.Affected)),
		zap.String("excess", res.Excess.String()),
	)
	return res, nil
}

type member struct {
	row      *costing.PieceRow
	baseline decimal.Decimal
	basis    decimal.Decimal
	waste    decimal.Decimal

	// measurable rows consume board area or length; unit-priced rows only
	// count towards the current cost.
	measurable bool
}

func (e *Engine) on(ctx context.Context, g Group) (Result, error) {
	rows, err := e.store.GroupRows(ctx, g.BudgetID, g.Version, g.Reference)
	if err != nil {
		return Result{}, fmt.Errorf("load reconciliation group: %w", err)
	}

	members := make([]member, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		b, found, err := e.store.Backup(ctx, g, row.ID)
		if err != nil {
			return Result{}, fmt.Errorf("load waste backup of piece %d: %w", row.ID, err)
		}
		if !found || !b.Active {
			b = Backup{
				BudgetID:       g.BudgetID,
				Version:        g.Version,
				Operator:       g.Operator,
				PieceID:        row.ID,
				WastePercent:   row.WastePercent,
				WholeBoardLock: row.WholeBoardLock,
				Active:         true,
			}
			if err := e.store.SaveBackup(ctx, b); err != nil {
				return Result{}, fmt.Errorf("save waste backup of piece %d: %w", row.ID, err)
			}
		}
		kind := row.Kind()
		members = append(members, member{
			row:      row,
			baseline: b.WastePercent,
			basis:    costing.MaterialBasis(row, kind),
			waste:    b.WastePercent,

			measurable: kind != costing.KindNonMeasurable,
		})
	}

	mat, ok, err := e.materials.ResolveMaterial(ctx, g.Reference)
	if err != nil {
		return Result{}, fmt.Errorf("resolve material %q: %w", g.Reference, err)
	}

	var res Result
	if ok {
		res = redistribute(members, mat)
	}

	for _, m := range members {
		if err := e.store.SetWaste(ctx, m.row.ID, m.waste, true); err != nil {
			return Result{}, fmt.Errorf("set waste of piece %d: %w", m.row.ID, err)
		}
		res.Affected = append(res.Affected, m.row.ID)
	}
	return res, nil
}

// redistribute spreads the gap between whole-board cost and current material
// cost over members by quantity share, rewriting each member's waste.
func redistribute(members []member, mat costing.RawMaterial) Result {
	price := mat.NetPrice
	board := mat.BoardSize()

	var res Result
	consumed := decimal.Zero
	for _, m := range members {
		res.Current = res.Current.Add(materialCost(m.basis, m.baseline, price, m.row.QtyTotal))
		if m.measurable {
			consumed = consumed.Add(m.basis.Mul(m.row.QtyTotal))
		}
	}
	if !board.IsPositive() || !consumed.IsPositive() {
		return res
	}
	res.Boards = consumed.Div(board).Ceil()
	res.Target = costing.Round2(res.Boards.Mul(board).Mul(price))
	if !res.Current.IsPositive() || res.Target.LessThanOrEqual(res.Current) {
		return res
	}
	res.Excess = res.Target.Sub(res.Current)

	qty := decimal.Zero
	for _, m := range members {
		if eligible(m) {
			qty = qty.Add(m.row.QtyTotal)
		}
	}
	for i := range members {
		m := &members[i]
		if !eligible(*m) {
			continue
		}
		share := res.Excess.Mul(m.row.QtyTotal).Div(qty)
		perPercent := m.basis.Mul(price).Mul(m.row.QtyTotal).Div(hundred)
		waste := costing.Round4(m.baseline.Add(share.Div(perPercent)))
		if waste.IsNegative() {
			waste = decimal.Zero
		}
		m.waste = waste
	}
	return res
}

func eligible(m member) bool {
	return m.measurable && m.basis.IsPositive() && m.row.QtyTotal.IsPositive()
}

var hundred = decimal.NewFromInt(100)

// materialCost mirrors the material cost pass of the edge-band calculator.
func materialCost(basis, waste, price, qty decimal.Decimal) decimal.Decimal {
	unit := costing.Round4(basis.Mul(decimal.NewFromInt(1).Add(waste.Div(hundred))).Mul(price))
	return costing.Round2(unit.Mul(qty))
}

func (e *Engine) off(ctx context.Context, g Group) (Result, error) {
	rows, err := e.store.GroupRows(ctx, g.BudgetID, g.Version, g.Reference)
	if err != nil {
		return Result{}, fmt.Errorf("load reconciliation group: %w", err)
	}

	var res Result
	for _, row := range rows {
		b, found, err := e.store.Backup(ctx, g, row.ID)
		if err != nil {
			return Result{}, fmt.Errorf("load waste backup of piece %d: %w", row.ID, err)
		}
		if !found || !b.Active {
			continue
		}
		if err := e.store.SetWaste(ctx, row.ID, b.WastePercent, b.WholeBoardLock); err != nil {
			return Result{}, fmt.Errorf("restore waste of piece %d: %w", row.ID, err)
		}
		b.Active = false
		if err := e.store.SaveBackup(ctx, b); err != nil {
			return Result{}, fmt.Errorf("deactivate waste backup of piece %d: %w", row.ID, err)
		}
		res.Affected = append(res.Affected, row.ID)
	}
	return res, nil
}
