package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/muebles/internal/costing"
)

var stationColumnPrefix = [costing.StationCount]string{"cut", "edge", "cnc", "drill", "press", "saw", "pack", "labor"}

func pieceColumns(p *costing.PieceRow) []column {
	cols := []column{
		{"line_id", &p.LineID},
		{"budget_id", &p.BudgetID},
		{"client_id", &p.ClientID},
		{"year", &p.Year},
		{"number", &p.Number},
		{"version", &p.Version},
		{"description", &p.Description},
		{"code", &p.Code},
		{"length", &p.Length},
		{"width", &p.Width},
		{"thickness", &p.Thickness},
		{"residual_length", &p.ResidualLength},
		{"residual_width", &p.ResidualWidth},
		{"residual_thickness", &p.ResidualThickness},
		{"qty_module", &p.QtyModule},
		{"qty_unit", &p.QtyUnit},
		{"qty_total", &p.QtyTotal},
		{"needs_material", &p.NeedsMaterial},
		{"needs_labor", &p.NeedsLabor},
		{"needs_edge_banding", &p.NeedsEdgeBanding},
		{"whole_board_lock", &p.WholeBoardLock},
		{"non_stock", &p.NonStock},
		{"material_ref", &p.MaterialRef},
		{"waste_percent", &p.WastePercent},
	}
	for i := range p.Edges {
		e := &p.Edges[i]
		prefix := fmt.Sprintf("edge%d_", i+1)
		cols = append(cols,
			column{prefix + "code", &e.Code},
			column{prefix + "length", &e.Length},
			column{prefix + "cost", &e.Cost},
		)
	}
	cols = append(cols,
		column{"edge_length", &p.EdgeLength},
		column{"edge_cost", &p.EdgeCost},
		column{"area", &p.Area},
		column{"perimeter", &p.Perimeter},
		column{"linear_m", &p.Linear},
	)
	for i := range p.Stations {
		s := &p.Stations[i]
		cols = append(cols,
			column{stationColumnPrefix[i] + "_unit", &s.Unit},
			column{stationColumnPrefix[i] + "_total", &s.Total},
		)
	}
	return append(cols,
		column{"material_unit_cost", &p.MaterialUnitCost},
		column{"material_total_cost", &p.MaterialTotalCost},
	)
}

var pieceSelect = func() string {
	var p costing.PieceRow
	return "SELECT id, " + strings.Join(names(pieceColumns(&p)), ", ") + " FROM piece_rows"
}()

func scanPiece(row interface{ Scan(...any) error }) (costing.PieceRow, error) {
	var p costing.PieceRow
	dest := append([]any{&p.ID}, ptrs(pieceColumns(&p))...)
	if err := row.Scan(dest...); err != nil {
		return costing.PieceRow{}, err
	}
	return p, nil
}

func (s *Store) queryPieces(ctx context.Context, where string, args ...any) ([]costing.PieceRow, error) {
	rows, err := s.q.QueryContext(ctx, pieceSelect+" WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query piece rows: %w", err)
	}
	defer rows.Close()

	var out []costing.PieceRow
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, fmt.Errorf("scan piece row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate piece rows: %w", err)
	}
	return out, nil
}

// CreatePiece inserts p and sets its ID.
func (s *Store) CreatePiece(ctx context.Context, p *costing.PieceRow) error {
	cols := pieceColumns(p)
	res, err := s.q.ExecContext(ctx, insertSQL("piece_rows", cols), values(cols)...)
	if err != nil {
		return fmt.Errorf("insert piece row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("piece row id: %w", err)
	}
	p.ID = id
	return nil
}

// Piece returns one piece row.
func (s *Store) Piece(ctx context.Context, id int64) (costing.PieceRow, error) {
	p, err := scanPiece(s.q.QueryRowContext(ctx, pieceSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return costing.PieceRow{}, fmt.Errorf("piece row %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return costing.PieceRow{}, fmt.Errorf("query piece row %d: %w", id, err)
	}
	return p, nil
}

// PiecesByLine returns the rows of one budget line.
func (s *Store) PiecesByLine(ctx context.Context, lineID int64) ([]costing.PieceRow, error) {
	return s.queryPieces(ctx, "line_id = ?", lineID)
}

// GroupRows returns the stock rows of a budget version that consume reference.
func (s *Store) GroupRows(ctx context.Context, budgetID int64, version int, reference string) ([]costing.PieceRow, error) {
	return s.queryPieces(ctx,
		"budget_id = ? AND version = ? AND material_ref = ? AND needs_material = 1 AND non_stock = 0",
		budgetID, version, reference)
}

// UpdatePiece writes every column of p.
func (s *Store) UpdatePiece(ctx context.Context, p costing.PieceRow) error {
	cols := pieceColumns(&p)
	args := append(values(cols), p.ID)
	res, err := s.q.ExecContext(ctx, updateSQL("piece_rows", cols), args...)
	if err != nil {
		return fmt.Errorf("update piece row %d: %w", p.ID, err)
	}
	return expectOne(res, "piece row", p.ID)
}

// SetWaste writes only the reconciliation inputs of a piece.
func (s *Store) SetWaste(ctx context.Context, pieceID int64, waste decimal.Decimal, lock bool) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE piece_rows SET waste_percent = ?, whole_board_lock = ? WHERE id = ?
	`, waste, lock, pieceID)
	if err != nil {
		return fmt.Errorf("set waste of piece row %d: %w", pieceID, err)
	}
	return expectOne(res, "piece row", pieceID)
}
