package costing

import (
	"context"

	"github.com/shopspring/decimal"
)

// UnitOfMeasure is the purchase unit of a raw material.
type UnitOfMeasure string

const (
	UoMSquareMeter UnitOfMeasure = "M2"
	UoMLinearMeter UnitOfMeasure = "ML"
	UoMUnit        UnitOfMeasure = "UD"
)

// RawMaterial is a catalogue entry. The core never writes it.
type RawMaterial struct {
	Reference    string          `json:"reference"`
	Name         string          `json:"name"`
	ListPrice    decimal.Decimal `json:"list_price"`
	Margin       decimal.Decimal `json:"margin"`
	Discount     decimal.Decimal `json:"discount"`
	NetPrice     decimal.Decimal `json:"net_price"`
	UoM          UnitOfMeasure   `json:"uom"`
	WasteDefault decimal.Decimal `json:"waste_default"`
	Length       decimal.Decimal `json:"length"`    // mm
	Width        decimal.Decimal `json:"width"`     // mm
	Thickness    decimal.Decimal `json:"thickness"` // mm
	Family       string          `json:"family"`
	Type         string          `json:"type"`
	TapeThinRef  string          `json:"tape_thin_ref"`
	TapeThickRef string          `json:"tape_thick_ref"`
}

// TapeRef returns the tape reference selected by an edge code.
// Codes >= 0.9 select the thick tape class, any other positive code the thin one.
func (m RawMaterial) TapeRef(code decimal.Decimal) string {
	if !code.IsPositive() {
		return ""
	}
	if code.GreaterThanOrEqual(thickEdgeThreshold) {
		return m.TapeThickRef
	}
	return m.TapeThinRef
}

// BoardSize returns the purchasable unit in the same basis used for piece
// consumption: m² for board materials, m for linear materials.
func (m RawMaterial) BoardSize() decimal.Decimal {
	switch m.UoM {
	case UoMSquareMeter:
		return m.Length.Div(thousand).Mul(m.Width.Div(thousand))
	case UoMLinearMeter:
		return m.Length.Div(thousand)
	default:
		return decimal.Zero
	}
}

// MaterialResolver looks up catalogue entries by exact reference.
// A missing reference is reported with ok == false, not an error.
type MaterialResolver interface {
	ResolveMaterial(ctx context.Context, reference string) (m RawMaterial, ok bool, err error)
}

// Edge is one side of a piece.
type Edge struct {
	Code   decimal.Decimal `json:"code"`
	Length decimal.Decimal `json:"length"` // m
	Cost   decimal.Decimal `json:"cost"`
}

// StationCost holds the paired unit/total columns of one station.
type StationCost struct {
	Unit  decimal.Decimal `json:"unit"`
	Total decimal.Decimal `json:"total"`
}

// PieceRow is one manufactured part of a budget line. Area, perimeter, edge
// and station columns are derived and only written by a recalculation pass.
type PieceRow struct {
	ID       int64 `json:"id"`
	BudgetID int64 `json:"budget_id"`
	LineID   int64 `json:"line_id"`
	ClientID int64 `json:"client_id"`
	Year     int   `json:"year"`
	Number   int   `json:"number"`
	Version  int   `json:"version"`

	Description string `json:"description"`
	Code        string `json:"code"`

	Length            decimal.Decimal `json:"length"`
	Width             decimal.Decimal `json:"width"`
	Thickness         decimal.Decimal `json:"thickness"`
	ResidualLength    decimal.Decimal `json:"residual_length"`
	ResidualWidth     decimal.Decimal `json:"residual_width"`
	ResidualThickness decimal.Decimal `json:"residual_thickness"`

	QtyModule decimal.Decimal `json:"qty_module"`
	QtyUnit   decimal.Decimal `json:"qty_unit"`
	QtyTotal  decimal.Decimal `json:"qty_total"`

	NeedsMaterial    bool `json:"needs_material"`
	NeedsLabor       bool `json:"needs_labor"`
	NeedsEdgeBanding bool `json:"needs_edge_banding"`
	WholeBoardLock   bool `json:"whole_board_lock"`
	NonStock         bool `json:"non_stock"`

	MaterialRef  string          `json:"material_ref"`
	WastePercent decimal.Decimal `json:"waste_percent"`

	Edges      [4]Edge         `json:"edges"`
	EdgeLength decimal.Decimal `json:"edge_length"`
	EdgeCost   decimal.Decimal `json:"edge_cost"`

	Area      decimal.NullDecimal `json:"area"`      // m²
	Perimeter decimal.NullDecimal `json:"perimeter"` // m
	Linear    decimal.NullDecimal `json:"linear_m"`  // m, adjustable accessories only

	Stations [StationCount]StationCost `json:"stations"`

	MaterialUnitCost  decimal.Decimal `json:"material_unit_cost"`
	MaterialTotalCost decimal.Decimal `json:"material_total_cost"`
}

// Kind classifies the row by its coded name, falling back to the description.
func (p *PieceRow) Kind() PieceKind {
	if p.Code != "" {
		return Classify(p.Code)
	}
	return Classify(p.Description)
}

// ResolvedDims returns the residual dimensions, using the nominal value for
// any residual that is not set.
func (p *PieceRow) ResolvedDims() (length, width, thickness decimal.Decimal) {
	pick := func(residual, nominal decimal.Decimal) decimal.Decimal {
		if residual.IsPositive() {
			return residual
		}
		return nominal
	}
	return pick(p.ResidualLength, p.Length), pick(p.ResidualWidth, p.Width), pick(p.ResidualThickness, p.Thickness)
}

// StationTotal sums the total column of every station.
func (p *PieceRow) StationTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range p.Stations {
		sum = sum.Add(s.Total)
	}
	return sum
}

// ProducedCost is the full cost of the row: material, edges and stations.
func (p *PieceRow) ProducedCost() decimal.Decimal {
	edges := p.EdgeCost.Mul(p.QtyTotal)
	return Round2(p.MaterialTotalCost.Add(edges).Add(p.StationTotal()))
}
