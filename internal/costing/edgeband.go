package costing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// GeometryPolicy decides when area and perimeter are written for standard pieces.
type GeometryPolicy int

const (
	// GeometryAlways writes area and perimeter whenever dimensions are known.
	GeometryAlways GeometryPolicy = iota
	// GeometryRequiresEdge writes them only when at least one side resolved a
	// tape reference and clears them otherwise.
	GeometryRequiresEdge
)

// ParseGeometryPolicy accepts "always" and "requires-edge".
func ParseGeometryPolicy(s string) (GeometryPolicy, error) {
	switch s {
	case "", "always":
		return GeometryAlways, nil
	case "requires-edge":
		return GeometryRequiresEdge, nil
	}
	return GeometryAlways, Invalid("geometry_policy", s, "must be always or requires-edge")
}

// EdgeBander computes edge consumption, piece geometry and material cost.
type EdgeBander struct {
	Materials MaterialResolver
	Policy    GeometryPolicy
}

// Calculate rewrites the derived edge, geometry and material columns of row.
// Data gaps (missing dimensions, unknown references) produce zeros, never errors;
// only resolver failures are returned.
func (b *EdgeBander) Calculate(ctx context.Context, row *PieceRow) error {
	kind := row.Kind()
	if kind == KindNonMeasurable {
		row.Area = decimal.NullDecimal{}
		row.Perimeter = decimal.NullDecimal{}
		row.Linear = decimal.NullDecimal{}
	}

	length, width, thickness := row.ResolvedDims()
	missing := !length.IsPositive() || (kind == KindStandard && !width.IsPositive())
	if missing && kind != KindNonMeasurable {
		return nil
	}

	var (
		base   RawMaterial
		hasMat bool
	)
	if row.MaterialRef != "" {
		m, ok, err := b.Materials.ResolveMaterial(ctx, row.MaterialRef)
		if err != nil {
			return fmt.Errorf("resolve material %q: %w", row.MaterialRef, err)
		}
		base, hasMat = m, ok
	}

	// Unit-priced rows without dimensions keep their edges but are still costed.
	resolved := false
	if !missing {
		var err error
		if resolved, err = b.edges(ctx, row, base, hasMat, length, width, thickness); err != nil {
			return err
		}
	}

	switch kind {
	case KindStandard:
		if b.Policy == GeometryRequiresEdge && !resolved {
			row.Area = decimal.NullDecimal{}
			row.Perimeter = decimal.NullDecimal{}
			break
		}
		area := length.Div(thousand).Mul(width.Div(thousand))
		perimeter := length.Add(width).Mul(decimal.NewFromInt(2)).Div(thousand)
		row.Area = decimal.NewNullDecimal(Round4(area))
		row.Perimeter = decimal.NewNullDecimal(Round4(perimeter))
	case KindAdjustableAccessory:
		row.Linear = decimal.NewNullDecimal(Round2(length.Div(thousand)))
	}

	row.MaterialUnitCost, row.MaterialTotalCost = decimal.Zero, decimal.Zero
	if row.NeedsMaterial && hasMat {
		waste := decimal.NewFromInt(1).Add(row.WastePercent.Div(hundred))
		unit := Round4(MaterialBasis(row, kind).Mul(waste).Mul(base.NetPrice))
		row.MaterialUnitCost = unit
		row.MaterialTotalCost = Round2(unit.Mul(row.QtyTotal))
	}
	return nil
}

// edges fills the four sides and reports whether any side resolved a tape.
func (b *EdgeBander) edges(ctx context.Context, row *PieceRow, base RawMaterial, hasMat bool, length, width, thickness decimal.Decimal) (bool, error) {
	tapeWidth, _ := TapeWidthAndBasis(thickness)
	tapeWidthM := tapeWidth.Div(thousand)

	resolved := false
	row.EdgeLength, row.EdgeCost = decimal.Zero, decimal.Zero
	for i := range row.Edges {
		side := &row.Edges[i]
		side.Length, side.Cost = decimal.Zero, decimal.Zero
		if !row.NeedsEdgeBanding || !hasMat {
			continue
		}
		ref := base.TapeRef(side.Code)
		if ref == "" {
			continue
		}
		tape, ok, err := b.Materials.ResolveMaterial(ctx, ref)
		if err != nil {
			return false, fmt.Errorf("resolve tape %q: %w", ref, err)
		}
		if !ok {
			continue
		}
		resolved = true

		dim := length
		if i >= 2 {
			dim = width
		}
		side.Length = Round4(dim.Div(thousand))
		side.Cost = Round4(side.Length.Mul(tape.NetPrice).Mul(tapeWidthM))

		row.EdgeLength = row.EdgeLength.Add(side.Length)
		row.EdgeCost = row.EdgeCost.Add(side.Cost)
	}
	return resolved, nil
}

// MaterialBasis is the per-piece consumption a material price applies to:
// area for standard pieces, linear meters for accessories, one unit otherwise.
// Unset geometry counts as zero.
func MaterialBasis(row *PieceRow, kind PieceKind) decimal.Decimal {
	switch kind {
	case KindStandard:
		return nullOrZero(row.Area)
	case KindAdjustableAccessory:
		return nullOrZero(row.Linear)
	default:
		return decimal.NewFromInt(1)
	}
}

func nullOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
