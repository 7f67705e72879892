package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/muebles/internal/costing"
)

var (
	DefaultMinimum   = decimal.RequireFromString("0.10")
	DefaultTolerance = decimal.RequireFromString("0.50")
	maximumPercent   = decimal.NewFromInt(500)
)

// SolveOptions tunes SolveForTarget. An empty order or a nil bound selects the
// default, so an explicit zero floor or tolerance is honoured.
type SolveOptions struct {
	Order     []Markup
	Minimum   *decimal.Decimal
	Tolerance *decimal.Decimal
}

// Solution is the outcome of SolveForTarget. Reached is authoritative:
// a single pass over the order keys does not guarantee convergence.
type Solution struct {
	Percentages Markups         `json:"percentages"`
	Estimated   decimal.Decimal `json:"estimated"`
	Reached     bool            `json:"reached"`
}

type aggregate struct {
	base     decimal.Decimal // Σ produced×qty + Σ adjustment×qty
	produced decimal.Decimal // Σ produced×qty
}

func aggregateLines(lines []BudgetLine) aggregate {
	var a aggregate
	for _, l := range lines {
		produced := l.ProducedCost.Mul(l.Quantity)
		a.produced = a.produced.Add(produced)
		a.base = a.base.Add(produced).Add(l.Adjustment.Mul(l.Quantity))
	}
	return a
}

func (a aggregate) estimate(pct Markups) decimal.Decimal {
	return costing.Round2(a.base.Add(a.produced.Mul(pct.Sum()).Div(hundred)))
}

// SolveForTarget walks order once, left to right, moving each markup by the
// percentage that would close the remaining gap to target, clamped to
// [minimum, 500]. It stops as soon as the estimate is within tolerance.
func SolveForTarget(lines []BudgetLine, pct Markups, target decimal.Decimal, opts SolveOptions) (Solution, error) {
	if !target.IsPositive() {
		return Solution{}, costing.Invalid("target_total", target, "target price must be positive")
	}
	order := opts.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	for _, k := range order {
		if _, ok := pct.Get(k); !ok {
			return Solution{}, costing.Invalid("order", string(k), "unknown markup key")
		}
	}
	minimum := DefaultMinimum
	if opts.Minimum != nil {
		minimum = *opts.Minimum
	}
	if minimum.IsNegative() || minimum.GreaterThan(maximumPercent) {
		return Solution{}, costing.Invalid("minimum", minimum, "must be between 0 and 500")
	}
	tolerance := DefaultTolerance
	if opts.Tolerance != nil {
		tolerance = *opts.Tolerance
	}
	if tolerance.IsNegative() {
		return Solution{}, costing.Invalid("tolerance", tolerance, "must not be negative")
	}

	agg := aggregateLines(lines)
	if !agg.produced.IsPositive() {
		return Solution{}, costing.Invalid("produced_cost", agg.produced, "aggregate produced cost must be positive")
	}

	within := func(est decimal.Decimal) bool {
		return target.Sub(est).Abs().LessThanOrEqual(tolerance)
	}

	for _, k := range order {
		est := agg.estimate(pct)
		if within(est) {
			break
		}
		delta := target.Sub(est).Div(agg.produced).Mul(hundred)
		f := pct.field(k)
		*f = clamp(costing.Round4(f.Add(delta)), minimum, maximumPercent)
	}

	est := agg.estimate(pct)
	return Solution{Percentages: pct, Estimated: est, Reached: within(est)}, nil
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
