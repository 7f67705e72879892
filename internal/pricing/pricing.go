// Package pricing turns produced cost into sell prices and back-solves markups
// for a target budget total.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/muebles/internal/costing"
)

// Markup names one of the five independent markups.
type Markup string

const (
	Profit    Markup = "profit"
	Overhead  Markup = "overhead"
	Finishing Markup = "finishing"
	Material  Markup = "material"
	Labor     Markup = "labor"
)

// AllMarkups lists the markups in display order.
var AllMarkups = []Markup{Profit, Overhead, Finishing, Material, Labor}

// DefaultOrder is the adjustment order of SolveForTarget. Finishing is never auto-adjusted.
var DefaultOrder = []Markup{Profit, Overhead, Material, Labor}

// Markups holds one value per markup, either percentages or euro amounts.
type Markups struct {
	Profit    decimal.Decimal `json:"profit"`
	Overhead  decimal.Decimal `json:"overhead"`
	Finishing decimal.Decimal `json:"finishing"`
	Material  decimal.Decimal `json:"material"`
	Labor     decimal.Decimal `json:"labor"`
}

func (m *Markups) field(k Markup) *decimal.Decimal {
	switch k {
	case Profit:
		return &m.Profit
	case Overhead:
		return &m.Overhead
	case Finishing:
		return &m.Finishing
	case Material:
		return &m.Material
	case Labor:
		return &m.Labor
	}
	return nil
}

// Get returns the value for k and whether k is a known markup.
func (m Markups) Get(k Markup) (decimal.Decimal, bool) {
	f := m.field(k)
	if f == nil {
		return decimal.Zero, false
	}
	return *f, true
}

// Sum adds up all five values.
func (m Markups) Sum() decimal.Decimal {
	return m.Profit.Add(m.Overhead).Add(m.Finishing).Add(m.Material).Add(m.Labor)
}

// BudgetLine is one priced item of a customer budget.
type BudgetLine struct {
	ID          int64           `json:"id"`
	BudgetID    int64           `json:"budget_id"`
	Version     int             `json:"version"`
	Description string          `json:"description"`
	Height      decimal.Decimal `json:"height"`
	Width       decimal.Decimal `json:"width"`
	Depth       decimal.Decimal `json:"depth"`
	Quantity    decimal.Decimal `json:"quantity"`

	ProducedCost decimal.Decimal `json:"produced_cost"`
	Adjustment   decimal.Decimal `json:"adjustment"`
	Percentages  Markups         `json:"percentages"`
	Values       Markups         `json:"values"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Total        decimal.Decimal `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// Price applies pct to the line: every markup value is produced cost × pct/100,
// unit price adds them and the adjustment, and the total multiplies by quantity.
func (l *BudgetLine) Price(pct Markups) {
	l.Percentages = pct
	for _, k := range AllMarkups {
		p, _ := pct.Get(k)
		*l.Values.field(k) = costing.Round2(l.ProducedCost.Mul(p).Div(hundred))
	}
	l.UnitPrice = costing.Round2(l.ProducedCost.Add(l.Values.Sum()).Add(l.Adjustment))
	l.Total = costing.Round2(l.UnitPrice.Mul(l.Quantity))
}

// ApplyMargins prices every line with pct and returns the budget total.
func ApplyMargins(lines []BudgetLine, pct Markups) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		lines[i].Price(pct)
		total = total.Add(lines[i].Total)
	}
	return costing.Round2(total)
}
