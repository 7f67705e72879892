package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/muebles/internal/costing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func equalDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func line(produced, qty, adjustment string) BudgetLine {
	return BudgetLine{ProducedCost: dec(produced), Quantity: dec(qty), Adjustment: dec(adjustment)}
}

func TestApplyMargins_ProfitOnly(t *testing.T) {
	lines := []BudgetLine{line("100", "1", "0")}

	total := ApplyMargins(lines, Markups{Profit: dec("10")})

	equalDec(t, "profit value", lines[0].Values.Profit, "10")
	equalDec(t, "unit price", lines[0].UnitPrice, "110.00")
	equalDec(t, "line total", lines[0].Total, "110.00")
	equalDec(t, "total", total, "110")
}

func TestApplyMargins_AllMarkupsAdjustmentAndQuantity(t *testing.T) {
	lines := []BudgetLine{
		line("250.40", "3", "-5"),
		line("99.99", "2", "0"),
	}
	pct := Markups{
		Profit:    dec("12.5"),
		Overhead:  dec("5"),
		Finishing: dec("3"),
		Material:  dec("2"),
		Labor:     dec("1.5"),
	}

	total := ApplyMargins(lines, pct)

	// 250.40: 31.30 + 12.52 + 7.51 + 5.01 + 3.76 = 60.10
	equalDec(t, "line 1 finishing", lines[0].Values.Finishing, "7.51")
	equalDec(t, "line 1 unit", lines[0].UnitPrice, "305.50")
	equalDec(t, "line 1 total", lines[0].Total, "916.50")
	// 99.99: 12.50 + 5.00 + 3.00 + 2.00 + 1.50 = 24.00
	equalDec(t, "line 2 unit", lines[1].UnitPrice, "123.99")
	equalDec(t, "line 2 total", lines[1].Total, "247.98")
	equalDec(t, "total", total, "1164.48")
	if lines[1].Percentages != pct {
		t.Fatalf("percentages not stored on line: %+v", lines[1].Percentages)
	}
}

func TestApplyMargins_Empty(t *testing.T) {
	if total := ApplyMargins(nil, Markups{Profit: dec("10")}); !total.IsZero() {
		t.Fatalf("total = %s, want 0", total)
	}
}

func TestSolveForTarget_ConvergesOnProfit(t *testing.T) {
	lines := []BudgetLine{line("100", "2", "0"), line("50", "4", "0")}

	sol, err := SolveForTarget(lines, Markups{}, dec("440"), SolveOptions{})
	if err != nil {
		t.Fatalf("SolveForTarget: %v", err)
	}

	// aggregate 400, gap 40 -> profit +10%
	equalDec(t, "profit", sol.Percentages.Profit, "10")
	equalDec(t, "overhead", sol.Percentages.Overhead, "0")
	equalDec(t, "estimated", sol.Estimated, "440")
	if !sol.Reached {
		t.Fatalf("expected target to be reached")
	}

	total := ApplyMargins(lines, sol.Percentages)
	equalDec(t, "applied total", total, "440")
}

func TestSolveForTarget_IsIdempotent(t *testing.T) {
	lines := []BudgetLine{line("123.45", "3", "2"), line("80", "1", "0")}
	start := Markups{Profit: dec("5"), Finishing: dec("2")}

	first, err := SolveForTarget(lines, start, dec("612.34"), SolveOptions{})
	if err != nil {
		t.Fatalf("first solve: %v", err)
	}
	if !first.Reached {
		t.Fatalf("expected first solve to converge: %+v", first)
	}

	second, err := SolveForTarget(lines, first.Percentages, dec("612.34"), SolveOptions{})
	if err != nil {
		t.Fatalf("second solve: %v", err)
	}
	if second.Percentages != first.Percentages || !second.Reached {
		t.Fatalf("second solve changed percentages: %+v -> %+v", first.Percentages, second.Percentages)
	}
	equalDec(t, "estimated", second.Estimated, first.Estimated.String())
}

func TestSolveForTarget_ClampsToMinimumAndMaximum(t *testing.T) {
	lines := []BudgetLine{line("100", "1", "0")}

	low, err := SolveForTarget(lines, Markups{Profit: dec("10"), Overhead: dec("10")}, dec("1"), SolveOptions{})
	if err != nil {
		t.Fatalf("low solve: %v", err)
	}
	for _, k := range DefaultOrder {
		v, _ := low.Percentages.Get(k)
		if v.LessThan(DefaultMinimum) {
			t.Fatalf("%s = %s below minimum", k, v)
		}
	}
	if low.Reached {
		t.Fatalf("unreachable low target reported as reached")
	}

	high, err := SolveForTarget(lines, Markups{}, dec("100000"), SolveOptions{})
	if err != nil {
		t.Fatalf("high solve: %v", err)
	}
	for _, k := range DefaultOrder {
		v, _ := high.Percentages.Get(k)
		if v.GreaterThan(dec("500")) {
			t.Fatalf("%s = %s above 500", k, v)
		}
	}
	equalDec(t, "profit", high.Percentages.Profit, "500")
	equalDec(t, "finishing", high.Percentages.Finishing, "0")
	if high.Reached {
		t.Fatalf("unreachable high target reported as reached")
	}
}

func TestSolveForTarget_SpillsOverToNextKey(t *testing.T) {
	lines := []BudgetLine{line("100", "1", "0")}

	sol, err := SolveForTarget(lines, Markups{}, dec("750"), SolveOptions{})
	if err != nil {
		t.Fatalf("SolveForTarget: %v", err)
	}

	equalDec(t, "profit", sol.Percentages.Profit, "500")
	equalDec(t, "overhead", sol.Percentages.Overhead, "150")
	equalDec(t, "material", sol.Percentages.Material, "0")
	if !sol.Reached {
		t.Fatalf("expected reached after overhead")
	}
}

func TestSolveForTarget_CustomOrderAndTolerance(t *testing.T) {
	lines := []BudgetLine{line("200", "1", "0")}

	sol, err := SolveForTarget(lines, Markups{}, dec("203"), SolveOptions{
		Order:     []Markup{Labor},
		Minimum:   decPtr("1"),
		Tolerance: decPtr("5"),
	})
	if err != nil {
		t.Fatalf("SolveForTarget: %v", err)
	}
	if !sol.Reached || !sol.Percentages.Labor.IsZero() {
		t.Fatalf("expected no change inside tolerance, got %+v", sol)
	}
}

func TestSolveForTarget_ExplicitZeroMinimum(t *testing.T) {
	lines := []BudgetLine{line("100", "1", "0")}

	sol, err := SolveForTarget(lines, Markups{Profit: dec("20")}, dec("100"), SolveOptions{
		Order:   []Markup{Profit},
		Minimum: decPtr("0"),
	})
	if err != nil {
		t.Fatalf("SolveForTarget: %v", err)
	}
	equalDec(t, "profit", sol.Percentages.Profit, "0")
	if !sol.Reached {
		t.Fatalf("expected a 0%% floor to reach the bare cost, got %+v", sol)
	}

	floored, err := SolveForTarget(lines, Markups{Profit: dec("20")}, dec("100"), SolveOptions{Order: []Markup{Profit}})
	if err != nil {
		t.Fatalf("SolveForTarget: %v", err)
	}
	equalDec(t, "profit", floored.Percentages.Profit, "0.10")
}

func TestSolveForTarget_ValidationErrors(t *testing.T) {
	lines := []BudgetLine{line("100", "1", "0")}

	tests := []struct {
		name  string
		lines []BudgetLine
		tgt   string
		opts  SolveOptions
		field string
	}{
		{"zero target", lines, "0", SolveOptions{}, "target_total"},
		{"negative target", lines, "-3", SolveOptions{}, "target_total"},
		{"unknown key", lines, "100", SolveOptions{Order: []Markup{"discount"}}, "order"},
		{"zero aggregate", []BudgetLine{line("0", "3", "1")}, "100", SolveOptions{}, "produced_cost"},
		{"negative tolerance", lines, "100", SolveOptions{Tolerance: decPtr("-1")}, "tolerance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SolveForTarget(tt.lines, Markups{}, dec(tt.tgt), tt.opts)
			if !errors.Is(err, costing.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *costing.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected field %s, got %v", tt.field, err)
			}
		})
	}
}
