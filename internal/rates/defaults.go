package rates

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/muebles/internal/costing"
)

func entry(seq int, code, abbr, name, std, batch, summary string) costing.RateEntry {
	return costing.RateEntry{
		Code:         code,
		Abbreviation: abbr,
		Name:         name,
		StdRate:      decimal.RequireFromString(std),
		BatchRate:    decimal.RequireFromString(batch),
		Summary:      summary,
		Sequence:     seq,
	}
}

// DefaultEntries returns a fresh copy of the station defaults seeded into
// every new rate config.
func DefaultEntries() []costing.RateEntry {
	return []costing.RateEntry{
		entry(10, costing.RateCut, "COR", "Corte", "0.35", "0.28", "€/m de perímetro"),
		entry(20, costing.RateEdge, "CAN", "Canteadora", "0.60", "0.45", "€/m de canto aplicado"),
		entry(30, costing.RateCNCS, "CNS", "CNC pieza pequeña", "1.20", "0.95", "€/pieza, área < 0,7 m²"),
		entry(31, costing.RateCNCM, "CNM", "CNC pieza mediana", "1.80", "1.40", "€/pieza, 0,7 ≤ área < 1 m²"),
		entry(32, costing.RateCNCL, "CNL", "CNC pieza grande", "2.60", "2.00", "€/pieza, área ≥ 1 m²"),
		entry(40, costing.RateDrill, "TAL", "Taladro", "0.40", "0.30", "€/pieza"),
		entry(50, costing.RatePress, "PRE", "Prensa", "28", "22", "€/h según minutos por m²"),
		entry(60, costing.RateSaw, "SEC", "Seccionadora", "32", "25", "€/h según minutos por m de perímetro"),
		entry(70, costing.RatePack, "EMB", "Embalaje", "45", "38", "€/m³"),
		entry(80, costing.RateLabor, "MO", "Mano de obra", "24", "24", "€/h según minutos por pieza y por m²"),
	}
}

func defaultEntry(code string) (costing.RateEntry, bool) {
	for _, e := range DefaultEntries() {
		if e.Code == code {
			return e, true
		}
	}
	return costing.RateEntry{}, false
}

// legacyCodes maps entry codes written by earlier releases to current codes.
var legacyCodes = []struct{ from, to string }{
	{"CANTO", costing.RateEdge},
	{"MANO_OBRA", costing.RateLabor},
	{"CNC", costing.RateCNCS},
}
