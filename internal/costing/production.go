package costing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Station indexes the eight production cost column pairs of a piece row.
type Station int

const (
	StationCut Station = iota
	StationEdge
	StationCNC
	StationDrill
	StationPress
	StationSaw
	StationPack
	StationLabor
	StationCount
)

var stationCodes = [StationCount]string{"CUT", "EDGE", "CNC", "DRILL", "PRESS", "SAW", "PACK", "LABOR"}

func (s Station) String() string {
	if s < 0 || s >= StationCount {
		return "UNKNOWN"
	}
	return stationCodes[s]
}

// Rate entry codes. CNC is priced per piece in three area tiers.
const (
	RateCut   = "CUT"
	RateEdge  = "EDGE"
	RateCNCS  = "CNC_S"
	RateCNCM  = "CNC_M"
	RateCNCL  = "CNC_L"
	RateDrill = "DRILL"
	RatePress = "PRESS"
	RateSaw   = "SAW"
	RatePack  = "PACK"
	RateLabor = "LABOR"
)

// Mode selects which rate column is active.
type Mode string

const (
	ModeStandard Mode = "STANDARD"
	ModeBatch    Mode = "BATCH"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeStandard, ModeBatch:
		return m, nil
	}
	return "", Invalid("mode", s, "must be STANDARD or BATCH")
}

// RateEntry is one station rate in both modes.
type RateEntry struct {
	Code         string          `json:"code"`
	Abbreviation string          `json:"abbreviation"`
	Name         string          `json:"name"`
	StdRate      decimal.Decimal `json:"std_rate"`
	BatchRate    decimal.Decimal `json:"batch_rate"`
	Summary      string          `json:"summary"`
	Sequence     int             `json:"sequence"`
}

// RateTable is the rate set active for one (budget, version, operator) context.
type RateTable struct {
	Mode    Mode
	Entries []RateEntry
}

// Rate returns the active-mode rate for code.
func (t RateTable) Rate(code string) (decimal.Decimal, bool) {
	for _, e := range t.Entries {
		if e.Code != code {
			continue
		}
		if t.Mode == ModeBatch {
			return e.BatchRate, true
		}
		return e.StdRate, true
	}
	return decimal.Zero, false
}

// TimeStandards estimate processing minutes for the hourly stations.
type TimeStandards struct {
	PressMinPerM2    decimal.Decimal
	SawMinPerM       decimal.Decimal
	LaborMinPerPiece decimal.Decimal
	LaborMinPerM2    decimal.Decimal
}

func DefaultTimeStandards() TimeStandards {
	return TimeStandards{
		PressMinPerM2:    decimal.RequireFromString("1.5"),
		SawMinPerM:       decimal.RequireFromString("0.35"),
		LaborMinPerPiece: decimal.NewFromInt(4),
		LaborMinPerM2:    decimal.NewFromInt(2),
	}
}

var (
	cncMediumArea = decimal.RequireFromString("0.7")
	cncLargeArea  = decimal.NewFromInt(1)
	sixty         = decimal.NewFromInt(60)
)

// Allocator spreads production cost over the eight stations. It reads area,
// perimeter and edge length, so it runs after EdgeBander in the same pass.
type Allocator struct {
	Times TimeStandards
}

// Allocate rewrites every station column of row. Stations whose gate is
// closed, or whose rate is missing, are set to zero.
func (a Allocator) Allocate(row *PieceRow, rates RateTable) {
	kind := row.Kind()
	standard := kind == KindStandard
	area := nullOrZero(row.Area)
	perimeter := nullOrZero(row.Perimeter)
	_, _, thickness := row.ResolvedDims()

	set := func(s Station, open bool, code string, basis decimal.Decimal) {
		row.Stations[s] = StationCost{Unit: decimal.Zero, Total: decimal.Zero}
		if !open {
			return
		}
		rate, ok := rates.Rate(code)
		if !ok {
			return
		}
		unit := Round4(rate.Mul(basis))
		row.Stations[s] = StationCost{Unit: unit, Total: Round2(unit.Mul(row.QtyTotal))}
	}
	hours := func(minutes decimal.Decimal) decimal.Decimal { return minutes.Div(sixty) }

	material := row.NeedsMaterial && standard
	labor := row.NeedsLabor && standard

	set(StationCut, material, RateCut, perimeter)
	set(StationEdge, row.NeedsEdgeBanding && row.EdgeLength.IsPositive(), RateEdge, row.EdgeLength)
	set(StationCNC, labor && area.IsPositive(), cncTier(area), decimal.NewFromInt(1))
	set(StationDrill, labor, RateDrill, decimal.NewFromInt(1))
	set(StationPress, labor, RatePress, hours(area.Mul(a.Times.PressMinPerM2)))
	set(StationSaw, material, RateSaw, hours(perimeter.Mul(a.Times.SawMinPerM)))
	set(StationPack, material, RatePack, area.Mul(thickness.Div(thousand)))

	laborMinutes := a.Times.LaborMinPerPiece
	if standard {
		laborMinutes = laborMinutes.Add(area.Mul(a.Times.LaborMinPerM2))
	}
	set(StationLabor, row.NeedsLabor, RateLabor, hours(laborMinutes))
}

func cncTier(area decimal.Decimal) string {
	switch {
	case area.LessThan(cncMediumArea):
		return RateCNCS
	case area.LessThan(cncLargeArea):
		return RateCNCM
	default:
		return RateCNCL
	}
}
