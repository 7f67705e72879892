package costing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testRates(mode Mode) RateTable {
	entry := func(code, std, batch string) RateEntry {
		return RateEntry{Code: code, StdRate: d(std), BatchRate: d(batch)}
	}
	return RateTable{Mode: mode, Entries: []RateEntry{
		entry(RateCut, "0.35", "0.28"),
		entry(RateEdge, "0.60", "0.45"),
		entry(RateCNCS, "1.20", "0.95"),
		entry(RateCNCM, "1.80", "1.40"),
		entry(RateCNCL, "2.60", "2.00"),
		entry(RateDrill, "0.40", "0.30"),
		entry(RatePress, "28", "22"),
		entry(RateSaw, "32", "25"),
		entry(RatePack, "45", "38"),
		entry(RateLabor, "24", "24"),
	}}
}

func measuredRow(area, perimeter string) *PieceRow {
	row := &PieceRow{
		Code:             "LATERAL",
		Thickness:        d("18"),
		QtyTotal:         d("2"),
		NeedsMaterial:    true,
		NeedsLabor:       true,
		NeedsEdgeBanding: true,
		EdgeLength:       d("3.6"),
		Area:             decimal.NewNullDecimal(d(area)),
		Perimeter:        decimal.NewNullDecimal(d(perimeter)),
	}
	return row
}

func TestAllocateStandardMode(t *testing.T) {
	row := measuredRow("0.72", "3.6")
	Allocator{Times: DefaultTimeStandards()}.Allocate(row, testRates(ModeStandard))

	want := map[Station][2]string{
		StationCut:   {"1.26", "2.52"},   // 0.35 * 3.6
		StationEdge:  {"2.16", "4.32"},   // 0.60 * 3.6
		StationCNC:   {"1.8", "3.6"},     // medium tier
		StationDrill: {"0.4", "0.8"},     // flat per piece
		StationPress: {"0.504", "1.01"},  // 28 * 0.72 * 1.5 / 60
		StationSaw:   {"0.672", "1.34"},  // 32 * 3.6 * 0.35 / 60
		StationPack:  {"0.5832", "1.17"}, // 45 * 0.72 * 0.018
		StationLabor: {"2.176", "4.35"},  // 24 * (4 + 1.44) / 60
	}
	for s, w := range want {
		assertDec(t, w[0], row.Stations[s].Unit, s.String()+" unit")
		assertDec(t, w[1], row.Stations[s].Total, s.String()+" total")
	}
}

func TestAllocateBatchModeUsesBatchRates(t *testing.T) {
	row := measuredRow("0.72", "3.6")
	Allocator{Times: DefaultTimeStandards()}.Allocate(row, testRates(ModeBatch))

	assertDec(t, "1.008", row.Stations[StationCut].Unit, "cut unit") // 0.28 * 3.6
	assertDec(t, "1.4", row.Stations[StationCNC].Unit, "cnc unit")
}

func TestAllocateCNCTiers(t *testing.T) {
	tests := []struct {
		area string
		want string
	}{
		{"0.3", "1.2"},
		{"0.6999", "1.2"},
		{"0.7", "1.8"},
		{"0.9999", "1.8"},
		{"1", "2.6"},
		{"2.4", "2.6"},
	}
	for _, tt := range tests {
		t.Run(tt.area, func(t *testing.T) {
			row := measuredRow(tt.area, "2")
			Allocator{Times: DefaultTimeStandards()}.Allocate(row, testRates(ModeStandard))
			assertDec(t, tt.want, row.Stations[StationCNC].Unit, "cnc unit")
		})
	}
}

func TestAllocateClosedGatesAreZero(t *testing.T) {
	row := measuredRow("0.72", "3.6")
	a := Allocator{Times: DefaultTimeStandards()}
	a.Allocate(row, testRates(ModeStandard))

	row.NeedsMaterial = false
	row.NeedsLabor = false
	row.NeedsEdgeBanding = false
	a.Allocate(row, testRates(ModeStandard))

	for s := Station(0); s < StationCount; s++ {
		assert.True(t, row.Stations[s].Unit.IsZero(), "%s unit", s)
		assert.True(t, row.Stations[s].Total.IsZero(), "%s total", s)
	}
	assert.True(t, row.StationTotal().IsZero())
}

func TestAllocateNonStandardOnlyLabor(t *testing.T) {
	row := measuredRow("0.72", "3.6")
	row.Code = "ZOCALO ACC"
	row.NeedsEdgeBanding = false
	Allocator{Times: DefaultTimeStandards()}.Allocate(row, testRates(ModeStandard))

	for _, s := range []Station{StationCut, StationCNC, StationDrill, StationPress, StationSaw, StationPack} {
		assert.True(t, row.Stations[s].Unit.IsZero(), "%s unit", s)
	}
	assertDec(t, "1.6", row.Stations[StationLabor].Unit, "labor unit") // 24 * 4 / 60
}

func TestAllocateMissingRateIsZero(t *testing.T) {
	row := measuredRow("0.72", "3.6")
	Allocator{Times: DefaultTimeStandards()}.Allocate(row, RateTable{Mode: ModeStandard})

	assert.True(t, row.StationTotal().IsZero())
}

func TestProducedCost(t *testing.T) {
	row := measuredRow("0.72", "3.6")
	row.MaterialTotalCost = d("19.8")
	row.EdgeCost = d("0.552")
	Allocator{Times: DefaultTimeStandards()}.Allocate(row, testRates(ModeStandard))

	// 19.8 + 1.104 + 19.11
	assertDec(t, "40.01", row.ProducedCost(), "produced")
}

func TestStationString(t *testing.T) {
	assert.Equal(t, "PACK", StationPack.String())
	assert.Equal(t, "UNKNOWN", StationCount.String())
}
