package costing

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	thousand           = decimal.NewFromInt(1000)
	hundred            = decimal.NewFromInt(100)
	thickEdgeThreshold = decimal.RequireFromString("0.9")
)

// Round2 rounds money and accessory linear meters.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Round4 rounds intermediate costs, ratios and areas.
func Round4(d decimal.Decimal) decimal.Decimal { return d.Round(4) }

// TapeWidthAndBasis maps a piece thickness (mm) to the edge tape width (mm)
// and the price basis factor 1000/width.
func TapeWidthAndBasis(thickness decimal.Decimal) (width, basis decimal.Decimal) {
	var w int64
	switch {
	case !thickness.IsPositive():
		return decimal.Zero, decimal.Zero
	case thickness.LessThan(decimal.NewFromInt(20)):
		w = 23
	case thickness.LessThan(decimal.NewFromInt(31)):
		w = 35
	case thickness.LessThan(decimal.NewFromInt(40)):
		w = 45
	default:
		w = 60
	}
	width = decimal.NewFromInt(w)
	return width, thousand.Div(width)
}

// PieceKind is the closed set of piece classifications.
type PieceKind int

const (
	KindStandard PieceKind = iota
	KindAdjustableAccessory
	KindNonMeasurable
)

func (k PieceKind) String() string {
	switch k {
	case KindAdjustableAccessory:
		return "ADJUSTABLE_ACCESSORY"
	case KindNonMeasurable:
		return "NON_MEASURABLE"
	default:
		return "STANDARD"
	}
}

// accessoryTokens mark adjustable accessories (rails, plinths, profiles cut to length).
var accessoryTokens = map[string]bool{
	"ACC":  true,
	"ACCR": true,
}

// independentDivision matches pieces that are priced as a unit and carry no geometry.
var independentDivision = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^DIV[-_ ]?IND`),
	regexp.MustCompile(`(?i)\bDIVISION[-_ ]INDEPENDIENTE\b`),
	regexp.MustCompile(`(?i)^DI[-_]\d+`),
}

// Classify maps a coded piece name to its kind. Unmatched names are standard.
func Classify(name string) PieceKind {
	name = strings.TrimSpace(name)
	if name == "" {
		return KindStandard
	}
	for _, re := range independentDivision {
		if re.MatchString(name) {
			return KindNonMeasurable
		}
	}
	tokens := strings.FieldsFunc(strings.ToUpper(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if accessoryTokens[tok] {
			return KindAdjustableAccessory
		}
	}
	return KindStandard
}
