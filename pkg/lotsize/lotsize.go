// Package lotsize converts broker-specific position quantities into standard lots
// (1.0 lot = 100,000 units of the base currency) and formats them back for display.
package lotsize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"fxjournal-backend/pkg/broker"

	"github.com/shopspring/decimal"
)

const (
	UnitsPerLot = 100000

	// precision of stored lot values; 0.00001 lot is a single currency unit
	lotPlaces = 5
)

// unitRule matches a unit string and converts one unit into standard lots.
type unitRule struct {
	name       string
	pattern    *regexp.Regexp
	multiplier float64
}

// unitRules are tried in order against the whole unit string; the first match wins.
var unitRules = []unitRule{
	{"man", regexp.MustCompile(`^(万通貨|万)$`), 0.1},
	{"sen", regexp.MustCompile(`^(千通貨|千)$`), 0.01},
	{"lot", regexp.MustCompile(`(?i)^(lots?|ロット)$`), 1.0},
	{"kilo", regexp.MustCompile(`(?i)^k$`), 0.01},
	{"units", regexp.MustCompile(`(?i)^(通貨|units?|currency|currencies)$`), 0.00001},
}

// brokerNative units carry no size of their own; their meaning depends on the broker.
// Everything else in unitRules states its own size and is never reinterpreted by a profile.
var brokerNative = regexp.MustCompile(`(?i)^(|lots?|ロット|枚)$`)

// Normalize converts value expressed in unit into standard lots.
// A known broker's multiplier wins for broker-native units, then the unit vocabulary,
// and anything unrecognised is taken to be standard lots already. It never fails.
func Normalize(value float64, unit, brokerName string) float64 {
	if !finite(value) {
		return value
	}
	unit = strings.TrimSpace(unit)

	if p, ok := broker.Lookup(brokerName); ok && p.Multiplier > 0 && brokerNative.MatchString(unit) {
		return scale(value, p.Multiplier)
	}

	for _, r := range unitRules {
		if r.pattern.MatchString(unit) {
			return scale(value, r.multiplier)
		}
	}

	return scale(value, 1.0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func scale(value, multiplier float64) float64 {
	f, _ := decimal.NewFromFloat(value).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(lotPlaces).
		Float64()
	return f
}

var phrasePattern = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*(万通貨|千通貨|通貨|万|千|lots?|ロット|枚|units?|currency|k)?`)

// Quantity is a lot phrase split into its number and unit.
type Quantity struct {
	Value float64
	Unit  string
}

// SplitPhrase pulls the first number and its unit out of a phrase such as "10万通貨" or "1.5 lots".
func SplitPhrase(phrase string) (Quantity, bool) {
	m := phrasePattern.FindStringSubmatch(strings.TrimSpace(phrase))
	if m == nil {
		return Quantity{}, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return Quantity{}, false
	}
	return Quantity{Value: v, Unit: m[2]}, true
}

// ParseLotSize parses a free-text lot phrase without broker context.
func ParseLotSize(phrase string) (float64, bool) {
	return ParseLotSizeFor(phrase, "")
}

// ParseLotSizeFor parses a lot phrase, letting brokerName resolve broker-native units.
func ParseLotSizeFor(phrase, brokerName string) (float64, bool) {
	q, ok := SplitPhrase(phrase)
	if !ok {
		return 0, false
	}
	return Normalize(q.Value, q.Unit, brokerName), true
}

// Style selects how Format renders a lot value.
type Style string

const (
	StyleStandard Style = "standard"
	StyleUnits    Style = "units"
	StyleBroker   Style = "broker"
)

// Format renders a standard lot value for display. StyleBroker falls back to
// StyleStandard when the broker has no profile.
func Format(lot float64, style Style, brokerName string) string {
	if !finite(lot) {
		s := strconv.FormatFloat(lot, 'f', -1, 64)
		if style == StyleUnits {
			return s + " units"
		}
		return s + " lot"
	}
	switch style {
	case StyleUnits:
		units := decimal.NewFromFloat(lot).Mul(decimal.NewFromInt(UnitsPerLot)).Round(0)
		return groupThousands(units.String()) + " units"
	case StyleBroker:
		p, ok := broker.Lookup(brokerName)
		if !ok || p.Multiplier <= 0 {
			return Format(lot, StyleStandard, "")
		}
		native := decimal.NewFromFloat(lot).Div(decimal.NewFromFloat(p.Multiplier)).Round(lotPlaces)
		return native.String() + p.UnitLabel
	default:
		d := decimal.NewFromFloat(lot).Round(lotPlaces)
		s := d.String()
		if i := strings.IndexByte(s, '.'); i < 0 || len(s)-i-1 < 2 {
			s = d.StringFixed(2)
		}
		return s + " lot"
	}
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
