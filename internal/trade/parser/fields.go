package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fxjournal-backend/internal/trade/domain"
)

// strategy is one way of finding a field. Chains of strategies are tried in order
// and the first one that produces a value wins.
type strategy[T any] struct {
	name string
	find func(text string) (T, bool)
}

func firstMatch[T any](text string, chain []strategy[T]) (T, string, bool) {
	for _, s := range chain {
		if v, ok := s.find(text); ok {
			return v, s.name, true
		}
	}
	var zero T
	return zero, "", false
}

const numberExpr = `([+-]?[0-9][0-9,]*(?:\.[0-9]+)?)`

// datePart spots a number that is really the year of a date ("2024/03/15", "2024年").
var datePart = regexp.MustCompile(`^(?:[/\-]\d|年)`)

// parseNumber reads a decimal with optional thousands separators. Malformed
// numbers ("1,2,,3.", "1.2.3") are rejected so the caller can try the next match.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, ",,") || strings.HasSuffix(s, ",") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// precededBy reports whether one of the words ends right before offset, ignoring
// blanks and hyphens in between. RE2 has no look-behind, so exclusions live here.
func precededBy(text string, offset int, words []string) bool {
	if len(words) == 0 {
		return false
	}
	start := offset - 24
	if start < 0 {
		start = 0
	}
	before := strings.ToLower(strings.TrimRight(text[start:offset], " -_\t"))
	for _, w := range words {
		if strings.HasSuffix(before, w) {
			return true
		}
	}
	return false
}

// labeledNumber finds a number printed after one of the labels, e.g. "約定価格: 150.20".
func labeledNumber(labels string, exclude ...string) func(string) (float64, bool) {
	re := regexp.MustCompile(`(?i)(?:` + labels + `)\s*(?:\([^)\n]*\))?\s*[:=]?\s*[¥$€£]?\s*` + numberExpr)
	return func(text string) (float64, bool) {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if precededBy(text, m[0], exclude) || datePart.MatchString(text[m[1]:]) {
				continue
			}
			if v, ok := parseNumber(text[m[2]:m[3]]); ok {
				return v, true
			}
		}
		return 0, false
	}
}

// onlyIf guards a finder with a predicate over the whole text.
func onlyIf(pred func(string) bool, find func(string) (float64, bool)) func(string) (float64, bool) {
	return func(text string) (float64, bool) {
		if !pred(text) {
			return 0, false
		}
		return find(text)
	}
}

// isSettlement reports whether the email confirms closing a position, in which case
// the executed price is the exit price.
func isSettlement(text string) bool {
	return strings.Contains(text, "決済")
}

var (
	exitWords     = []string{"exit", "close", "closing", "closed", "決済"}
	nonEntryWords = []string{"exit", "close", "closing", "closed", "決済", "stop", "loss", "limit", "profit", "take", "逆指値", "指値", "損切", "利確", "sl", "tp"}
)

var entryChain = []strategy[float64]{
	{"entry-label-ja", labeledNumber(`新規約定価格|新規約定レート|平均取得価格|取得価格|取得レート|建玉価格|建値`, exitWords...)},
	{"entry-label-en", labeledNumber(`entry\s*price|entry\s*rate|open(?:ing)?\s*price|open\s*rate|fill(?:ed)?\s*price|executed\s*price|execution\s*price`, exitWords...)},
	{"executed-price", onlyIf(func(s string) bool { return !isSettlement(s) }, labeledNumber(`約定価格|約定レート|約定値`, exitWords...))},
	{"at-price", atPrice},
	{"generic-price", labeledNumber(`price|rate|価格|レート|entry|open`, nonEntryWords...)},
}

var exitChain = []strategy[float64]{
	{"exit-label", labeledNumber(`決済約定価格|決済約定レート|決済価格|決済レート|exit\s*price|exit\s*rate|close\s*price|close\s*rate|closing\s*price|closed\s*at`)},
	{"settlement-price", onlyIf(isSettlement, labeledNumber(`約定価格|約定レート|約定値`, "新規"))},
	{"exit-generic", labeledNumber(`\bexit\b|\bclose\b`, "stop", "take")},
}

var stopLossChain = []strategy[float64]{
	{"stop-loss", labeledNumber(`stop\s*loss(?:\s*price)?|\bS/?L\b|損切り?(?:価格|レート)?|逆指値(?:価格|レート)?|ストップ(?:ロス)?(?:価格)?`)},
}

var takeProfitChain = []strategy[float64]{
	{"take-profit", labeledNumber(`take\s*profit(?:\s*price)?|\bT/?P\b|利確(?:価格|レート)?|利益確定(?:価格|レート)?|リミット(?:価格)?|\blimit\s*price\b`, "stop")},
}

var atPricePattern = regexp.MustCompile(`@\s*` + numberExpr)

func atPrice(text string) (float64, bool) {
	for _, m := range atPricePattern.FindAllStringSubmatchIndex(text, -1) {
		if v, ok := parseNumber(text[m[2]:m[3]]); ok && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// direction

var (
	labeledDirection = regexp.MustCompile(`(?i)(?:売買区分|売買|取引区分|注文区分|side|direction|action|order\s*type|ポジション)\s*:?\s*(?:新規|決済)?\s*(buy|sell|long|short|買い?|売り?|ロング|ショート)`)
	directionWord    = regexp.MustCompile(`(?i)\b(buy|sell|long|short|bought|sold)\b|買い?|売り?|ロング|ショート`)
	// 売買 names the buy/sell field itself and must not be read as either side
	directionNoise = regexp.MustCompile(`売買`)
)

const directionWindow = 60

func directionOf(word string) domain.Direction {
	w := strings.ToLower(word)
	switch {
	case w == "buy", w == "long", w == "bought", strings.HasPrefix(w, "買"), w == "ロング":
		return domain.DirectionBuy
	default:
		return domain.DirectionSell
	}
}

func maskNoise(text string) string {
	return directionNoise.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
}

func findLabeledDirection(text string) (domain.Direction, bool) {
	m := labeledDirection.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return directionOf(m[1]), true
}

// directionNear picks the direction keyword closest to the pair token.
func directionNear(pairIndex int) func(string) (domain.Direction, bool) {
	return func(text string) (domain.Direction, bool) {
		if pairIndex < 0 {
			return "", false
		}
		masked := maskNoise(text)
		best, bestDist := "", directionWindow+1
		for _, m := range directionWord.FindAllStringIndex(masked, -1) {
			dist := pairIndex - m[1]
			if m[0] >= pairIndex {
				dist = m[0] - pairIndex
			}
			if dist < 0 {
				dist = 0
			}
			if dist < bestDist {
				best, bestDist = masked[m[0]:m[1]], dist
			}
		}
		if best == "" {
			return "", false
		}
		return directionOf(best), true
	}
}

func findAnyDirection(text string) (domain.Direction, bool) {
	masked := maskNoise(text)
	loc := directionWord.FindStringIndex(masked)
	if loc == nil {
		return "", false
	}
	return directionOf(masked[loc[0]:loc[1]]), true
}

// lot size

type lotMatch struct {
	value float64
	unit  string
}

const lotUnitExpr = `(万通貨|千通貨|通貨|万|千|lots?|ロット|枚|units?|k)`

var (
	labeledLot = regexp.MustCompile(`(?i)(?:取引数量|約定数量|注文数量|新規数量|決済数量|数量|取引量|枚数|lot\s*size|lots?|volume|quantity|qty|size)\s*(?:\([^)\n]*\))?\s*:?\s*` + numberExpr + `\s*` + lotUnitExpr + `?`)
	inlineLot  = regexp.MustCompile(`(?i)` + numberExpr + `\s*(万通貨|千通貨|通貨|lots?|ロット|枚|units?)`)
	kiloLot    = regexp.MustCompile(`(?i)` + numberExpr + `\s*k\b`)
)

func lotFinder(re *regexp.Regexp) func(string) (lotMatch, bool) {
	return func(text string) (lotMatch, bool) {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			v, ok := parseNumber(text[m[2]:m[3]])
			if !ok || v <= 0 {
				continue
			}
			unit := ""
			if len(m) > 4 && m[4] >= 0 {
				unit = text[m[4]:m[5]]
			}
			return lotMatch{value: v, unit: unit}, true
		}
		return lotMatch{}, false
	}
}

func kiloFinder(text string) (lotMatch, bool) {
	for _, m := range kiloLot.FindAllStringSubmatchIndex(text, -1) {
		if v, ok := parseNumber(text[m[2]:m[3]]); ok && v > 0 {
			return lotMatch{value: v, unit: "k"}, true
		}
	}
	return lotMatch{}, false
}

var lotChain = []strategy[lotMatch]{
	{"lot-label", lotFinder(labeledLot)},
	{"lot-inline", lotFinder(inlineLot)},
	{"lot-kilo", kiloFinder},
}

// profit and loss

type pnlMatch struct {
	amount   float64
	currency string
}

var (
	labeledPnL = regexp.MustCompile(`(?i)(?:決済損益|売買損益|実現損益|確定損益|損益|realized\s*p/?l|profit\s*(?:&|and|/)\s*loss|\bp/?l\b|\bpnl\b|profit)\s*(?:\([^)\n]*\))?\s*:?\s*([+-])?\s*([¥$€£])?\s*([+-]?[0-9][0-9,]*(?:\.[0-9]+)?)\s*(円|JPY|USD|EUR|GBP|AUD|pips?)?`)
	labeledPips = regexp.MustCompile(`(?i)(?:獲得pips|pips損益|pips|pip)\s*:\s*` + numberExpr)
	inlinePips  = regexp.MustCompile(`(?i)` + numberExpr + `\s*pips?\b`)
)

var currencySymbols = map[string]string{
	"¥": "JPY", "円": "JPY", "$": "USD", "€": "EUR", "£": "GBP",
}

func findPnL(text string) (pnlMatch, bool) {
	for _, m := range labeledPnL.FindAllStringSubmatchIndex(text, -1) {
		if precededBy(text, m[0], []string{"take"}) {
			continue
		}
		suffix := group(text, m, 4)
		if strings.HasPrefix(strings.ToLower(suffix), "pip") {
			continue
		}
		v, ok := parseNumber(group(text, m, 3))
		if !ok {
			continue
		}
		if group(text, m, 1) == "-" {
			v = -v
		}
		currency := currencySymbols[group(text, m, 2)]
		if suffix != "" {
			if c, ok := currencySymbols[suffix]; ok {
				currency = c
			} else {
				currency = strings.ToUpper(suffix)
			}
		}
		return pnlMatch{amount: v, currency: currency}, true
	}
	return pnlMatch{}, false
}

func findPips(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{labeledPips, inlinePips} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if v, ok := parseNumber(text[m[2]:m[3]]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func group(text string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return text[m[2*i]:m[2*i+1]]
}

// timestamps

var (
	isoTimestamp   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:\d{2})`)
	localTimestamp = regexp.MustCompile(`(\d{4})\s*[/\-.年]\s*(\d{1,2})\s*[/\-.月]\s*(\d{1,2})\s*日?\s*(?:\([^)\n]{1,3}\))?\s*(\d{1,2})\s*[:時]\s*(\d{2})(?:\s*[:分]\s*(\d{2}))?`)
)

// timestampAfter finds the first timestamp following one of the labels.
func timestampAfter(labels string, exclude ...string) func(string) (string, bool) {
	re := regexp.MustCompile(`(?i)(?:` + labels + `)\s*(?:\([^)\n]*\))?\s*:?\s*`)
	return func(text string) (string, bool) {
		for _, m := range re.FindAllStringIndex(text, -1) {
			if precededBy(text, m[0], exclude) {
				continue
			}
			if ts, ok := timestampAt(text[m[1]:]); ok {
				return ts, true
			}
		}
		return "", false
	}
}

// timestampAt reads a timestamp at the very start of s.
func timestampAt(s string) (string, bool) {
	if loc := isoTimestamp.FindStringIndex(s); loc != nil && loc[0] == 0 {
		return s[:loc[1]], true
	}
	if m := localTimestamp.FindStringSubmatchIndex(s); m != nil && m[0] == 0 {
		return canonicalLocal(s, m), true
	}
	return "", false
}

func findISOTimestamp(text string) (string, bool) {
	ts := isoTimestamp.FindString(text)
	return ts, ts != ""
}

func findLocalTimestamp(text string) (string, bool) {
	m := localTimestamp.FindStringSubmatchIndex(text)
	if m == nil {
		return "", false
	}
	return canonicalLocal(text, m), true
}

// canonicalLocal rewrites a matched local date-time as "YYYY-MM-DD HH:MM:SS".
func canonicalLocal(text string, m []int) string {
	num := func(i int) int {
		n, _ := strconv.Atoi(group(text, m, i))
		return n
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", num(1), num(2), num(3), num(4), num(5), num(6))
}

var entryTimeChain = []strategy[string]{
	{"entry-time-label", timestampAfter(`新規約定日時|約定日時|約定時刻|注文日時|取引日時|entry\s*time|open\s*time|opened\s*at|executed\s*at|execution\s*time|trade\s*time|日時|time|date`, exitWords...)},
	{"iso-anywhere", findISOTimestamp},
	{"local-anywhere", findLocalTimestamp},
}

var exitTimeChain = []strategy[string]{
	{"exit-time-label", timestampAfter(`決済約定日時|決済日時|exit\s*time|close\s*time|closed\s*at|closing\s*time`)},
}
