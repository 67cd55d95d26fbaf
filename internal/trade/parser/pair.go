package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// isoCurrencies are the codes accepted when guessing a pair that is not in knownPairs.
var isoCurrencies = map[string]bool{
	"USD": true, "JPY": true, "EUR": true, "GBP": true, "AUD": true, "NZD": true,
	"CAD": true, "CHF": true, "ZAR": true, "TRY": true, "MXN": true, "CNH": true,
	"CNY": true, "HKD": true, "SGD": true, "NOK": true, "SEK": true, "DKK": true,
	"PLN": true, "HUF": true, "CZK": true, "KRW": true, "INR": true, "RUB": true,
	"BRL": true, "THB": true,
}

var knownPairs = map[string]bool{
	"USDJPY": true, "EURJPY": true, "GBPJPY": true, "AUDJPY": true, "NZDJPY": true,
	"CADJPY": true, "CHFJPY": true, "ZARJPY": true, "TRYJPY": true, "MXNJPY": true,
	"CNHJPY": true, "HKDJPY": true, "SGDJPY": true, "NOKJPY": true, "SEKJPY": true,
	"EURUSD": true, "GBPUSD": true, "AUDUSD": true, "NZDUSD": true, "USDCAD": true,
	"USDCHF": true, "USDZAR": true, "USDMXN": true, "USDTRY": true, "USDCNH": true,
	"USDHKD": true, "USDSGD": true, "EURGBP": true, "EURAUD": true, "EURCHF": true,
	"EURCAD": true, "EURNZD": true, "GBPAUD": true, "GBPCHF": true, "GBPCAD": true,
	"GBPNZD": true, "AUDNZD": true, "AUDCAD": true, "AUDCHF": true, "NZDCAD": true,
	"NZDCHF": true, "CADCHF": true,
}

type japanesePair struct {
	pattern *regexp.Regexp
	code    string
}

// japanesePairs is searched in order; names that contain a shorter name come first
// so that 豪ドル/円 is never read as ドル/円.
var japanesePairs = buildJapanesePairs([][2]string{
	{"米ドル/円", "USDJPY"},
	{"ユーロ/米ドル", "EURUSD"},
	{"ユーロ/ドル", "EURUSD"},
	{"ユーロ/ポンド", "EURGBP"},
	{"ユーロ/豪ドル", "EURAUD"},
	{"ユーロ/円", "EURJPY"},
	{"英ポンド/米ドル", "GBPUSD"},
	{"ポンド/米ドル", "GBPUSD"},
	{"ポンド/ドル", "GBPUSD"},
	{"英ポンド/円", "GBPJPY"},
	{"ポンド/円", "GBPJPY"},
	{"豪ドル/米ドル", "AUDUSD"},
	{"豪ドル/ドル", "AUDUSD"},
	{"豪ドル/NZドル", "AUDNZD"},
	{"豪ドル/円", "AUDJPY"},
	{"NZドル/米ドル", "NZDUSD"},
	{"NZドル/ドル", "NZDUSD"},
	{"NZドル/円", "NZDJPY"},
	{"ニュージーランドドル/円", "NZDJPY"},
	{"米ドル/カナダドル", "USDCAD"},
	{"米ドル/スイスフラン", "USDCHF"},
	{"カナダドル/円", "CADJPY"},
	{"加ドル/円", "CADJPY"},
	{"スイスフラン/円", "CHFJPY"},
	{"南アフリカランド/円", "ZARJPY"},
	{"南アランド/円", "ZARJPY"},
	{"ランド/円", "ZARJPY"},
	{"トルコリラ/円", "TRYJPY"},
	{"メキシコペソ/円", "MXNJPY"},
	{"人民元/円", "CNHJPY"},
	{"香港ドル/円", "HKDJPY"},
	{"ドル/円", "USDJPY"},
})

func buildJapanesePairs(names [][2]string) []japanesePair {
	out := make([]japanesePair, 0, len(names))
	for _, n := range names {
		parts := strings.SplitN(n[0], "/", 2)
		expr := regexp.QuoteMeta(parts[0]) + `\s*/?\s*` + regexp.QuoteMeta(parts[1])
		out = append(out, japanesePair{pattern: regexp.MustCompile(expr), code: n[1]})
	}
	return out
}

var (
	labeledPair = regexp.MustCompile(`(?i)(?:通貨ペア|銘柄|symbol|instrument|pair)\s*:?\s*([A-Za-z]{3})\s*[/\-_ ]?\s*([A-Za-z]{3})\b`)
	asciiPair   = regexp.MustCompile(`(?i)\b([A-Z]{3})\s?[/\-_]?\s?([A-Z]{3})\b`)
	upperPair   = regexp.MustCompile(`\b([A-Z]{3})/?([A-Z]{3})\b`)
	nonLetters  = regexp.MustCompile(`[^A-Z]`)
)

// pairMatch is a pair found in text together with the byte offset it was found at.
type pairMatch struct {
	code  string
	index int
}

// NormalizePair reduces any accepted spelling ("usd/jpy", "USD JPY", "ドル円") to
// the six-letter code.
func NormalizePair(s string) (string, bool) {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return "", false
	}
	for _, jp := range japanesePairs {
		if loc := jp.pattern.FindStringIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
			return jp.code, true
		}
	}
	code := nonLetters.ReplaceAllString(strings.ToUpper(s), "")
	if len(code) != 6 {
		return "", false
	}
	if knownPairs[code] || (isoCurrencies[code[:3]] && isoCurrencies[code[3:]] && code[:3] != code[3:]) {
		return code, true
	}
	return "", false
}

func findLabeledPair(text string) (pairMatch, bool) {
	for _, m := range labeledPair.FindAllStringSubmatchIndex(text, -1) {
		code := strings.ToUpper(text[m[2]:m[3]] + text[m[4]:m[5]])
		if knownPairs[code] || (isoCurrencies[code[:3]] && isoCurrencies[code[3:]]) {
			return pairMatch{code: code, index: m[2]}, true
		}
	}
	return pairMatch{}, false
}

func findKnownPair(text string) (pairMatch, bool) {
	return scanPairs(text, asciiPair, func(base, quote string) bool {
		return knownPairs[strings.ToUpper(base+quote)]
	})
}

func findJapanesePair(text string) (pairMatch, bool) {
	for _, jp := range japanesePairs {
		if loc := jp.pattern.FindStringIndex(text); loc != nil {
			return pairMatch{code: jp.code, index: loc[0]}, true
		}
	}
	return pairMatch{}, false
}

// guessPair accepts any two distinct upper-case ISO codes written together.
func guessPair(text string) (pairMatch, bool) {
	return scanPairs(text, upperPair, func(base, quote string) bool {
		return base != quote && isoCurrencies[base] && isoCurrencies[quote]
	})
}

// scanPairs walks candidate letter triples one at a time. A rejected candidate only
// consumes its first half, so "Buy EUR/USD" still reaches EUR/USD after BUY+EUR fails.
func scanPairs(text string, re *regexp.Regexp, accept func(base, quote string) bool) (pairMatch, bool) {
	pos := 0
	for pos < len(text) {
		m := re.FindStringSubmatchIndex(text[pos:])
		if m == nil {
			break
		}
		base, quote := text[pos+m[2]:pos+m[3]], text[pos+m[4]:pos+m[5]]
		if accept(base, quote) {
			return pairMatch{code: strings.ToUpper(base + quote), index: pos + m[0]}, true
		}
		pos += m[3]
	}
	return pairMatch{}, false
}
