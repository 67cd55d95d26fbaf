package parser

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

var (
	htmlMarker   = regexp.MustCompile(`(?i)<(html|body|div|p|br|table|tr|td|span|font|a|b|strong)\b[^>]*>|</[a-z][a-z0-9]*>`)
	styleBlock   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlock  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|tr|li|table|h[1-6])>`)
	cellTag      = regexp.MustCompile(`(?i)</t[dh]>`)
	anyTag       = regexp.MustCompile(`<[^>]*>`)
	danglingTag  = regexp.MustCompile(`<[^>]*$`)
	base64Body   = regexp.MustCompile(`^[A-Za-z0-9+/_\-]+={0,2}$`)
	blankRuns    = regexp.MustCompile(`[ \t\x{00a0}\x{3000}]+`)
)

// LooksLikeHTML reports whether body carries markup rather than plain text.
func LooksLikeHTML(body string) bool {
	return htmlMarker.MatchString(body)
}

// StripHTML turns markup into plain text by dropping tags. It is not an HTML parser:
// malformed markup is reduced on a best-effort basis and may leave fragments behind.
func StripHTML(body string) string {
	s := styleBlock.ReplaceAllString(body, " ")
	s = scriptBlock.ReplaceAllString(s, " ")
	s = lineBreakTag.ReplaceAllString(s, "\n")
	s = cellTag.ReplaceAllString(s, " ")
	s = anyTag.ReplaceAllString(s, " ")
	s = danglingTag.ReplaceAllString(s, " ")
	return strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")
}

// decodeBase64Body returns the decoded text when the whole body is a base64 blob.
func decodeBase64Body(body string) (string, bool) {
	compact := strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, body)
	if len(compact) < 16 || !base64Body.MatchString(compact) {
		return "", false
	}
	// a body that was wrapped at 76 columns must not contain spaces inside lines
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if strings.ContainsAny(strings.TrimSpace(line), " \t") {
			return "", false
		}
	}

	encodings := []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding}
	for _, enc := range encodings {
		data, err := enc.DecodeString(compact)
		if err != nil {
			continue
		}
		if !utf8.Valid(data) || !mostlyPrintable(string(data)) {
			continue
		}
		return string(data), true
	}
	return "", false
}

func mostlyPrintable(s string) bool {
	if s == "" {
		return false
	}
	total, printable := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return printable*10 >= total*9
}

// normalizeText prepares an email for the field strategies: decode, de-markup,
// fold full-width characters and unify minus signs.
func normalizeText(subject, body string) string {
	if decoded, ok := decodeBase64Body(body); ok {
		body = decoded
	}
	if LooksLikeHTML(body) {
		body = StripHTML(body)
	}

	text := subject + "\n" + body
	text = width.Fold.String(text)
	text = strings.NewReplacer(
		"−", "-", // minus sign
		"‐", "-",
		"–", "-",
		"—", "-",
		"▲", "-",
		"\r\n", "\n",
		"\r", "\n",
	).Replace(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRuns.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, "\n")
}
