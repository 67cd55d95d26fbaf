// Package parser recovers structured trades from broker confirmation emails.
package parser

import (
	"strings"
	"time"
	"unicode/utf8"

	"fxjournal-backend/internal/trade/domain"
	"fxjournal-backend/pkg/broker"
	"fxjournal-backend/pkg/lotsize"
	"fxjournal-backend/pkg/session"
)

// Tags attached when a field had to be inferred rather than read.
const (
	TagDirectionUnconfirmed = "direction-unconfirmed"
	TagEntryInferred        = "entry-inferred"
	TagTimeDefaulted        = "time-defaulted"
)

const maxNoteSubject = 120

// Extractor turns one email into a ParsedTrade. It is stateless apart from its
// zone and clock and is safe for concurrent use.
type Extractor struct {
	loc *time.Location
	now func() time.Time
}

// NewExtractor returns an extractor reading bare local times in loc.
func NewExtractor(loc *time.Location) *Extractor {
	if loc == nil {
		loc = session.DefaultZone
	}
	return &Extractor{loc: loc, now: time.Now}
}

// WithClock replaces the clock used when an email carries no timestamp.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	cp := *e
	cp.now = now
	return &cp
}

// Location is the zone bare local timestamps are resolved in.
func (e *Extractor) Location() *time.Location {
	return e.loc
}

// Extract parses subject and body without sender information; the broker is
// detected from the text itself when possible.
func (e *Extractor) Extract(subject, body, messageID string) (*domain.ParsedTrade, bool) {
	return e.extract("", "", subject, body, messageID)
}

// ExtractEmail parses a raw email, detecting the broker from its sender first.
func (e *Extractor) ExtractEmail(email *domain.RawEmail) (*domain.ParsedTrade, bool) {
	if email == nil {
		return nil, false
	}
	body := email.Body
	if strings.TrimSpace(body) == "" {
		body = email.Snippet
	}
	return e.extract(email.From, email.FromName, email.Subject, body, email.MessageID)
}

func (e *Extractor) extract(from, fromName, subject, body, messageID string) (*domain.ParsedTrade, bool) {
	text := normalizeText(subject, body)
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	pair, _, ok := firstMatch(text, []strategy[pairMatch]{
		{"pair-label", findLabeledPair},
		{"pair-known", findKnownPair},
		{"pair-japanese", findJapanesePair},
		{"pair-guess", guessPair},
	})
	if !ok {
		return nil, false
	}

	var tags []string

	entry, _, hasEntry := firstMatch(text, entryChain)
	exit, _, hasExit := firstMatch(text, exitChain)
	if hasEntry && hasExit && entry == exit && isSettlement(text) {
		// only the executed price was printed, and it closed the position
		hasEntry = false
	}
	if !hasEntry {
		if !hasExit {
			return nil, false
		}
		entry = exit
		tags = append(tags, TagEntryInferred)
	}

	brokerName := broker.Detect(from, fromName)
	if brokerName == "" {
		brokerName = broker.Detect("", text)
	}

	trade := &domain.ParsedTrade{
		Pair:       pair.code,
		EntryPrice: entry,
		Broker:     brokerName,
		MessageID:  messageID,
		Timezone:   e.loc.String(),
	}
	if hasExit {
		trade.ExitPrice = ptr(exit)
	}

	direction, _, ok := firstMatch(text, []strategy[domain.Direction]{
		{"direction-label", findLabeledDirection},
		{"direction-near-pair", directionNear(pair.index)},
		{"direction-anywhere", findAnyDirection},
	})
	if !ok {
		direction = domain.DirectionBuy
		tags = append(tags, TagDirectionUnconfirmed)
	}
	trade.Direction = direction

	if v, _, ok := firstMatch(text, stopLossChain); ok {
		trade.StopLoss = ptr(v)
	}
	if v, _, ok := firstMatch(text, takeProfitChain); ok {
		trade.TakeProfit = ptr(v)
	}

	if lot, _, ok := firstMatch(text, lotChain); ok {
		trade.RawLotSize = ptr(lot.value)
		trade.RawLotUnit = lot.unit
		trade.LotBroker = brokerName
		trade.LotSize = lotsize.Normalize(lot.value, lot.unit, brokerName)
	}

	if pnl, ok := findPnL(text); ok {
		trade.PnLAmount = ptr(pnl.amount)
		trade.PnLCurrency = pnl.currency
	}
	if pips, ok := findPips(text); ok {
		trade.PnLPips = ptr(pips)
	}

	if raw, _, ok := firstMatch(text, entryTimeChain); ok {
		trade.EntryTime, _ = session.ResolveTimestamp(raw, e.loc)
	}
	if trade.EntryTime == "" {
		trade.EntryTime = e.now().In(e.loc).Format(time.RFC3339)
		tags = append(tags, TagTimeDefaulted)
	}
	if raw, _, ok := firstMatch(text, exitTimeChain); ok {
		trade.ExitTime, _ = session.ResolveTimestamp(raw, e.loc)
	}
	if name, ok := session.ForTimestamp(trade.EntryTime, e.loc); ok {
		trade.Session = string(name)
	}

	trade.Notes = noteFor(subject)
	trade.Tags = tags
	return trade, true
}

func noteFor(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Imported from email"
	}
	if utf8.RuneCountInString(subject) > maxNoteSubject {
		subject = string([]rune(subject)[:maxNoteSubject]) + "…"
	}
	return "Imported from email: " + subject
}

func ptr(v float64) *float64 {
	return &v
}
