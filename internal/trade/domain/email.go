package domain

import "time"

// RawEmail is a message as delivered by a mail source or the inbound webhook.
type RawEmail struct {
	MessageID  string
	From       string
	FromName   string
	To         string
	Subject    string
	Body       string
	IsHTML     bool
	Snippet    string
	ReceivedAt time.Time
}

// ParsedTrade is what the extractor recovers from one email.
type ParsedTrade struct {
	Pair        string
	Direction   Direction
	EntryPrice  float64
	ExitPrice   *float64
	StopLoss    *float64
	TakeProfit  *float64
	LotSize     float64
	RawLotSize  *float64
	RawLotUnit  string
	LotBroker   string
	PnLAmount   *float64
	PnLCurrency string
	PnLPips     *float64
	EntryTime   string
	ExitTime    string
	Timezone    string
	Session     string
	Broker      string
	Verified    bool
	Notes       string
	Tags        []string
	MessageID   string
}
