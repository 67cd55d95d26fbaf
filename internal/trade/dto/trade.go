package dto

import tradedomain "fxjournal-backend/internal/trade/domain"

// InboundEmailRequest is the payload posted by the mail relay for a forwarded email.
type InboundEmailRequest struct {
	To        string `json:"to" binding:"required"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MessageID string `json:"message_id"`
}

// ImportedTrade is the short summary returned to the relay.
type ImportedTrade struct {
	ID        string                `json:"id"`
	Pair      string                `json:"pair"`
	Direction tradedomain.Direction `json:"direction"`
	Broker    string                `json:"broker,omitempty"`
}

type InboundEmailResponse struct {
	Success   bool           `json:"success"`
	Duplicate bool           `json:"duplicate,omitempty"`
	Message   string         `json:"message,omitempty"`
	Trade     *ImportedTrade `json:"trade,omitempty"`
}

// CreateTradeRequest is a manual journal entry.
type CreateTradeRequest struct {
	Pair        string                `json:"pair" binding:"required,fxpair"`
	Direction   tradedomain.Direction `json:"direction" binding:"required,oneof=BUY SELL"`
	EntryPrice  float64               `json:"entry_price" binding:"required,gt=0"`
	ExitPrice   *float64              `json:"exit_price" binding:"omitempty,gt=0"`
	StopLoss    *float64              `json:"stop_loss" binding:"omitempty,gt=0"`
	TakeProfit  *float64              `json:"take_profit" binding:"omitempty,gt=0"`
	EntryTime   string                `json:"entry_time"`
	ExitTime    string                `json:"exit_time"`
	Timezone    string                `json:"timezone"`
	LotSize     float64               `json:"lot_size" binding:"gte=0"`
	LotUnit     string                `json:"lot_unit"`
	Broker      string                `json:"broker"`
	PnLAmount   *float64              `json:"pnl_amount"`
	PnLPips     *float64              `json:"pnl_pips"`
	PnLCurrency string                `json:"pnl_currency" binding:"omitempty,len=3"`
	Notes       string                `json:"notes"`
	Tags        []string              `json:"tags"`
}

// SyncResponse reports one pull sync run.
type SyncResponse struct {
	Imported   int                  `json:"imported"`
	Duplicates int                  `json:"duplicates"`
	Skipped    int                  `json:"skipped"`
	Failed     int                  `json:"failed"`
	Trades     []*tradedomain.Trade `json:"trades"`
}

type LotResponse struct {
	LotSize   float64 `json:"lot_size"`
	Format    string  `json:"format"`
	Formatted string  `json:"formatted"`
}
