package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// Direction of a position
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// DataSource distinguishes how a trade entered the journal
type DataSource string

const (
	DataSourceManual       DataSource = "manual"
	DataSourceEmailSync    DataSource = "email_sync"
	DataSourceEmailForward DataSource = "email_forward"
	DataSourceDemo         DataSource = "demo"
)

// Channel is the automated path a raw email arrived through
type Channel string

const (
	ChannelMailSync Channel = "mail_sync"
	ChannelForward  Channel = "forward"
	ChannelDemo     Channel = "demo"
)

// DataSource maps an ingestion channel onto the trade's data source tag.
func (c Channel) DataSource() DataSource {
	switch c {
	case ChannelForward:
		return DataSourceEmailForward
	case ChannelDemo:
		return DataSourceDemo
	default:
		return DataSourceEmailSync
	}
}

// Tag is the human-readable label attached to trades from this channel.
func (c Channel) Tag() string {
	switch c {
	case ChannelForward:
		return "Forwarded"
	case ChannelDemo:
		return "Demo"
	default:
		return "Auto Sync"
	}
}

// PnL sources
const (
	PnLSourceBroker = "broker_email"
	PnLSourceManual = "manual"
)

// ErrAlreadyImported is returned when a message already produced a trade for the user.
var ErrAlreadyImported = errors.New("email already imported")

// Trade is a journal entry
type Trade struct {
	ID                 string                      `json:"id" gorm:"primaryKey"`
	UserID             string                      `json:"user_id" gorm:"index;not null"`
	Pair               string                      `json:"pair" gorm:"not null"`
	NormalizedPair     string                      `json:"normalized_pair" gorm:"index;not null"`
	Direction          Direction                   `json:"direction" gorm:"not null"`
	EntryPrice         float64                     `json:"entry_price"`
	ExitPrice          *float64                    `json:"exit_price,omitempty"`
	StopLoss           *float64                    `json:"stop_loss,omitempty"`
	TakeProfit         *float64                    `json:"take_profit,omitempty"`
	EntryTime          string                      `json:"entry_time"`
	// EntryAt is EntryTime as a UTC instant, used for ordering across offsets.
	EntryAt            time.Time                   `json:"-" gorm:"index"`
	ExitTime           string                      `json:"exit_time,omitempty"`
	Timezone           string                      `json:"timezone"`
	Session            string                      `json:"session,omitempty"`
	LotSize            float64                     `json:"lot_size"`
	RawLotSize         *float64                    `json:"raw_lot_size,omitempty"`
	RawLotUnit         string                      `json:"raw_lot_unit,omitempty"`
	LotBroker          string                      `json:"lot_broker,omitempty"`
	PnLAmount          *float64                    `json:"pnl_amount,omitempty"`
	PnLPips            *float64                    `json:"pnl_pips,omitempty"`
	PnLCurrency        string                      `json:"pnl_currency,omitempty"`
	PnLSource          string                      `json:"pnl_source,omitempty"`
	Notes              string                      `json:"notes,omitempty"`
	Tags               datatypes.JSONSlice[string] `json:"tags"`
	IsVerified         bool                        `json:"is_verified"`
	VerificationSource string                      `json:"verification_source,omitempty"`
	Broker             string                      `json:"broker,omitempty"`
	SourceMessageID    *string                     `json:"source_message_id,omitempty" gorm:"index"`
	DataSource         DataSource                  `json:"data_source" gorm:"index;not null"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// IngestionRecord links a source message to the trade it produced.
// At most one exists per (user, message); rows are never updated.
type IngestionRecord struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_ingestion_user_message"`
	MessageID string    `json:"message_id" gorm:"not null;uniqueIndex:idx_ingestion_user_message"`
	TradeID   string    `json:"trade_id" gorm:"index;not null"`
	Channel   Channel   `json:"channel" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}
