package usecase

import (
	"context"
	"errors"

	authdomain "fxjournal-backend/internal/auth/domain"
	tradedomain "fxjournal-backend/internal/trade/domain"
	tradedto "fxjournal-backend/internal/trade/dto"
	"fxjournal-backend/internal/trade/repository"
	"fxjournal-backend/pkg/lotsize"
)

var (
	ErrUnauthorized      = errors.New("invalid webhook secret")
	ErrRecipientNotFound = errors.New("no user matches the recipient address")
	ErrUserNotFound      = errors.New("user not found")
	ErrMailboxNotLinked  = errors.New("no mailbox linked to this account")
	ErrTradeNotFound     = errors.New("trade not found")
	ErrImportFailed      = errors.New("trades could not be saved")
	ErrInvalidPair       = errors.New("unrecognised currency pair")
	ErrInvalidTimestamp  = errors.New("unrecognised timestamp")
	ErrInvalidTimezone   = errors.New("unknown timezone")
)

// MailSource lists recent broker confirmation emails for a user.
type MailSource interface {
	FetchTradeEmails(ctx context.Context, user *authdomain.User, limit int) ([]*tradedomain.RawEmail, error)
}

// MailWatcher registers push notifications for a user's mailbox and returns the
// history id the watch starts from.
type MailWatcher interface {
	WatchMailbox(ctx context.Context, user *authdomain.User) (uint64, error)
}

// Notifier is told about trades created by an automated import.
type Notifier interface {
	TradesImported(ctx context.Context, userID string, trades []*tradedomain.Trade)
}

// UserLookup is the part of the user repository ingestion needs.
type UserLookup interface {
	FindByID(id string) (*authdomain.User, error)
	FindByEmail(email string) (*authdomain.User, error)
}

// IngestionUsecase turns raw emails into journal trades.
type IngestionUsecase interface {
	// IngestEmails runs each email through extract, dedupe and persist, one at a time.
	// A failing email never aborts the batch.
	IngestEmails(ctx context.Context, userID string, channel tradedomain.Channel, emails []*tradedomain.RawEmail) (*Summary, error)
	// SyncMailbox pulls the latest page of matching mail from the user's linked mailbox.
	SyncMailbox(ctx context.Context, userID string) (*Summary, error)
	// WatchMailbox asks the mail provider to push new-mail notifications.
	WatchMailbox(ctx context.Context, userID string) (uint64, error)
	// ImportForwarded handles one email posted by the inbound relay.
	ImportForwarded(ctx context.Context, secret string, req *tradedto.InboundEmailRequest) (*tradedto.InboundEmailResponse, error)
	// ResolveRecipient maps a forwarding alias back to its user.
	ResolveRecipient(address string) (*authdomain.User, error)
}

// TradeUsecase covers the journal queries and manual entry.
type TradeUsecase interface {
	ListTrades(userID string, filter repository.ListFilter) ([]tradedomain.Trade, int64, error)
	GetTrade(userID, id string) (*tradedomain.Trade, error)
	CreateTrade(userID string, req *tradedto.CreateTradeRequest) (*tradedomain.Trade, error)
	FormatLot(userID, id string, style lotsize.Style) (string, float64, error)
}
