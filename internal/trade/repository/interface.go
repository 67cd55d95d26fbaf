package repository

import (
	tradedomain "fxjournal-backend/internal/trade/domain"
)

// ListFilter narrows a trade listing. Zero values mean no restriction.
type ListFilter struct {
	DataSource tradedomain.DataSource
	Pair       string
	Limit      int
	Offset     int
}

// TradeRepository defines the interface for trade persistence
type TradeRepository interface {
	Create(trade *tradedomain.Trade) error
	// CreateImported stores a trade together with the ingestion record for its source
	// message in one transaction. It returns tradedomain.ErrAlreadyImported when the
	// message was imported before, whether detected up front or by the unique index.
	CreateImported(trade *tradedomain.Trade, record *tradedomain.IngestionRecord) error
	FindByID(userID, id string) (*tradedomain.Trade, error)
	FindByUser(userID string, filter ListFilter) ([]tradedomain.Trade, int64, error)
}

// IngestionRepository answers "has this message already produced a trade?"
type IngestionRepository interface {
	ExistsForMessage(userID, messageID string) (bool, error)
	FindByMessage(userID, messageID string) (*tradedomain.IngestionRecord, error)
}
