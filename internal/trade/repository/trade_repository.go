package repository

import (
	"errors"
	"time"

	tradedomain "fxjournal-backend/internal/trade/domain"
	"fxjournal-backend/pkg/database"
	"fxjournal-backend/pkg/session"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// tradeRepository implements TradeRepository interface
type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new instance of tradeRepository
func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{
		db: db,
	}
}

func (r *tradeRepository) Create(trade *tradedomain.Trade) error {
	stamp(trade)
	return r.db.Create(trade).Error
}

func (r *tradeRepository) CreateImported(trade *tradedomain.Trade, record *tradedomain.IngestionRecord) error {
	stamp(trade)
	record.ID = uuid.New().String()
	record.UserID = trade.UserID
	record.TradeID = trade.ID
	record.CreatedAt = trade.CreatedAt

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trade).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if database.IsUniqueViolation(err) {
		return tradedomain.ErrAlreadyImported
	}
	return err
}

func (r *tradeRepository) FindByID(userID, id string) (*tradedomain.Trade, error) {
	var trade tradedomain.Trade
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// FindByUser returns one page of the user's trades, newest first, and the total count.
func (r *tradeRepository) FindByUser(userID string, filter ListFilter) ([]tradedomain.Trade, int64, error) {
	query := r.db.Model(&tradedomain.Trade{}).Where("user_id = ?", userID)
	if filter.DataSource != "" {
		query = query.Where("data_source = ?", filter.DataSource)
	}
	if filter.Pair != "" {
		query = query.Where("normalized_pair = ?", filter.Pair)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var trades []tradedomain.Trade
	err := query.Order("entry_at DESC").Order("created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&trades).Error
	if err != nil {
		return nil, 0, err
	}
	return trades, total, nil
}

func stamp(trade *tradedomain.Trade) {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	now := time.Now()
	trade.CreatedAt = now
	trade.UpdatedAt = now
	if at, ok := session.ParseTimestamp(trade.EntryTime); ok {
		trade.EntryAt = at.UTC()
	} else {
		trade.EntryAt = now.UTC()
	}
}
