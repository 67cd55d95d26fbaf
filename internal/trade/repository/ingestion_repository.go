package repository

import (
	"errors"

	tradedomain "fxjournal-backend/internal/trade/domain"

	"gorm.io/gorm"
)

// ingestionRepository implements IngestionRepository interface
type ingestionRepository struct {
	db *gorm.DB
}

// NewIngestionRepository creates a new instance of ingestionRepository
func NewIngestionRepository(db *gorm.DB) IngestionRepository {
	return &ingestionRepository{
		db: db,
	}
}

// ExistsForMessage checks if a message has already produced a trade for a user
func (r *ingestionRepository) ExistsForMessage(userID, messageID string) (bool, error) {
	var count int64
	err := r.db.Model(&tradedomain.IngestionRecord{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ingestionRepository) FindByMessage(userID, messageID string) (*tradedomain.IngestionRecord, error) {
	var record tradedomain.IngestionRecord
	err := r.db.Where("user_id = ? AND message_id = ?", userID, messageID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
