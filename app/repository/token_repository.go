package repository

import (
	"time"

	"github.com/milanotravel/tourbooking/app/models"
	"gorm.io/gorm"
)

// tokenRepository implements the TokenRepository interface
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new confirmation token repository instance
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Create inserts a freshly issued confirmation token
func (r *tokenRepository) Create(token *models.ConfirmationToken) error {
	return r.db.Create(token).Error
}

// GetByToken retrieves a token row together with its proposal
func (r *tokenRepository) GetByToken(token string) (*models.ConfirmationToken, error) {
	var t models.ConfirmationToken
	err := r.db.Preload("Proposal").Where("token = ?", token).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Consume is the compare-and-swap on used_at: only one of two concurrent
// callers sees RowsAffected > 0.
func (r *tokenRepository) Consume(token string, usedAt time.Time) (bool, error) {
	tx := r.db.Model(&models.ConfirmationToken{}).
		Where("token = ? AND used_at IS NULL", token).
		Update("used_at", usedAt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// CountExpiredUnused reports how many issued tokens lapsed without use.
func (r *tokenRepository) CountExpiredUnused(now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.ConfirmationToken{}).
		Where("used_at IS NULL AND expires_at < ?", now).
		Count(&count).Error
	return count, err
}
