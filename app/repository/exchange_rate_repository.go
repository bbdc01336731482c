package repository

import (
	"strings"

	"github.com/milanotravel/tourbooking/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// exchangeRateRepository implements the ExchangeRateRepository interface
type exchangeRateRepository struct {
	db *gorm.DB
}

// NewExchangeRateRepository creates a new exchange rate repository instance
func NewExchangeRateRepository(db *gorm.DB) ExchangeRateRepository {
	return &exchangeRateRepository{db: db}
}

// GetByCode retrieves a stored rate by ISO 4217 code
func (r *exchangeRateRepository) GetByCode(code string) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := r.db.Where("currency_code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// Upsert creates or refreshes the stored rate for a currency
func (r *exchangeRateRepository) Upsert(code string, rate float64) error {
	row := &models.ExchangeRate{
		CurrencyCode: strings.ToUpper(strings.TrimSpace(code)),
		RateToBase:   rate,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "currency_code"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"rate_to_base",
			"updated_at",
		}),
	}).Create(row).Error
}

// ListCodes returns every currency we hold a stored rate for
func (r *exchangeRateRepository) ListCodes() ([]string, error) {
	var codes []string
	err := r.db.Model(&models.ExchangeRate{}).Pluck("currency_code", &codes).Error
	return codes, err
}
