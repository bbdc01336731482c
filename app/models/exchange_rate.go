package models

import "time"

// ExchangeRate stores one fetched conversion rate relative to the base
// currency (USD). Rows are upserted by the currency converter and refreshed
// by the nightly scheduler job.
type ExchangeRate struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CurrencyCode string    `gorm:"uniqueIndex;type:varchar(3)" json:"currency_code"`
	RateToBase   float64   `gorm:"type:decimal(12,6)" json:"rate_to_base"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
