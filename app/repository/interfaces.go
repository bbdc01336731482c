package repository

import (
	"time"

	"github.com/milanotravel/tourbooking/app/models"
	"gorm.io/gorm"
)

// TourRepository defines read access to the CMS-owned tour records.
type TourRepository interface {
	GetByID(id uint) (*models.Tour, error)
	List(offset, limit int) ([]models.Tour, error)
	ListBookable(at time.Time) ([]models.Tour, error)
	Count() (int64, error)
}

// ProposalRepository defines the interface for proposal persistence.
type ProposalRepository interface {
	Create(proposal *models.Proposal) error
	GetByID(id uint) (*models.Proposal, error)
	GetByCode(code string) (*models.Proposal, error)
	GetWithTour(id uint) (*models.Proposal, error)
	Update(proposal *models.Proposal) error
	// UpdateStatusIf transitions the proposal only when its current status is
	// one of fromStatuses. The boolean result reports whether a row changed.
	UpdateStatusIf(id uint, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error)
	List(offset, limit int) ([]models.Proposal, error)
	ListByStatus(status string, offset, limit int) ([]models.Proposal, error)
	Count() (int64, error)
}

// TokenRepository defines the interface for confirmation token operations.
type TokenRepository interface {
	Create(token *models.ConfirmationToken) error
	GetByToken(token string) (*models.ConfirmationToken, error)
	// Consume marks a token used if and only if it is still unused. The
	// boolean result reports whether this caller won the swap.
	Consume(token string, usedAt time.Time) (bool, error)
	CountExpiredUnused(now time.Time) (int64, error)
}

// BookingRepository defines the interface for booking persistence and the
// confirmed-occupancy aggregates the capacity tracker reads.
type BookingRepository interface {
	Create(booking *models.Booking) error
	GetByID(id uint) (*models.Booking, error)
	GetByCode(code string) (*models.Booking, error)
	GetByProposalID(proposalID uint) (*models.Booking, error)
	List(offset, limit int) ([]models.Booking, error)
	Count() (int64, error)
	// ConfirmedOccupancyForDate sums adults+children of confirmed bookings
	// for the exact travel date.
	ConfirmedOccupancyForDate(tourID uint, date time.Time) (int, error)
	// ConfirmedOccupancyByDate returns per-date confirmed occupancy for the
	// half-open range [from, to).
	ConfirmedOccupancyByDate(tourID uint, from, to time.Time) (map[string]int, error)
}

// ExchangeRateRepository defines the interface for stored currency rates.
type ExchangeRateRepository interface {
	GetByCode(code string) (*models.ExchangeRate, error)
	Upsert(code string, rate float64) error
	ListCodes() ([]string, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Tour         TourRepository
	Proposal     ProposalRepository
	Token        TokenRepository
	Booking      BookingRepository
	ExchangeRate ExchangeRateRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tour:         NewTourRepository(db),
		Proposal:     NewProposalRepository(db),
		Token:        NewTokenRepository(db),
		Booking:      NewBookingRepository(db),
		ExchangeRate: NewExchangeRateRepository(db),
	}
}
