package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/internal/pkg/codes"
	"gorm.io/gorm"
)

// bookingRepository implements the BookingRepository interface
type bookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository creates a new booking repository instance
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// Create inserts a booking, assigning a fresh "AL" tracking code. On a code
// collision the insert is retried with a new code.
func (r *bookingRepository) Create(booking *models.Booking) error {
	var lastErr error
	for i := 0; i < codeRetries; i++ {
		if booking.Code == "" || lastErr != nil {
			code, err := codes.NewBookingCode()
			if err != nil {
				return err
			}
			booking.Code = code
		}
		lastErr = r.db.Create(booking).Error
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return lastErr
		}
	}
	return lastErr
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(id uint) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByCode retrieves a booking by its customer-facing tracking code
func (r *bookingRepository) GetByCode(code string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Where("code = ?", code).First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByProposalID retrieves the booking created from a proposal, if any
func (r *bookingRepository) GetByProposalID(proposalID uint) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Where("proposal_id = ?", proposalID).First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// List retrieves a paginated list of bookings
func (r *bookingRepository) List(offset, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&bookings).Error
	return bookings, err
}

// Count returns the total number of bookings
func (r *bookingRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Booking{}).Count(&count).Error
	return count, err
}

// ConfirmedOccupancyForDate sums adults+children of confirmed bookings for
// the exact travel date. Infants never consume capacity.
func (r *bookingRepository) ConfirmedOccupancyForDate(tourID uint, date time.Time) (int, error) {
	var total int64
	err := r.db.Model(&models.Booking{}).
		Select("COALESCE(SUM(number_of_adults + number_of_children), 0)").
		Where("tour_id = ? AND travel_date = ? AND status = ?", tourID, date.Format("2006-01-02"), models.BOOKING_CONFIRMED).
		Row().Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum confirmed occupancy: %w", err)
	}
	return int(total), nil
}

// ConfirmedOccupancyByDate returns per-date confirmed occupancy for the
// half-open range [from, to), keyed by YYYY-MM-DD.
func (r *bookingRepository) ConfirmedOccupancyByDate(tourID uint, from, to time.Time) (map[string]int, error) {
	var results []struct {
		Date  string
		Total int64
	}
	err := r.db.Model(&models.Booking{}).
		Select("DATE_FORMAT(travel_date, '%Y-%m-%d') as date, COALESCE(SUM(number_of_adults + number_of_children), 0) as total").
		Where("tour_id = ? AND travel_date >= ? AND travel_date < ? AND status = ?",
			tourID, from.Format("2006-01-02"), to.Format("2006-01-02"), models.BOOKING_CONFIRMED).
		Group("DATE_FORMAT(travel_date, '%Y-%m-%d')").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum confirmed occupancy by date: %w", err)
	}

	occupancy := make(map[string]int, len(results))
	for _, row := range results {
		occupancy[row.Date] = int(row.Total)
	}
	return occupancy, nil
}
