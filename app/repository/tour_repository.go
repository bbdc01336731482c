package repository

import (
	"time"

	"github.com/milanotravel/tourbooking/app/models"
	"gorm.io/gorm"
)

// tourRepository implements the TourRepository interface
type tourRepository struct {
	db *gorm.DB
}

// NewTourRepository creates a new tour repository instance
func NewTourRepository(db *gorm.DB) TourRepository {
	return &tourRepository{db: db}
}

// GetByID retrieves a tour by its ID
func (r *tourRepository) GetByID(id uint) (*models.Tour, error) {
	var tour models.Tour
	err := r.db.First(&tour, id).Error
	if err != nil {
		return nil, err
	}
	return &tour, nil
}

// List retrieves a paginated list of tours
func (r *tourRepository) List(offset, limit int) ([]models.Tour, error) {
	var tours []models.Tour
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tours).Error
	return tours, err
}

// ListBookable retrieves tours whose validity window contains the given time.
func (r *tourRepository) ListBookable(at time.Time) ([]models.Tour, error) {
	var tours []models.Tour
	err := r.db.
		Where("start_date <= ? AND end_date >= ?", at, at).
		Order("name ASC").
		Find(&tours).Error
	return tours, err
}

// Count returns the total number of tours
func (r *tourRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Tour{}).Count(&count).Error
	return count, err
}
