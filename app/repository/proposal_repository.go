package repository

import (
	"errors"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/internal/pkg/codes"
	"gorm.io/gorm"
)

// codeRetries bounds how often we re-roll a tracking code on a unique-index
// collision before giving up.
const codeRetries = 5

// proposalRepository implements the ProposalRepository interface
type proposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository creates a new proposal repository instance
func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

// Create inserts a proposal, assigning a fresh "MT" tracking code. On a code
// collision the insert is retried with a new code.
func (r *proposalRepository) Create(proposal *models.Proposal) error {
	var lastErr error
	for i := 0; i < codeRetries; i++ {
		if proposal.Code == "" || lastErr != nil {
			code, err := codes.NewProposalCode()
			if err != nil {
				return err
			}
			proposal.Code = code
		}
		lastErr = r.db.Create(proposal).Error
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return lastErr
		}
	}
	return lastErr
}

// GetByID retrieves a proposal by its ID
func (r *proposalRepository) GetByID(id uint) (*models.Proposal, error) {
	var proposal models.Proposal
	err := r.db.First(&proposal, id).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetByCode retrieves a proposal by its customer-facing tracking code
func (r *proposalRepository) GetByCode(code string) (*models.Proposal, error) {
	var proposal models.Proposal
	err := r.db.Where("code = ?", code).First(&proposal).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetWithTour retrieves a proposal with its tour preloaded
func (r *proposalRepository) GetWithTour(id uint) (*models.Proposal, error) {
	var proposal models.Proposal
	err := r.db.Preload("Tour").First(&proposal, id).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Update updates an existing proposal
func (r *proposalRepository) Update(proposal *models.Proposal) error {
	return r.db.Save(proposal).Error
}

// UpdateStatusIf performs a guarded status transition. Extra column updates
// are applied in the same statement so a transition and its side fields
// (payment link) land atomically.
func (r *proposalRepository) UpdateStatusIf(id uint, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": toStatus}
	for k, v := range updates {
		values[k] = v
	}
	tx := r.db.Model(&models.Proposal{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(values)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// List retrieves a paginated list of proposals
func (r *proposalRepository) List(offset, limit int) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&proposals).Error
	return proposals, err
}

// ListByStatus retrieves a paginated list of proposals in one status
func (r *proposalRepository) ListByStatus(status string, offset, limit int) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&proposals).Error
	return proposals, err
}

// Count returns the total number of proposals
func (r *proposalRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Proposal{}).Count(&count).Error
	return count, err
}
