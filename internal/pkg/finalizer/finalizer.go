package finalizer

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/app/repository"
	"github.com/milanotravel/tourbooking/internal/pkg/cache"
	"github.com/milanotravel/tourbooking/internal/pkg/capacity"
	"github.com/milanotravel/tourbooking/internal/pkg/notify"
	"github.com/milanotravel/tourbooking/internal/pkg/pricing"
)

// Publisher hands the finalized event to the notification dispatcher.
type Publisher interface {
	Publish(eventType notify.EventType, payload map[string]interface{}) (*notify.Event, error)
}

// StatusError reports a finalize call against a proposal that is not
// supplier-confirmed and has no booking yet.
type StatusError struct {
	ProposalID uint
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("proposal %d cannot be finalized from status %s", e.ProposalID, e.Status)
}

// Finalizer converts a paid proposal into a booking. Everything runs inside
// one transaction with the proposal and tour rows locked, and the unique
// index on bookings.proposal_id backs the in-transaction duplicate check, so
// repeated payment callbacks always land on the same booking.
type Finalizer struct {
	db        *gorm.DB
	publisher Publisher
	useCache  bool
}

func New(db *gorm.DB, publisher Publisher) *Finalizer {
	return &Finalizer{db: db, publisher: publisher, useCache: true}
}

// NewWithoutCache skips the pricing cache flush. Used by tests.
func NewWithoutCache(db *gorm.DB, publisher Publisher) *Finalizer {
	return &Finalizer{db: db, publisher: publisher}
}

// Finalize records the payment identified by paymentRef against the
// proposal. Calling it again with the same proposal returns the existing
// booking without side effects.
func (f *Finalizer) Finalize(proposalID uint, paymentRef string) (*models.Booking, error) {
	var booking *models.Booking
	var proposalCode, tourName string
	created := false

	err := f.db.Transaction(func(tx *gorm.DB) error {
		var proposal models.Proposal
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&proposal, proposalID).Error; err != nil {
			return err
		}

		bookings := repository.NewBookingRepository(tx)
		if existing, err := bookings.GetByProposalID(proposal.ID); err == nil {
			booking = existing
			return nil
		}

		if proposal.Status != models.PROPOSAL_SUPPLIER_CONFIRMED {
			return &StatusError{ProposalID: proposal.ID, Status: proposal.Status}
		}

		// Locking only the proposal row would let two finalizes for different
		// proposals on the same tour read the same occupancy snapshot and
		// both pass the check. The exclusive lock on the tour row serializes
		// the occupancy read and the insert per tour.
		var tour models.Tour
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tour, proposal.TourID).Error; err != nil {
			return err
		}

		// The quote is stale by now, so the trip must fit the capacity that
		// is left at commit time.
		tracker := capacity.NewTracker(repository.NewTourRepository(tx), bookings)
		if err := tracker.CheckTrip(&tour, proposal.TravelDate, proposal.Occupancy()); err != nil {
			return err
		}

		booking = models.BookingFromProposal(&proposal, paymentRef)
		if err := bookings.Create(booking); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if existing, gerr := bookings.GetByProposalID(proposal.ID); gerr == nil {
					booking = existing
					return nil
				}
			}
			return err
		}

		proposals := repository.NewProposalRepository(tx)
		moved, err := proposals.UpdateStatusIf(proposal.ID,
			[]string{models.PROPOSAL_SUPPLIER_CONFIRMED}, models.PROPOSAL_PAID, nil)
		if err != nil {
			return err
		}
		if !moved {
			return &StatusError{ProposalID: proposal.ID, Status: proposal.Status}
		}

		proposalCode = proposal.Code
		tourName = tour.Name
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		f.flushQuotes(booking.TourID)
		f.publishFinalized(booking, proposalCode, tourName)
	}
	return booking, nil
}

// flushQuotes drops cached quotes for the tour since the occupancy feeding
// the demand factor just changed.
func (f *Finalizer) flushQuotes(tourID uint) {
	if !f.useCache {
		return
	}
	if err := cache.DeleteByPattern(pricing.QuoteCachePattern(tourID)); err != nil {
		log.Warnf("[Finalizer] failed to flush quotes for tour %d: %v", tourID, err)
	}
}

func (f *Finalizer) publishFinalized(booking *models.Booking, proposalCode, tourName string) {
	if f.publisher == nil {
		return
	}
	payload := notify.BookingEventPayload{
		BookingID:     booking.ID,
		Code:          booking.Code,
		ProposalCode:  proposalCode,
		TourName:      tourName,
		CustomerName:  booking.CustomerName,
		CustomerEmail: booking.CustomerEmail,
		TravelDate:    booking.TravelDate.Format("2006-01-02"),
		TotalPrice:    booking.TotalPrice,
		Currency:      booking.Currency,
	}
	if _, err := f.publisher.Publish(notify.EventBookingFinalized, payload.ToMap()); err != nil {
		log.Errorf("[Finalizer] failed to publish booking %s: %v", booking.Code, err)
	}
}
