package apiv1

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/internal/pkg/capacity"
	"github.com/milanotravel/tourbooking/internal/pkg/finalizer"
	"github.com/milanotravel/tourbooking/internal/pkg/pricing"
	"github.com/milanotravel/tourbooking/internal/pkg/workflow"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// PricingRequest is the body of POST /pricing/configurations.
type PricingRequest struct {
	TourID     uint   `json:"tour_id" validate:"required"`
	TravelDate string `json:"travel_date" validate:"required"`
	Adults     int    `json:"adults" validate:"gte=0"`
	ChildAges  []int  `json:"child_ages"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

// SubmitProposalRequest is the body of POST /proposals.
type SubmitProposalRequest struct {
	TourID          uint   `json:"tour_id" validate:"required"`
	TravelDate      string `json:"travel_date" validate:"required"`
	Adults          int    `json:"adults" validate:"gte=0"`
	ChildAges       []int  `json:"child_ages"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	SelectedSingles int    `json:"selected_singles" validate:"gte=0"`
	SelectedDoubles int    `json:"selected_doubles" validate:"gte=0"`
	SelectedTriples int    `json:"selected_triples" validate:"gte=0"`
	CustomerName    string `json:"customer_name" validate:"required,min=2,max=200"`
	CustomerEmail   string `json:"customer_email" validate:"required,email"`
	CustomerPhone   string `json:"customer_phone" validate:"max=30"`
	CustomerAddress string `json:"customer_address"`
	Nationality     string `json:"nationality" validate:"max=100"`
	Notes           string `json:"notes"`
}

// RejectProposalRequest is the body of POST /proposals/:id/reject.
type RejectProposalRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// PaymentCallbackRequest is the body the payment provider posts after a
// successful charge.
type PaymentCallbackRequest struct {
	ProposalID       uint   `json:"proposal_id" validate:"required"`
	PaymentReference string `json:"payment_reference" validate:"required,max=100"`
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// errorResponse maps domain errors onto HTTP statuses with stable error
// identifiers the frontend can branch on.
func errorResponse(c *fiber.Ctx, err error) error {
	var valErr *pricing.ValidationError
	if errors.As(err, &valErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation", "field": valErr.Field, "message": valErr.Message,
		})
	}

	var infErr *pricing.InfeasibleError
	if errors.As(err, &infErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "infeasible", "reason": infErr.Reason,
		})
	}

	var capErr *capacity.CapacityError
	if errors.As(err, &capErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "capacity", "remaining": capErr.Remaining, "requested": capErr.Requested,
		})
	}

	var tokErr *workflow.TokenError
	if errors.As(err, &tokErr) {
		status := fiber.StatusConflict
		switch tokErr.Reason {
		case workflow.TokenUnknown:
			status = fiber.StatusNotFound
		case workflow.TokenExpired:
			status = fiber.StatusGone
		}
		return c.Status(status).JSON(fiber.Map{
			"error": "token", "reason": tokErr.Reason,
		})
	}

	var stateErr *workflow.StateError
	if errors.As(err, &stateErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "state", "current": stateErr.Current, "attempted": stateErr.Attempted,
		})
	}

	var finErr *finalizer.StatusError
	if errors.As(err, &finErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "state", "current": finErr.Status, "attempted": models.PROPOSAL_PAID,
		})
	}

	if errors.Is(err, models.ErrNoPricesForMode) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "infeasible", "reason": "no_prices_configured",
		})
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found",
		})
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation", "message": err.Error(),
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal",
	})
}
