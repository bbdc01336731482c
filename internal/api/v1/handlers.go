package apiv1

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/milanotravel/tourbooking/app/repository"
	"github.com/milanotravel/tourbooking/internal/pkg/capacity"
	"github.com/milanotravel/tourbooking/internal/pkg/finalizer"
	"github.com/milanotravel/tourbooking/internal/pkg/pricing"
	"github.com/milanotravel/tourbooking/internal/pkg/workflow"
)

// APIServer holds the engine services behind the v1 endpoints.
type APIServer struct {
	repos      *repository.Repositories
	calculator *pricing.Calculator
	tracker    *capacity.Tracker
	workflow   *workflow.Service
	finalizer  *finalizer.Finalizer
}

// NewAPIServer creates a new API server instance
func NewAPIServer(repos *repository.Repositories, calculator *pricing.Calculator, tracker *capacity.Tracker, wf *workflow.Service, fin *finalizer.Finalizer) *APIServer {
	return &APIServer{
		repos:      repos,
		calculator: calculator,
		tracker:    tracker,
		workflow:   wf,
		finalizer:  fin,
	}
}

// RegisterHandlers attaches every v1 route to the given router group.
func RegisterHandlers(r fiber.Router, s *APIServer) {
	r.Get("/ping", s.GetPing)

	r.Get("/tours", s.GetTours)
	r.Get("/tours/:id/availability", s.GetTourAvailability)

	r.Post("/pricing/configurations", s.PostPricingConfigurations)

	r.Post("/proposals", s.PostProposal)
	// Token routes must come before the :code lookup or fiber would treat
	// "confirm" as a proposal code.
	r.Get("/proposals/confirm/:token", s.GetConfirmByToken)
	r.Get("/proposals/reject/:token", s.GetRejectByToken)
	r.Get("/proposals/:code", s.GetProposal)
	r.Post("/proposals/:id/confirm", s.PostConfirmInternally)
	r.Post("/proposals/:id/reject", s.PostRejectProposal)

	r.Post("/payments/callback", s.PostPaymentCallback)
	r.Get("/bookings/:code", s.GetBooking)
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// GetTours lists the tours that are currently bookable.
func (s *APIServer) GetTours(c *fiber.Ctx) error {
	tours, err := s.repos.Tour.ListBookable(time.Now())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"tours": tours})
}

// GetTourAvailability returns the per-day capacity snapshots for a trip
// starting at ?date=YYYY-MM-DD.
func (s *APIServer) GetTourAvailability(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errorResponse(c, &pricing.ValidationError{Field: "id", Message: "must be a positive integer"})
	}

	date, err := parseDate(c.Query("date"))
	if err != nil {
		return errorResponse(c, &pricing.ValidationError{Field: "date", Message: "expected YYYY-MM-DD"})
	}

	tour, err := s.repos.Tour.GetByID(uint(id))
	if err != nil {
		return errorResponse(c, err)
	}

	trip, err := s.tracker.RemainingForTrip(tour, date)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(trip)
}

// PostPricingConfigurations prices a party and returns every room mix.
func (s *APIServer) PostPricingConfigurations(c *fiber.Ctx) error {
	var req PricingRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, &pricing.ValidationError{Field: "body", Message: "malformed JSON"})
	}
	if err := validate.Struct(&req); err != nil {
		return errorResponse(c, err)
	}

	date, err := parseDate(req.TravelDate)
	if err != nil {
		return errorResponse(c, &pricing.ValidationError{Field: "travel_date", Message: "expected YYYY-MM-DD"})
	}

	quote, err := s.calculator.ComputeConfigurations(pricing.Request{
		TourID:     req.TourID,
		TravelDate: date,
		Adults:     req.Adults,
		ChildAges:  req.ChildAges,
		Currency:   req.Currency,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(quote)
}

// PostProposal submits a booking request.
func (s *APIServer) PostProposal(c *fiber.Ctx) error {
	var req SubmitProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, &pricing.ValidationError{Field: "body", Message: "malformed JSON"})
	}
	if err := validate.Struct(&req); err != nil {
		return errorResponse(c, err)
	}

	date, err := parseDate(req.TravelDate)
	if err != nil {
		return errorResponse(c, &pricing.ValidationError{Field: "travel_date", Message: "expected YYYY-MM-DD"})
	}

	proposal, err := s.workflow.SubmitProposal(workflow.SubmitRequest{
		TourID:          req.TourID,
		TravelDate:      date,
		Adults:          req.Adults,
		ChildAges:       req.ChildAges,
		Currency:        req.Currency,
		SelectedSingles: req.SelectedSingles,
		SelectedDoubles: req.SelectedDoubles,
		SelectedTriples: req.SelectedTriples,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Nationality:     req.Nationality,
		Notes:           req.Notes,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(proposal)
}

// GetProposal looks up a proposal by its customer-facing code.
func (s *APIServer) GetProposal(c *fiber.Ctx) error {
	proposal, err := s.repos.Proposal.GetByCode(c.Params("code"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(proposal)
}

// GetConfirmByToken confirms availability through a supplier link.
func (s *APIServer) GetConfirmByToken(c *fiber.Ctx) error {
	proposal, err := s.workflow.ConfirmByToken(c.Params("token"), time.Now())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(proposal)
}

// GetRejectByToken rejects availability through a supplier link.
func (s *APIServer) GetRejectByToken(c *fiber.Ctx) error {
	proposal, err := s.workflow.RejectByToken(c.Params("token"), time.Now())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(proposal)
}

// PostConfirmInternally confirms a proposal from the staff dashboard.
func (s *APIServer) PostConfirmInternally(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errorResponse(c, &pricing.ValidationError{Field: "id", Message: "must be a positive integer"})
	}

	proposal, err := s.workflow.ConfirmInternally(uint(id))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(proposal)
}

// PostRejectProposal rejects a proposal from the staff dashboard.
func (s *APIServer) PostRejectProposal(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errorResponse(c, &pricing.ValidationError{Field: "id", Message: "must be a positive integer"})
	}

	var req RejectProposalRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorResponse(c, &pricing.ValidationError{Field: "body", Message: "malformed JSON"})
		}
	}

	proposal, err := s.workflow.RejectProposal(uint(id), req.Reason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(proposal)
}

// PostPaymentCallback finalizes a paid proposal into a booking. The payment
// provider may retry this callback; the response is the same booking every
// time.
func (s *APIServer) PostPaymentCallback(c *fiber.Ctx) error {
	var req PaymentCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, &pricing.ValidationError{Field: "body", Message: "malformed JSON"})
	}
	if err := validate.Struct(&req); err != nil {
		return errorResponse(c, err)
	}

	booking, err := s.finalizer.Finalize(req.ProposalID, req.PaymentReference)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(booking)
}

// GetBooking looks up a booking by its customer-facing code.
func (s *APIServer) GetBooking(c *fiber.Ctx) error {
	booking, err := s.repos.Booking.GetByCode(c.Params("code"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(booking)
}
