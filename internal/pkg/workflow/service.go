package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/app/repository"
	"github.com/milanotravel/tourbooking/internal/pkg/env"
	"github.com/milanotravel/tourbooking/internal/pkg/notify"
	"github.com/milanotravel/tourbooking/internal/pkg/pricing"
)

// Quoter recomputes pricing server-side. Posted prices are never trusted.
type Quoter interface {
	ComputeConfigurations(req pricing.Request) (*pricing.Quote, error)
}

// Publisher hands lifecycle events to the notification dispatcher.
type Publisher interface {
	Publish(eventType notify.EventType, payload map[string]interface{}) (*notify.Event, error)
}

// SubmitRequest carries a customer's booking request. SelectedSingles,
// SelectedDoubles and SelectedTriples pick one of the quoted room mixes;
// all zero means the cheapest quoted configuration.
type SubmitRequest struct {
	TourID          uint
	TravelDate      time.Time
	Adults          int
	ChildAges       []int
	Currency        string
	SelectedSingles int
	SelectedDoubles int
	SelectedTriples int

	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	Nationality     string
	Notes           string
}

// Service drives the proposal lifecycle from submission to the point where
// payment takes over.
type Service struct {
	repos     *repository.Repositories
	quoter    Quoter
	publisher Publisher
	baseURL   string
}

func NewService(repos *repository.Repositories, quoter Quoter, publisher Publisher) *Service {
	return &Service{
		repos:     repos,
		quoter:    quoter,
		publisher: publisher,
		baseURL:   env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"),
	}
}

// SubmitProposal reprices the party, persists the proposal and kicks off
// the confirmation flow. Externally operated tours get a single-use
// supplier token; internally operated ones go straight to the staff queue.
func (s *Service) SubmitProposal(req SubmitRequest) (*models.Proposal, error) {
	quote, err := s.quoter.ComputeConfigurations(pricing.Request{
		TourID:     req.TourID,
		TravelDate: req.TravelDate,
		Adults:     req.Adults,
		ChildAges:  req.ChildAges,
		Currency:   req.Currency,
	})
	if err != nil {
		return nil, err
	}

	selected, err := pickConfiguration(quote, req)
	if err != nil {
		return nil, err
	}

	tour, err := s.repos.Tour.GetByID(req.TourID)
	if err != nil {
		return nil, err
	}

	status := models.PROPOSAL_PENDING_SUPPLIER
	if tour.InternallyOperated {
		status = models.PROPOSAL_PENDING_INTERNAL
	}

	selectedJSON, _ := json.Marshal(selected)
	candidatesJSON, _ := json.Marshal(quote.Configurations)

	proposal := &models.Proposal{
		CustomerName:         req.CustomerName,
		CustomerEmail:        req.CustomerEmail,
		CustomerPhone:        req.CustomerPhone,
		CustomerAddress:      req.CustomerAddress,
		Nationality:          req.Nationality,
		Notes:                req.Notes,
		TourID:               tour.ID,
		NumberOfAdults:       req.Adults,
		NumberOfChildren:     quote.Children,
		NumberOfInfants:      quote.Infants,
		SelectedConfigJSON:   string(selectedJSON),
		CandidateConfigsJSON: string(candidatesJSON),
		TravelDate:           req.TravelDate,
		EstimatedPrice:       selected.TotalPrice,
		Currency:             quote.Currency,
		SupplierEmail:        tour.SupplierEmail,
		Status:               status,
	}
	if err := proposal.SetChildAges(req.ChildAges); err != nil {
		return nil, err
	}
	if err := proposal.Validate(); err != nil {
		return nil, err
	}

	if err := s.repos.Proposal.Create(proposal); err != nil {
		return nil, err
	}

	if !tour.InternallyOperated {
		token, err := models.NewConfirmationToken(proposal.ID)
		if err != nil {
			return nil, err
		}
		if err := s.repos.Token.Create(token); err != nil {
			return nil, err
		}
		s.publish(notify.EventSupplierConfirmationRequested, s.proposalPayload(proposal, tour.Name, func(p *notify.ProposalEventPayload) {
			p.ConfirmURL = fmt.Sprintf("%s/api/v1/proposals/confirm/%s", s.baseURL, token.Token)
			p.RejectURL = fmt.Sprintf("%s/api/v1/proposals/reject/%s", s.baseURL, token.Token)
		}))
	}

	s.publish(notify.EventProposalSubmitted, s.proposalPayload(proposal, tour.Name, nil))
	return proposal, nil
}

// ConfirmByToken confirms availability through a supplier link. The token
// is consumed atomically, so two clicks on the same link yield exactly one
// confirmation.
func (s *Service) ConfirmByToken(tokenValue string, now time.Time) (*models.Proposal, error) {
	token, err := s.checkToken(tokenValue, now)
	if err != nil {
		return nil, err
	}

	won, err := s.repos.Token.Consume(tokenValue, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, &TokenError{Reason: TokenAlreadyUsed}
	}

	return s.confirm(token.ProposalID, []string{models.PROPOSAL_PENDING_SUPPLIER})
}

// RejectByToken rejects availability through a supplier link.
func (s *Service) RejectByToken(tokenValue string, now time.Time) (*models.Proposal, error) {
	token, err := s.checkToken(tokenValue, now)
	if err != nil {
		return nil, err
	}

	won, err := s.repos.Token.Consume(tokenValue, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, &TokenError{Reason: TokenAlreadyUsed}
	}

	return s.reject(token.ProposalID, []string{models.PROPOSAL_PENDING_SUPPLIER}, "the supplier declined the requested date")
}

// ConfirmInternally confirms a proposal from the staff dashboard. It covers
// internally operated tours, which never issue tokens, and manual overrides
// for external ones.
func (s *Service) ConfirmInternally(proposalID uint) (*models.Proposal, error) {
	return s.confirm(proposalID, []string{models.PROPOSAL_PENDING_INTERNAL, models.PROPOSAL_PENDING_SUPPLIER})
}

// RejectProposal rejects a proposal from the staff dashboard. Confirmed but
// unpaid proposals may still be rejected; paid ones are final.
func (s *Service) RejectProposal(proposalID uint, reason string) (*models.Proposal, error) {
	from := []string{
		models.PROPOSAL_PENDING_SUPPLIER,
		models.PROPOSAL_PENDING_INTERNAL,
		models.PROPOSAL_SUPPLIER_CONFIRMED,
	}
	if reason == "" {
		reason = "the requested date is not available"
	}
	return s.reject(proposalID, from, reason)
}

func (s *Service) checkToken(tokenValue string, now time.Time) (*models.ConfirmationToken, error) {
	token, err := s.repos.Token.GetByToken(tokenValue)
	if err != nil {
		return nil, &TokenError{Reason: TokenUnknown}
	}
	if token.IsUsed() {
		return nil, &TokenError{Reason: TokenAlreadyUsed}
	}
	if token.IsExpired(now) {
		return nil, &TokenError{Reason: TokenExpired}
	}
	if token.Proposal.Status != models.PROPOSAL_PENDING_SUPPLIER {
		return nil, &TokenError{Reason: TokenWrongState}
	}
	return token, nil
}

func (s *Service) confirm(proposalID uint, from []string) (*models.Proposal, error) {
	paymentLink := fmt.Sprintf("%s/p-methods/paypal/checkout/%d/", s.baseURL, proposalID)

	moved, err := s.repos.Proposal.UpdateStatusIf(proposalID, from, models.PROPOSAL_SUPPLIER_CONFIRMED, map[string]interface{}{
		"payment_link": paymentLink,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.stateError(proposalID, models.PROPOSAL_SUPPLIER_CONFIRMED)
	}

	proposal, err := s.repos.Proposal.GetWithTour(proposalID)
	if err != nil {
		return nil, err
	}

	s.publish(notify.EventProposalConfirmed, s.proposalPayload(proposal, proposal.Tour.Name, func(p *notify.ProposalEventPayload) {
		p.PaymentLink = proposal.PaymentLink
	}))
	return proposal, nil
}

func (s *Service) reject(proposalID uint, from []string, reason string) (*models.Proposal, error) {
	moved, err := s.repos.Proposal.UpdateStatusIf(proposalID, from, models.PROPOSAL_REJECTED, nil)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.stateError(proposalID, models.PROPOSAL_REJECTED)
	}

	proposal, err := s.repos.Proposal.GetWithTour(proposalID)
	if err != nil {
		return nil, err
	}

	s.publish(notify.EventProposalRejected, s.proposalPayload(proposal, proposal.Tour.Name, func(p *notify.ProposalEventPayload) {
		p.Reason = reason
	}))
	return proposal, nil
}

// stateError reloads the proposal so the caller learns which status blocked
// the transition.
func (s *Service) stateError(proposalID uint, attempted string) error {
	current := "unknown"
	if proposal, err := s.repos.Proposal.GetByID(proposalID); err == nil {
		current = proposal.Status
	}
	return &StateError{ProposalID: proposalID, Current: current, Attempted: attempted}
}

func (s *Service) proposalPayload(p *models.Proposal, tourName string, mutate func(*notify.ProposalEventPayload)) map[string]interface{} {
	payload := notify.ProposalEventPayload{
		ProposalID:    p.ID,
		Code:          p.Code,
		TourName:      tourName,
		CustomerName:  p.CustomerName,
		CustomerEmail: p.CustomerEmail,
		SupplierEmail: p.SupplierEmail,
		TravelDate:    p.TravelDate.Format("2006-01-02"),
		TotalPrice:    p.EstimatedPrice,
		Currency:      p.Currency,
	}
	if mutate != nil {
		mutate(&payload)
	}
	return payload.ToMap()
}

// publish never fails the calling operation. A lost notification can be
// re-sent by staff, a lost proposal cannot.
func (s *Service) publish(eventType notify.EventType, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(eventType, payload); err != nil {
		log.Errorf("[Workflow] failed to publish %s: %v", eventType, err)
	}
}

// pickConfiguration finds the quoted configuration the customer selected,
// or the cheapest one when no explicit room mix was posted.
func pickConfiguration(quote *pricing.Quote, req SubmitRequest) (*pricing.RoomConfiguration, error) {
	if req.SelectedSingles == 0 && req.SelectedDoubles == 0 && req.SelectedTriples == 0 {
		for i := range quote.Configurations {
			if quote.Configurations[i].Cheapest {
				return &quote.Configurations[i], nil
			}
		}
		return &quote.Configurations[0], nil
	}

	for i := range quote.Configurations {
		c := &quote.Configurations[i]
		if c.Singles == req.SelectedSingles && c.Doubles == req.SelectedDoubles && c.Triples == req.SelectedTriples {
			return c, nil
		}
	}
	return nil, &pricing.ValidationError{Field: "configuration", Message: "the selected room mix is not available for this party"}
}
