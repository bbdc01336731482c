package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/app/repository"
	"github.com/milanotravel/tourbooking/internal/pkg/notify"
	"github.com/milanotravel/tourbooking/internal/pkg/pricing"
)

type fakeTourRepo struct {
	tour *models.Tour
}

func (f *fakeTourRepo) GetByID(uint) (*models.Tour, error)            { return f.tour, nil }
func (f *fakeTourRepo) List(int, int) ([]models.Tour, error)          { return nil, nil }
func (f *fakeTourRepo) ListBookable(time.Time) ([]models.Tour, error) { return nil, nil }
func (f *fakeTourRepo) Count() (int64, error)                         { return 0, nil }

type fakeProposalRepo struct {
	tour   *models.Tour
	byID   map[uint]*models.Proposal
	nextID uint
}

func newFakeProposalRepo(tour *models.Tour) *fakeProposalRepo {
	return &fakeProposalRepo{tour: tour, byID: map[uint]*models.Proposal{}}
}

func (f *fakeProposalRepo) Create(p *models.Proposal) error {
	f.nextID++
	p.ID = f.nextID
	p.Code = fmt.Sprintf("MT%07d", f.nextID)
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProposalRepo) GetByID(id uint) (*models.Proposal, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("proposal %d not found", id)
	}
	return p, nil
}

func (f *fakeProposalRepo) GetByCode(code string) (*models.Proposal, error) {
	for _, p := range f.byID {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, fmt.Errorf("proposal %s not found", code)
}

func (f *fakeProposalRepo) GetWithTour(id uint) (*models.Proposal, error) {
	p, err := f.GetByID(id)
	if err != nil {
		return nil, err
	}
	p.Tour = *f.tour
	return p, nil
}

func (f *fakeProposalRepo) Update(p *models.Proposal) error {
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProposalRepo) UpdateStatusIf(id uint, from []string, to string, updates map[string]interface{}) (bool, error) {
	p, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, status := range from {
		if p.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	p.Status = to
	if link, ok := updates["payment_link"].(string); ok {
		p.PaymentLink = link
	}
	return true, nil
}

func (f *fakeProposalRepo) List(int, int) ([]models.Proposal, error)                 { return nil, nil }
func (f *fakeProposalRepo) ListByStatus(string, int, int) ([]models.Proposal, error) { return nil, nil }
func (f *fakeProposalRepo) Count() (int64, error)                                    { return 0, nil }

type fakeTokenRepo struct {
	proposals *fakeProposalRepo
	tokens    map[string]*models.ConfirmationToken
}

func newFakeTokenRepo(proposals *fakeProposalRepo) *fakeTokenRepo {
	return &fakeTokenRepo{proposals: proposals, tokens: map[string]*models.ConfirmationToken{}}
}

func (f *fakeTokenRepo) Create(t *models.ConfirmationToken) error {
	f.tokens[t.Token] = t
	return nil
}

func (f *fakeTokenRepo) GetByToken(value string) (*models.ConfirmationToken, error) {
	t, ok := f.tokens[value]
	if !ok {
		return nil, fmt.Errorf("token not found")
	}
	if p, ok := f.proposals.byID[t.ProposalID]; ok {
		t.Proposal = *p
	}
	return t, nil
}

func (f *fakeTokenRepo) Consume(value string, usedAt time.Time) (bool, error) {
	t, ok := f.tokens[value]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	t.UsedAt = &usedAt
	return true, nil
}

func (f *fakeTokenRepo) CountExpiredUnused(time.Time) (int64, error) { return 0, nil }

type fakePublisher struct {
	events []notify.EventType
}

func (f *fakePublisher) Publish(eventType notify.EventType, payload map[string]interface{}) (*notify.Event, error) {
	f.events = append(f.events, eventType)
	return &notify.Event{Type: eventType}, nil
}

type fixedQuoter struct {
	quote *pricing.Quote
}

func (f *fixedQuoter) ComputeConfigurations(pricing.Request) (*pricing.Quote, error) {
	return f.quote, nil
}

func testQuote() *pricing.Quote {
	return &pricing.Quote{
		TourID:   1,
		Currency: "USD",
		Configurations: []pricing.RoomConfiguration{
			{Doubles: 1, TotalRooms: 1, TotalPrice: 100, Currency: "USD", Cheapest: true},
			{Singles: 2, TotalRooms: 2, TotalPrice: 120, Currency: "USD"},
		},
	}
}

type harness struct {
	service   *Service
	proposals *fakeProposalRepo
	tokens    *fakeTokenRepo
	publisher *fakePublisher
}

func newHarness(tour *models.Tour) *harness {
	proposals := newFakeProposalRepo(tour)
	tokens := newFakeTokenRepo(proposals)
	publisher := &fakePublisher{}
	repos := &repository.Repositories{
		Tour:     &fakeTourRepo{tour: tour},
		Proposal: proposals,
		Token:    tokens,
	}
	return &harness{
		service:   NewService(repos, &fixedQuoter{quote: testQuote()}, publisher),
		proposals: proposals,
		tokens:    tokens,
		publisher: publisher,
	}
}

func externalTour() *models.Tour {
	return &models.Tour{ID: 1, Name: "Tuscany Escape", SupplierEmail: "partner@example.com"}
}

func submitRequest() SubmitRequest {
	return SubmitRequest{
		TourID:        1,
		TravelDate:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Adults:        2,
		Currency:      "USD",
		CustomerName:  "Ada Rossi",
		CustomerEmail: "ada@example.com",
	}
}

func TestSubmitExternalTourIssuesToken(t *testing.T) {
	h := newHarness(externalTour())

	proposal, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)

	assert.Equal(t, models.PROPOSAL_PENDING_SUPPLIER, proposal.Status)
	assert.Equal(t, 100.00, proposal.EstimatedPrice)
	assert.NotEmpty(t, proposal.Code)
	assert.Len(t, h.tokens.tokens, 1)
	assert.Equal(t, []notify.EventType{
		notify.EventSupplierConfirmationRequested,
		notify.EventProposalSubmitted,
	}, h.publisher.events)
}

func TestSubmitInternalTourSkipsToken(t *testing.T) {
	tour := externalTour()
	tour.InternallyOperated = true
	h := newHarness(tour)

	proposal, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)

	assert.Equal(t, models.PROPOSAL_PENDING_INTERNAL, proposal.Status)
	assert.Empty(t, h.tokens.tokens)
	assert.Equal(t, []notify.EventType{notify.EventProposalSubmitted}, h.publisher.events)
}

func TestSubmitWithExplicitRoomMix(t *testing.T) {
	h := newHarness(externalTour())

	req := submitRequest()
	req.SelectedSingles = 2
	proposal, err := h.service.SubmitProposal(req)
	require.NoError(t, err)
	assert.Equal(t, 120.00, proposal.EstimatedPrice)

	req.SelectedSingles = 3
	_, err = h.service.SubmitProposal(req)
	var valErr *pricing.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "configuration", valErr.Field)
}

func issuedToken(t *testing.T, h *harness) string {
	t.Helper()
	require.Len(t, h.tokens.tokens, 1)
	for value := range h.tokens.tokens {
		return value
	}
	return ""
}

func TestConfirmByToken(t *testing.T) {
	h := newHarness(externalTour())
	_, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)
	tokenValue := issuedToken(t, h)

	proposal, err := h.service.ConfirmByToken(tokenValue, time.Now())
	require.NoError(t, err)

	assert.Equal(t, models.PROPOSAL_SUPPLIER_CONFIRMED, proposal.Status)
	assert.Contains(t, proposal.PaymentLink, fmt.Sprintf("/p-methods/paypal/checkout/%d/", proposal.ID))
	assert.Contains(t, h.publisher.events, notify.EventProposalConfirmed)
}

func TestConfirmByTokenIsSingleUse(t *testing.T) {
	h := newHarness(externalTour())
	_, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)
	tokenValue := issuedToken(t, h)

	_, err = h.service.ConfirmByToken(tokenValue, time.Now())
	require.NoError(t, err)

	_, err = h.service.ConfirmByToken(tokenValue, time.Now())
	var tokErr *TokenError
	require.ErrorAs(t, err, &tokErr)
	assert.Equal(t, TokenAlreadyUsed, tokErr.Reason)
}

func TestConfirmByExpiredToken(t *testing.T) {
	h := newHarness(externalTour())
	_, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)
	tokenValue := issuedToken(t, h)

	_, err = h.service.ConfirmByToken(tokenValue, time.Now().Add(models.TokenTTL+time.Hour))
	var tokErr *TokenError
	require.ErrorAs(t, err, &tokErr)
	assert.Equal(t, TokenExpired, tokErr.Reason)
}

func TestConfirmByUnknownToken(t *testing.T) {
	h := newHarness(externalTour())

	_, err := h.service.ConfirmByToken("deadbeef", time.Now())
	var tokErr *TokenError
	require.ErrorAs(t, err, &tokErr)
	assert.Equal(t, TokenUnknown, tokErr.Reason)
}

func TestTokenRefusedWhenProposalAlreadyRejected(t *testing.T) {
	h := newHarness(externalTour())
	proposal, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)
	tokenValue := issuedToken(t, h)

	_, err = h.service.RejectProposal(proposal.ID, "customer cancelled")
	require.NoError(t, err)

	_, err = h.service.ConfirmByToken(tokenValue, time.Now())
	var tokErr *TokenError
	require.ErrorAs(t, err, &tokErr)
	assert.Equal(t, TokenWrongState, tokErr.Reason)
}

func TestRejectByToken(t *testing.T) {
	h := newHarness(externalTour())
	_, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)
	tokenValue := issuedToken(t, h)

	proposal, err := h.service.RejectByToken(tokenValue, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.PROPOSAL_REJECTED, proposal.Status)
	assert.Contains(t, h.publisher.events, notify.EventProposalRejected)
}

func TestConfirmInternally(t *testing.T) {
	tour := externalTour()
	tour.InternallyOperated = true
	h := newHarness(tour)
	proposal, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)

	confirmed, err := h.service.ConfirmInternally(proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PROPOSAL_SUPPLIER_CONFIRMED, confirmed.Status)
	assert.NotEmpty(t, confirmed.PaymentLink)
}

func TestRejectConfirmedButUnpaidProposal(t *testing.T) {
	h := newHarness(externalTour())
	proposal, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)

	_, err = h.service.ConfirmInternally(proposal.ID)
	require.NoError(t, err)

	rejected, err := h.service.RejectProposal(proposal.ID, "payment window elapsed")
	require.NoError(t, err)
	assert.Equal(t, models.PROPOSAL_REJECTED, rejected.Status)
}

func TestPaidProposalCannotBeRejected(t *testing.T) {
	h := newHarness(externalTour())
	proposal, err := h.service.SubmitProposal(submitRequest())
	require.NoError(t, err)

	h.proposals.byID[proposal.ID].Status = models.PROPOSAL_PAID

	_, err = h.service.RejectProposal(proposal.ID, "too late")
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, models.PROPOSAL_PAID, stateErr.Current)
	assert.Equal(t, models.PROPOSAL_REJECTED, stateErr.Attempted)
}
