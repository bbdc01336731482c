package notify

import (
	"encoding/json"
	"time"
)

// EventType identifies a lifecycle notification.
type EventType string

const (
	EventProposalSubmitted             EventType = "proposal_submitted"
	EventSupplierConfirmationRequested EventType = "supplier_confirmation_requested"
	EventProposalConfirmed             EventType = "proposal_confirmed"
	EventProposalRejected              EventType = "proposal_rejected"
	EventBookingFinalized              EventType = "booking_finalized"
)

// EventStatus defines the delivery status of an event
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusFailed     EventStatus = "failed"
	EventStatusRetrying   EventStatus = "retrying"
)

// Event is one queued notification. Delivery is at-least-once; the mail
// bodies are safe to send twice.
type Event struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	Status      EventStatus            `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ProposalEventPayload carries the proposal fields the mails need.
type ProposalEventPayload struct {
	ProposalID    uint    `json:"proposal_id"`
	Code          string  `json:"code"`
	TourName      string  `json:"tour_name"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	SupplierEmail string  `json:"supplier_email"`
	TravelDate    string  `json:"travel_date"`
	TotalPrice    float64 `json:"total_price"`
	Currency      string  `json:"currency"`
	ConfirmURL    string  `json:"confirm_url"`
	RejectURL     string  `json:"reject_url"`
	PaymentLink   string  `json:"payment_link"`
	Reason        string  `json:"reason"`
}

// ToMap converts the payload to a map for storage
func (p ProposalEventPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"proposal_id":    p.ProposalID,
		"code":           p.Code,
		"tour_name":      p.TourName,
		"customer_name":  p.CustomerName,
		"customer_email": p.CustomerEmail,
		"supplier_email": p.SupplierEmail,
		"travel_date":    p.TravelDate,
		"total_price":    p.TotalPrice,
		"currency":       p.Currency,
		"confirm_url":    p.ConfirmURL,
		"reject_url":     p.RejectURL,
		"payment_link":   p.PaymentLink,
		"reason":         p.Reason,
	}
}

// ProposalEventPayloadFromMap creates a payload from a stored map.
func ProposalEventPayloadFromMap(data map[string]interface{}) (*ProposalEventPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ProposalEventPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// BookingEventPayload carries the booking fields the finalized mails need.
type BookingEventPayload struct {
	BookingID     uint    `json:"booking_id"`
	Code          string  `json:"code"`
	ProposalCode  string  `json:"proposal_code"`
	TourName      string  `json:"tour_name"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	TravelDate    string  `json:"travel_date"`
	TotalPrice    float64 `json:"total_price"`
	Currency      string  `json:"currency"`
}

// ToMap converts the payload to a map for storage
func (p BookingEventPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"booking_id":     p.BookingID,
		"code":           p.Code,
		"proposal_code":  p.ProposalCode,
		"tour_name":      p.TourName,
		"customer_name":  p.CustomerName,
		"customer_email": p.CustomerEmail,
		"travel_date":    p.TravelDate,
		"total_price":    p.TotalPrice,
		"currency":       p.Currency,
	}
}

// BookingEventPayloadFromMap creates a payload from a stored map.
func BookingEventPayloadFromMap(data map[string]interface{}) (*BookingEventPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload BookingEventPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the event can be retried
func (e *Event) IsRetryable() bool {
	return e.RetryCount < e.MaxRetries
}

// MarkAsProcessing marks the event as being processed
func (e *Event) MarkAsProcessing() {
	now := time.Now()
	e.Status = EventStatusProcessing
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkAsCompleted marks the event as completed
func (e *Event) MarkAsCompleted() {
	now := time.Now()
	e.Status = EventStatusCompleted
	e.CompletedAt = &now
	e.UpdatedAt = now
	e.ErrorMsg = ""
}

// MarkAsFailed marks the event as failed with an error message
func (e *Event) MarkAsFailed(errorMsg string) {
	e.Status = EventStatusFailed
	e.ErrorMsg = errorMsg
	e.UpdatedAt = time.Now()
}

// MarkAsRetrying increments the retry counter
func (e *Event) MarkAsRetrying() {
	e.Status = EventStatusRetrying
	e.RetryCount++
	e.UpdatedAt = time.Now()
}
