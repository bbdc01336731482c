package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	BOOKING_PENDING   = "PENDING"
	BOOKING_CONFIRMED = "CONFIRMED"
	BOOKING_CANCELLED = "CANCELLED"

	PAYMENT_UNPAID = "UNPAID"
	PAYMENT_PAID   = "PAID"
)

// Booking is a finalized, paid reservation derived from exactly one
// Proposal. The unique index on ProposalID is what makes finalization
// idempotent at the schema level.
type Booking struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Code               string         `gorm:"uniqueIndex;type:varchar(12)" json:"code"`
	ProposalID         uint           `gorm:"uniqueIndex" json:"proposal_id"`
	Proposal           Proposal       `gorm:"foreignKey:ProposalID" json:"-"`
	TourID             uint           `gorm:"index:idx_bookings_tour_date_status" json:"tour_id" validate:"required"`
	Tour               Tour           `gorm:"foreignKey:TourID" json:"-"`
	CustomerName       string         `gorm:"type:varchar(200)" json:"customer_name" validate:"required"`
	CustomerEmail      string         `gorm:"type:varchar(200)" json:"customer_email" validate:"required,email"`
	CustomerPhone      string         `gorm:"type:varchar(30)" json:"customer_phone"`
	CustomerAddress    string         `gorm:"type:text" json:"customer_address"`
	Nationality        string         `gorm:"type:varchar(100)" json:"nationality"`
	Notes              string         `gorm:"type:text" json:"notes"`
	NumberOfAdults     int            `gorm:"default:1" json:"number_of_adults" validate:"gte=0"`
	NumberOfChildren   int            `gorm:"default:0" json:"number_of_children" validate:"gte=0"`
	NumberOfInfants    int            `gorm:"default:0" json:"number_of_infants" validate:"gte=0"`
	ChildAgesJSON      string         `gorm:"type:text" json:"-"`
	ConfigurationJSON  string         `gorm:"type:text" json:"-"`
	TravelDate         time.Time      `gorm:"type:date;index:idx_bookings_tour_date_status" json:"travel_date"`
	TotalPrice         float64        `gorm:"type:decimal(10,2)" json:"total_price"`
	Currency           string         `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	PaymentStatus      string         `gorm:"type:varchar(20);default:'UNPAID'" json:"payment_status" validate:"oneof=UNPAID PAID"`
	PaymentReference   string         `gorm:"type:varchar(100)" json:"payment_reference"`
	Status             string         `gorm:"type:varchar(20);default:'PENDING';index:idx_bookings_tour_date_status" json:"status" validate:"oneof=PENDING CONFIRMED CANCELLED"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Booking) Validate() error {
	v := validator.New()

	return v.Struct(b)
}

// Occupancy is the number of capacity-consuming travelers on this booking.
func (b *Booking) Occupancy() int {
	return b.NumberOfAdults + b.NumberOfChildren
}

// BookingFromProposal copies the customer and occupancy fields of a
// confirmed proposal into a new, still uncoded booking record.
func BookingFromProposal(p *Proposal, paymentRef string) *Booking {
	return &Booking{
		ProposalID:        p.ID,
		TourID:            p.TourID,
		CustomerName:      p.CustomerName,
		CustomerEmail:     p.CustomerEmail,
		CustomerPhone:     p.CustomerPhone,
		CustomerAddress:   p.CustomerAddress,
		Nationality:       p.Nationality,
		Notes:             p.Notes,
		NumberOfAdults:    p.NumberOfAdults,
		NumberOfChildren:  p.NumberOfChildren,
		NumberOfInfants:   p.NumberOfInfants,
		ChildAgesJSON:     p.ChildAgesJSON,
		ConfigurationJSON: p.SelectedConfigJSON,
		TravelDate:        p.TravelDate,
		TotalPrice:        p.EstimatedPrice,
		Currency:          p.Currency,
		PaymentStatus:     PAYMENT_PAID,
		PaymentReference:  paymentRef,
		Status:            BOOKING_CONFIRMED,
	}
}
