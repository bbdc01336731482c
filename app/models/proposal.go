package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	PROPOSAL_PENDING_SUPPLIER   = "PENDING_SUPPLIER"
	PROPOSAL_PENDING_INTERNAL   = "PENDING_INTERNAL"
	PROPOSAL_SUPPLIER_CONFIRMED = "SUPPLIER_CONFIRMED"
	PROPOSAL_REJECTED           = "REJECTED"
	PROPOSAL_PAID               = "PAID"
)

// Proposal is a priced booking request awaiting supplier/internal
// confirmation and payment. Proposals are never deleted, only terminally
// rejected.
type Proposal struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Code                 string         `gorm:"uniqueIndex;type:varchar(12)" json:"code"`
	CustomerName         string         `gorm:"type:varchar(200)" json:"customer_name" validate:"required,min=2,max=200"`
	CustomerEmail        string         `gorm:"type:varchar(200)" json:"customer_email" validate:"required,email"`
	CustomerPhone        string         `gorm:"type:varchar(30)" json:"customer_phone" validate:"max=30"`
	CustomerAddress      string         `gorm:"type:text" json:"customer_address"`
	Nationality          string         `gorm:"type:varchar(100)" json:"nationality"`
	Notes                string         `gorm:"type:text" json:"notes"`
	TourID               uint           `gorm:"index:idx_proposals_tour_date_status" json:"tour_id" validate:"required"`
	Tour                 Tour           `gorm:"foreignKey:TourID" json:"-"`
	NumberOfAdults       int            `gorm:"default:1" json:"number_of_adults" validate:"gte=0"`
	NumberOfChildren     int            `gorm:"default:0" json:"number_of_children" validate:"gte=0"`
	NumberOfInfants      int            `gorm:"default:0" json:"number_of_infants" validate:"gte=0"`
	ChildAgesJSON        string         `gorm:"type:text" json:"-"`
	SelectedConfigJSON   string         `gorm:"type:text" json:"-"`
	CandidateConfigsJSON string         `gorm:"type:text" json:"-"`
	TravelDate           time.Time      `gorm:"type:date;index:idx_proposals_tour_date_status" json:"travel_date"`
	EstimatedPrice       float64        `gorm:"type:decimal(10,2)" json:"estimated_price"`
	Currency             string         `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	SupplierEmail        string         `gorm:"type:varchar(200)" json:"supplier_email" validate:"omitempty,email"`
	PaymentLink          string         `gorm:"type:varchar(255)" json:"payment_link"`
	Status               string         `gorm:"type:varchar(20);default:'PENDING_SUPPLIER';index:idx_proposals_tour_date_status" json:"status"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Proposal) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsPending reports whether the proposal still awaits supplier or internal
// confirmation.
func (p *Proposal) IsPending() bool {
	return p.Status == PROPOSAL_PENDING_SUPPLIER || p.Status == PROPOSAL_PENDING_INTERNAL
}

// IsTerminal reports whether no further transitions are allowed.
func (p *Proposal) IsTerminal() bool {
	return p.Status == PROPOSAL_REJECTED || p.Status == PROPOSAL_PAID
}

// ChildAges decodes the stored child age list.
func (p *Proposal) ChildAges() []int {
	if p.ChildAgesJSON == "" {
		return nil
	}
	var ages []int
	if err := json.Unmarshal([]byte(p.ChildAgesJSON), &ages); err != nil {
		return nil
	}
	return ages
}

// SetChildAges encodes the child age list for storage.
func (p *Proposal) SetChildAges(ages []int) error {
	if len(ages) == 0 {
		p.ChildAgesJSON = ""
		return nil
	}
	data, err := json.Marshal(ages)
	if err != nil {
		return err
	}
	p.ChildAgesJSON = string(data)
	return nil
}

// Occupancy is the number of capacity-consuming travelers. Infants do not
// occupy a slot.
func (p *Proposal) Occupancy() int {
	return p.NumberOfAdults + p.NumberOfChildren
}
