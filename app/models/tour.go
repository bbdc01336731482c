package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	PRICING_PER_ROOM   = "per_room"
	PRICING_PER_PERSON = "per_person"
)

// Tour is the engine-facing view of a tour. The record itself is owned and
// edited by the CMS; this service only reads it.
type Tour struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"type:varchar(200)" json:"name" validate:"required,min=3,max=200"`
	PricingMode        string         `gorm:"type:varchar(20);default:'per_room'" json:"pricing_mode" validate:"oneof=per_room per_person"`
	PriceSingle        float64        `gorm:"type:decimal(10,2);default:0" json:"price_single" validate:"gte=0"`
	PriceDouble        float64        `gorm:"type:decimal(10,2);default:0" json:"price_double" validate:"gte=0"`
	PriceTriple        float64        `gorm:"type:decimal(10,2);default:0" json:"price_triple" validate:"gte=0"`
	PriceAdult         float64        `gorm:"type:decimal(10,2);default:0" json:"price_adult" validate:"gte=0"`
	PriceChild         float64        `gorm:"type:decimal(10,2);default:0" json:"price_child" validate:"gte=0"`
	PriceInfant        float64        `gorm:"type:decimal(10,2);default:0" json:"price_infant" validate:"gte=0"`
	SeasonalFactor     float64        `gorm:"type:decimal(6,3);default:1" json:"seasonal_factor"`
	DemandFactor       float64        `gorm:"type:decimal(6,3);default:0" json:"demand_factor" validate:"gte=0"`
	MaxCapacity        int            `gorm:"default:0" json:"max_capacity" validate:"gte=0"`
	AvailableDays      string         `gorm:"type:varchar(30)" json:"available_days"` // CSV of weekdays, 0=Sunday; empty = every day
	ChildAgeMin        int            `gorm:"default:2" json:"child_age_min" validate:"gte=0"`
	ChildAgeMax        int            `gorm:"default:12" json:"child_age_max" validate:"gte=0"`
	MaxChildrenPerRoom int            `gorm:"default:1" json:"max_children_per_room"`
	DurationDays       int            `gorm:"default:1" json:"duration_days" validate:"gte=1"`
	StartDate          time.Time      `gorm:"type:date" json:"start_date"`
	EndDate            time.Time      `gorm:"type:date" json:"end_date"`
	InternallyOperated bool           `gorm:"default:false" json:"internally_operated"`
	SupplierEmail      string         `gorm:"type:varchar(200)" json:"supplier_email" validate:"omitempty,email"`
	Currency           string         `gorm:"type:varchar(3);default:'USD'" json:"currency" validate:"len=3"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Tour) Validate() error {
	v := validator.New()

	if err := v.Struct(t); err != nil {
		return err
	}
	if !t.StartDate.Before(t.EndDate) {
		return ErrTourDateWindow
	}
	return nil
}

// HasRoomPrices reports whether at least one room price is set.
func (t *Tour) HasRoomPrices() bool {
	return t.PriceSingle > 0 || t.PriceDouble > 0 || t.PriceTriple > 0
}

// HasPerPersonPrices reports whether an adult price is set.
func (t *Tour) HasPerPersonPrices() bool {
	return t.PriceAdult > 0
}

// EffectiveMaxChildrenPerRoom never returns less than 1 so that a missing
// CMS value cannot block every configuration.
func (t *Tour) EffectiveMaxChildrenPerRoom() int {
	if t.MaxChildrenPerRoom < 1 {
		return 1
	}
	return t.MaxChildrenPerRoom
}

// AvailableWeekdays parses the CSV weekday list (0=Sunday .. 6=Saturday).
// An empty or unparsable list means the tour runs every day, matching how
// the CMS treats the field.
func (t *Tour) AvailableWeekdays() map[time.Weekday]bool {
	days := make(map[time.Weekday]bool, 7)
	raw := strings.TrimSpace(t.AvailableDays)
	if raw == "" {
		for d := time.Sunday; d <= time.Saturday; d++ {
			days[d] = true
		}
		return days
	}
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days[time.Weekday(n)] = true
	}
	if len(days) == 0 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			days[d] = true
		}
	}
	return days
}

// RunsOn reports whether the tour operates on the given calendar date.
func (t *Tour) RunsOn(date time.Time) bool {
	return t.AvailableWeekdays()[date.Weekday()]
}

// TripDates returns the calendar dates of a trip starting at travelDate.
func (t *Tour) TripDates(travelDate time.Time) []time.Time {
	duration := t.DurationDays
	if duration < 1 {
		duration = 1
	}
	dates := make([]time.Time, 0, duration)
	for i := 0; i < duration; i++ {
		dates = append(dates, travelDate.AddDate(0, 0, i))
	}
	return dates
}
