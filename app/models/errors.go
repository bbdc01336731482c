package models

import "errors"

var (
	// ErrTourDateWindow is returned when a tour's validity window is inverted.
	ErrTourDateWindow = errors.New("tour start_date must be before end_date")

	// ErrNoPricesForMode is returned when a tour carries no usable base price
	// for its configured pricing mode.
	ErrNoPricesForMode = errors.New("tour has no base prices for its pricing mode")
)
