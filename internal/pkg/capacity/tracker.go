package capacity

import (
	"fmt"
	"time"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/app/repository"
)

// demandWindowDays is the horizon used for the occupancy-based demand
// signal. Bookings further out do not influence pricing.
const demandWindowDays = 30

const dateLayout = "2006-01-02"

// CapacityError reports that a trip does not fit into the remaining slots.
type CapacityError struct {
	TourID    uint
	Date      time.Time
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("tour %d has %d slots remaining on %s, requested %d",
		e.TourID, e.Remaining, e.Date.Format(dateLayout), e.Requested)
}

// Snapshot describes the booking state of a tour on a single day.
// Days the tour does not run carry zero capacity.
type Snapshot struct {
	Date      time.Time `json:"date"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	Remaining int       `json:"remaining"`
	Runs      bool      `json:"runs"`
}

// TripAvailability aggregates per-day snapshots over a multi-day trip.
// Remaining is the bottleneck across the days the tour actually runs.
type TripAvailability struct {
	Days      []Snapshot `json:"days"`
	Remaining int        `json:"remaining"`
	Available bool       `json:"available"`
}

// Tracker answers capacity questions from confirmed bookings. It keeps no
// state of its own so concurrent readers always see current booking rows.
type Tracker struct {
	tours    repository.TourRepository
	bookings repository.BookingRepository
}

func NewTracker(tours repository.TourRepository, bookings repository.BookingRepository) *Tracker {
	return &Tracker{tours: tours, bookings: bookings}
}

// RemainingForDate computes the snapshot for one day. Infants never count
// against capacity, so Booked only reflects adults and children.
func (t *Tracker) RemainingForDate(tour *models.Tour, date time.Time) (Snapshot, error) {
	snap := Snapshot{Date: date}
	if !tour.RunsOn(date) {
		return snap, nil
	}

	booked, err := t.bookings.ConfirmedOccupancyForDate(tour.ID, date)
	if err != nil {
		return snap, err
	}

	snap.Runs = true
	snap.Capacity = tour.MaxCapacity
	snap.Booked = booked
	snap.Remaining = tour.MaxCapacity - booked
	if snap.Remaining < 0 {
		snap.Remaining = 0
	}
	return snap, nil
}

// RemainingForTrip evaluates every day of a trip starting at travelDate.
// The trip's remaining capacity is the minimum across days the tour runs;
// a trip whose window contains no eligible days is fully unavailable.
func (t *Tracker) RemainingForTrip(tour *models.Tour, travelDate time.Time) (TripAvailability, error) {
	dates := tour.TripDates(travelDate)
	from := dates[0]
	to := dates[len(dates)-1].AddDate(0, 0, 1)

	bookedByDate, err := t.bookings.ConfirmedOccupancyByDate(tour.ID, from, to)
	if err != nil {
		return TripAvailability{}, err
	}

	trip := TripAvailability{Days: make([]Snapshot, 0, len(dates))}
	minRemaining := -1
	for _, date := range dates {
		snap := Snapshot{Date: date}
		if tour.RunsOn(date) {
			booked := bookedByDate[date.Format(dateLayout)]
			snap.Runs = true
			snap.Capacity = tour.MaxCapacity
			snap.Booked = booked
			snap.Remaining = tour.MaxCapacity - booked
			if snap.Remaining < 0 {
				snap.Remaining = 0
			}
			if minRemaining < 0 || snap.Remaining < minRemaining {
				minRemaining = snap.Remaining
			}
		}
		trip.Days = append(trip.Days, snap)
	}

	if minRemaining < 0 {
		return trip, nil
	}
	trip.Remaining = minRemaining
	trip.Available = minRemaining > 0
	return trip, nil
}

// CheckTrip verifies that occupants fit on every eligible day of the trip.
func (t *Tracker) CheckTrip(tour *models.Tour, travelDate time.Time, occupants int) error {
	trip, err := t.RemainingForTrip(tour, travelDate)
	if err != nil {
		return err
	}
	if trip.Remaining < occupants {
		return &CapacityError{
			TourID:    tour.ID,
			Date:      travelDate,
			Requested: occupants,
			Remaining: trip.Remaining,
		}
	}
	return nil
}

// OccupancyRatio returns booked occupancy over total capacity across the
// days the tour runs within the next demand window, clamped to [0, 1].
// Without eligible days or capacity the ratio is zero.
func (t *Tracker) OccupancyRatio(tour *models.Tour, now time.Time) (float64, error) {
	if tour.MaxCapacity <= 0 {
		return 0, nil
	}

	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, demandWindowDays)

	bookedByDate, err := t.bookings.ConfirmedOccupancyByDate(tour.ID, from, to)
	if err != nil {
		return 0, err
	}

	totalBooked := 0
	runDays := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if !tour.RunsOn(d) {
			continue
		}
		runDays++
		totalBooked += bookedByDate[d.Format(dateLayout)]
	}

	if runDays == 0 {
		return 0, nil
	}

	ratio := float64(totalBooked) / float64(runDays*tour.MaxCapacity)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio, nil
}
