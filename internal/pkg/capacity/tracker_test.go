package capacity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milanotravel/tourbooking/app/models"
)

type fakeBookingRepo struct {
	occupancy map[string]int
}

func (f *fakeBookingRepo) Create(*models.Booking) error                  { return nil }
func (f *fakeBookingRepo) GetByID(uint) (*models.Booking, error)         { return nil, nil }
func (f *fakeBookingRepo) GetByCode(string) (*models.Booking, error)     { return nil, nil }
func (f *fakeBookingRepo) GetByProposalID(uint) (*models.Booking, error) { return nil, nil }
func (f *fakeBookingRepo) List(int, int) ([]models.Booking, error)       { return nil, nil }
func (f *fakeBookingRepo) Count() (int64, error)                         { return 0, nil }

func (f *fakeBookingRepo) ConfirmedOccupancyForDate(tourID uint, date time.Time) (int, error) {
	return f.occupancy[date.Format("2006-01-02")], nil
}

func (f *fakeBookingRepo) ConfirmedOccupancyByDate(tourID uint, from, to time.Time) (map[string]int, error) {
	out := map[string]int{}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if booked, ok := f.occupancy[key]; ok {
			out[key] = booked
		}
	}
	return out, nil
}

func newTestTour() *models.Tour {
	return &models.Tour{
		ID:           1,
		Name:         "Lakes and Peaks",
		MaxCapacity:  20,
		DurationDays: 3,
	}
}

// Monday 2026-06-01.
var testMonday = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestRemainingForDate(t *testing.T) {
	repo := &fakeBookingRepo{occupancy: map[string]int{"2026-06-01": 12}}
	tracker := NewTracker(nil, repo)

	snap, err := tracker.RemainingForDate(newTestTour(), testMonday)
	require.NoError(t, err)
	assert.True(t, snap.Runs)
	assert.Equal(t, 20, snap.Capacity)
	assert.Equal(t, 12, snap.Booked)
	assert.Equal(t, 8, snap.Remaining)
}

func TestRemainingForDateOffDayIsZero(t *testing.T) {
	tour := newTestTour()
	tour.AvailableDays = "2,4" // Tuesday and Thursday only
	tracker := NewTracker(nil, &fakeBookingRepo{})

	snap, err := tracker.RemainingForDate(tour, testMonday)
	require.NoError(t, err)
	assert.False(t, snap.Runs)
	assert.Equal(t, 0, snap.Capacity)
	assert.Equal(t, 0, snap.Remaining)
}

func TestRemainingForDateOverbookedClampsToZero(t *testing.T) {
	repo := &fakeBookingRepo{occupancy: map[string]int{"2026-06-01": 25}}
	tracker := NewTracker(nil, repo)

	snap, err := tracker.RemainingForDate(newTestTour(), testMonday)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Remaining)
}

func TestRemainingForTripUsesBottleneck(t *testing.T) {
	repo := &fakeBookingRepo{occupancy: map[string]int{
		"2026-06-01": 5,
		"2026-06-02": 18,
		"2026-06-03": 2,
	}}
	tracker := NewTracker(nil, repo)

	trip, err := tracker.RemainingForTrip(newTestTour(), testMonday)
	require.NoError(t, err)
	require.Len(t, trip.Days, 3)
	assert.Equal(t, 2, trip.Remaining)
	assert.True(t, trip.Available)
}

func TestRemainingForTripSkipsOffDays(t *testing.T) {
	tour := newTestTour()
	tour.AvailableDays = "1,3" // Monday and Wednesday; the Tuesday is an off day
	repo := &fakeBookingRepo{occupancy: map[string]int{
		"2026-06-01": 5,
		"2026-06-02": 20, // full, but the tour does not run on Tuesday
		"2026-06-03": 7,
	}}
	tracker := NewTracker(nil, repo)

	trip, err := tracker.RemainingForTrip(tour, testMonday)
	require.NoError(t, err)
	assert.Equal(t, 13, trip.Remaining)
	assert.True(t, trip.Available)
	assert.False(t, trip.Days[1].Runs)
}

func TestRemainingForTripNoEligibleDays(t *testing.T) {
	tour := newTestTour()
	tour.DurationDays = 2
	tour.AvailableDays = "6" // Saturday only, trip is Monday and Tuesday
	tracker := NewTracker(nil, &fakeBookingRepo{})

	trip, err := tracker.RemainingForTrip(tour, testMonday)
	require.NoError(t, err)
	assert.Equal(t, 0, trip.Remaining)
	assert.False(t, trip.Available)
}

func TestCheckTrip(t *testing.T) {
	repo := &fakeBookingRepo{occupancy: map[string]int{"2026-06-02": 17}}
	tracker := NewTracker(nil, repo)
	tour := newTestTour()

	assert.NoError(t, tracker.CheckTrip(tour, testMonday, 3))

	err := tracker.CheckTrip(tour, testMonday, 4)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 4, capErr.Requested)
	assert.Equal(t, 3, capErr.Remaining)
}

func TestOccupancyRatio(t *testing.T) {
	tour := newTestTour()
	tour.MaxCapacity = 10

	occupancy := map[string]int{}
	// Half-full on every day of the window.
	for i := 0; i < 30; i++ {
		occupancy[testMonday.AddDate(0, 0, i).Format("2006-01-02")] = 5
	}
	tracker := NewTracker(nil, &fakeBookingRepo{occupancy: occupancy})

	ratio, err := tracker.OccupancyRatio(tour, testMonday)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ratio, 1e-9)
}

func TestOccupancyRatioZeroCapacity(t *testing.T) {
	tour := newTestTour()
	tour.MaxCapacity = 0
	tracker := NewTracker(nil, &fakeBookingRepo{})

	ratio, err := tracker.OccupancyRatio(tour, testMonday)
	require.NoError(t, err)
	assert.Zero(t, ratio)
}

func TestOccupancyRatioClampsAtOne(t *testing.T) {
	tour := newTestTour()
	tour.MaxCapacity = 2
	occupancy := map[string]int{}
	for i := 0; i < 30; i++ {
		occupancy[testMonday.AddDate(0, 0, i).Format("2006-01-02")] = 9
	}
	tracker := NewTracker(nil, &fakeBookingRepo{occupancy: occupancy})

	ratio, err := tracker.OccupancyRatio(tour, testMonday)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ratio)
}
