package finalizer

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/internal/pkg/capacity"
	"github.com/milanotravel/tourbooking/internal/pkg/notify"
)

type fakePublisher struct {
	events []notify.EventType
}

func (f *fakePublisher) Publish(eventType notify.EventType, payload map[string]interface{}) (*notify.Event, error) {
	f.events = append(f.events, eventType)
	return &notify.Event{Type: eventType}, nil
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return db, mock
}

var finalizeDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func proposalRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "code", "status", "tour_id", "travel_date",
		"number_of_adults", "number_of_children", "number_of_infants",
		"estimated_price", "currency", "customer_name", "customer_email",
	}).AddRow(
		7, "MTAB12CD3", status, 1, finalizeDate,
		2, 1, 0,
		350.00, "USD", "Ada Rossi", "ada@example.com",
	)
}

func tourRows(maxCapacity int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "max_capacity", "duration_days"}).
		AddRow(1, "Tuscany Escape", maxCapacity, 1)
}

func expectProposalLock(mock sqlmock.Sqlmock, status string) {
	mock.ExpectQuery("SELECT .+ FROM `proposals` .+FOR UPDATE").
		WillReturnRows(proposalRows(status))
}

func expectTourLock(mock sqlmock.Sqlmock, maxCapacity int) {
	mock.ExpectQuery("SELECT .+ FROM `tours` .+FOR UPDATE").
		WillReturnRows(tourRows(maxCapacity))
}

func TestFinalizeCreatesBookingAndMarksProposalPaid(t *testing.T) {
	db, mock := newMockDB(t)
	publisher := &fakePublisher{}
	fin := NewWithoutCache(db, publisher)

	mock.ExpectBegin()
	expectProposalLock(mock, models.PROPOSAL_SUPPLIER_CONFIRMED)
	// No booking exists for this proposal yet.
	mock.ExpectQuery("SELECT .+ FROM `bookings` WHERE proposal_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectTourLock(mock, 20)
	// Capacity re-check over the trip window.
	mock.ExpectQuery("SELECT DATE_FORMAT").
		WillReturnRows(sqlmock.NewRows([]string{"date", "total"}).AddRow("2026-06-01", 5))
	mock.ExpectExec("INSERT INTO `bookings`").
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectExec("UPDATE `proposals` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking, err := fin.Finalize(7, "PAYPAL-9F3K")
	require.NoError(t, err)

	assert.Equal(t, uint(7), booking.ProposalID)
	assert.Equal(t, models.PAYMENT_PAID, booking.PaymentStatus)
	assert.Equal(t, models.BOOKING_CONFIRMED, booking.Status)
	assert.Equal(t, "PAYPAL-9F3K", booking.PaymentReference)
	assert.Equal(t, []notify.EventType{notify.EventBookingFinalized}, publisher.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	publisher := &fakePublisher{}
	fin := NewWithoutCache(db, publisher)

	mock.ExpectBegin()
	expectProposalLock(mock, models.PROPOSAL_PAID)
	mock.ExpectQuery("SELECT .+ FROM `bookings` WHERE proposal_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "proposal_id", "payment_reference", "status", "payment_status"}).
			AddRow(31, "ALXY98ZW7", 7, "PAYPAL-9F3K", models.BOOKING_CONFIRMED, models.PAYMENT_PAID))
	mock.ExpectCommit()

	booking, err := fin.Finalize(7, "PAYPAL-9F3K")
	require.NoError(t, err)

	assert.Equal(t, "ALXY98ZW7", booking.Code)
	assert.Empty(t, publisher.events, "a replayed callback must not re-notify")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeRefusesUnconfirmedProposal(t *testing.T) {
	db, mock := newMockDB(t)
	fin := NewWithoutCache(db, nil)

	mock.ExpectBegin()
	expectProposalLock(mock, models.PROPOSAL_PENDING_SUPPLIER)
	mock.ExpectQuery("SELECT .+ FROM `bookings` WHERE proposal_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := fin.Finalize(7, "PAYPAL-9F3K")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, models.PROPOSAL_PENDING_SUPPLIER, statusErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeRechecksCapacityAtCommit(t *testing.T) {
	db, mock := newMockDB(t)
	fin := NewWithoutCache(db, nil)

	mock.ExpectBegin()
	// Capacity 5 with 4 already booked leaves one slot for a party of three.
	expectProposalLock(mock, models.PROPOSAL_SUPPLIER_CONFIRMED)
	mock.ExpectQuery("SELECT .+ FROM `bookings` WHERE proposal_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectTourLock(mock, 5)
	mock.ExpectQuery("SELECT DATE_FORMAT").
		WillReturnRows(sqlmock.NewRows([]string{"date", "total"}).AddRow("2026-06-01", 4))
	mock.ExpectRollback()

	_, err := fin.Finalize(7, "PAYPAL-9F3K")
	var capErr *capacity.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3, capErr.Requested)
	assert.Equal(t, 1, capErr.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two finalizes for different proposals on the same tour must not both pass
// the capacity check. The tour row is locked exclusively before the
// occupancy read, so the second transaction waits for the first to commit
// and then sees its booking. Expectations are ordered: the FOR UPDATE on
// tours must come before the occupancy aggregate.
func TestFinalizeLocksTourBeforeCapacityCheck(t *testing.T) {
	db, mock := newMockDB(t)
	fin := NewWithoutCache(db, nil)

	mock.ExpectBegin()
	expectProposalLock(mock, models.PROPOSAL_SUPPLIER_CONFIRMED)
	mock.ExpectQuery("SELECT .+ FROM `bookings` WHERE proposal_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	// A rival finalize for another proposal committed while we waited on the
	// tour lock, so the occupancy read already includes its party.
	expectTourLock(mock, 4)
	mock.ExpectQuery("SELECT DATE_FORMAT").
		WillReturnRows(sqlmock.NewRows([]string{"date", "total"}).AddRow("2026-06-01", 4))
	mock.ExpectRollback()

	_, err := fin.Finalize(7, "PAYPAL-9F3K")
	var capErr *capacity.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 0, capErr.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}
