package bookings

import (
	"carrental/src/types"
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

type EngineTestSuite struct {
	suite.Suite
	DB     *gorm.DB
	Mock   sqlmock.Sqlmock
	Engine *Engine
	Now    time.Time
}

func (s *EngineTestSuite) SetupTest() {
	d, mock := newMockDB()
	s.DB = d
	s.Mock = mock
	s.Now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Engine = NewEngine(d, fixedClock{now: s.Now})
}

func (s *EngineTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

var (
	customer = Identity{UserID: 2, Email: "someone@example.com", Role: types.ROLE_USER}
	operator = Identity{UserID: 1, Email: "admin@example.com", Role: types.ROLE_ADMIN}
)

func carRows(price float64, usageCount int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "brand", "model", "price_per_day", "available", "usage_count"}).
		AddRow(1, "Toyota", "Corolla", price, true, usageCount)
}

func userRows(id uint, email string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "role"}).
		AddRow(id, "Test User", email, "USER")
}

func bookingRows(id uint, start, end time.Time, status types.BookingStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "car_id", "user_id", "start_date_time", "end_date_time", "total_price", "status"}).
		AddRow(id, 1, 2, start, end, 100.0, string(status))
}

func (s *EngineTestSuite) TestCreationPrice() {
	start := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		end   time.Time
		rate  float64
		total float64
	}{
		{"exactly two days", start.Add(48 * time.Hour), 50, 100},
		{"one day plus an hour rounds up", start.Add(25 * time.Hour), 50, 100},
		{"exactly one day", start.Add(24 * time.Hour), 50, 50},
		{"single hour bills a full day", start.Add(1 * time.Hour), 50, 50},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			assert.Equal(s.T(), tt.total, CreationPrice(start, tt.end, tt.rate))
		})
	}
}

func (s *EngineTestSuite) TestUpdatePrice() {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		total float64
	}{
		{
			"same day bills one day",
			time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 6, 10, 23, 59, 59, 0, time.UTC),
			50,
		},
		{
			"three calendar days inclusive",
			time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 6, 12, 23, 59, 59, 0, time.UTC),
			150,
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			assert.Equal(s.T(), tt.total, UpdatePrice(tt.start, tt.end, 50))
		})
	}
}

// The two billing rules disagree on purpose: a 23 hour rental spanning
// midnight is one day at creation but two days after an update.
func (s *EngineTestSuite) TestPricingRulesDiffer() {
	start := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 11, 9, 0, 0, 0, time.UTC)
	assert.Equal(s.T(), 50.0, CreationPrice(start, end, 50))
	assert.Equal(s.T(), 100.0, UpdatePrice(start, end, 50))
}

func (s *EngineTestSuite) TestCreateBookingValidation() {
	tests := []struct {
		name   string
		start  time.Time
		end    time.Time
		reason string
	}{
		{
			"missing dates",
			time.Time{},
			time.Time{},
			"Start and End date-times must be provided.",
		},
		{
			"end not after start",
			s.Now.Add(24 * time.Hour),
			s.Now.Add(24 * time.Hour),
			"End date-time must be after start date-time.",
		},
		{
			"start inside the lead-time window",
			s.Now.Add(30 * time.Minute),
			s.Now.Add(24 * time.Hour),
			"Booking start time must be at least 1 hour from now.",
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.Engine.CreateBooking(CreateParams{
				CarID:         1,
				StartDateTime: tt.start,
				EndDateTime:   tt.end,
			}, customer)
			var verr *ValidationError
			assert.ErrorAs(s.T(), err, &verr)
			assert.EqualError(s.T(), err, tt.reason)
		})
	}
}

func (s *EngineTestSuite) TestCreateBookingCarNotFound() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "cars"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.Mock.ExpectRollback()

	_, err := s.Engine.CreateBooking(CreateParams{
		CarID:         42,
		StartDateTime: s.Now.Add(24 * time.Hour),
		EndDateTime:   s.Now.Add(48 * time.Hour),
	}, customer)
	var nferr *NotFoundError
	assert.ErrorAs(s.T(), err, &nferr)
	assert.EqualError(s.T(), err, "Car not found with ID: 42")
}

func (s *EngineTestSuite) TestCreateBookingOverlapConflict() {
	start := s.Now.Add(24 * time.Hour)
	end := s.Now.Add(72 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "cars"`).
		WillReturnRows(carRows(50, 0))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, customer.Email))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(7, start, end, types.BOOKING_CONFIRMED))
	s.Mock.ExpectRollback()

	_, err := s.Engine.CreateBooking(CreateParams{
		CarID:         1,
		StartDateTime: start,
		EndDateTime:   end,
	}, customer)
	var cerr *ConflictError
	assert.ErrorAs(s.T(), err, &cerr)
	assert.EqualError(s.T(), err, "Car is already booked during this time period.")
}

func (s *EngineTestSuite) TestCreateBookingSuccess() {
	start := s.Now.Add(24 * time.Hour)
	end := start.Add(48 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "cars"`).
		WillReturnRows(carRows(50, 0))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, customer.Email))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.Mock.ExpectQuery(`INSERT INTO "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	s.Mock.ExpectCommit()

	booking, err := s.Engine.CreateBooking(CreateParams{
		CarID:         1,
		StartDateTime: start,
		EndDateTime:   end,
	}, customer)
	s.Require().NoError(err)
	assert.Equal(s.T(), uint(9), booking.ID)
	assert.Equal(s.T(), types.BOOKING_PENDING, booking.Status)
	assert.Equal(s.T(), 100.0, booking.TotalPrice)
}

func (s *EngineTestSuite) TestCancelBookingLockout() {
	// Start time 1 hour away: inside the 2 hour lockout window.
	start := s.Now.Add(1 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_PENDING))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, customer.Email))
	s.Mock.ExpectRollback()

	err := s.Engine.CancelBooking(5, customer)
	var perr *PolicyError
	assert.ErrorAs(s.T(), err, &perr)
	assert.EqualError(s.T(), err, "Booking cannot be cancelled within 2 hours of the start time.")
}

func (s *EngineTestSuite) TestCancelBookingAhead() {
	// Start time 3 hours away: outside the lockout window.
	start := s.Now.Add(3 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_CONFIRMED))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, customer.Email))
	s.Mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	err := s.Engine.CancelBooking(5, customer)
	assert.NoError(s.T(), err)
}

func (s *EngineTestSuite) TestCancelBookingNotOwner() {
	start := s.Now.Add(48 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_PENDING))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, "someoneelse@example.com"))
	s.Mock.ExpectRollback()

	err := s.Engine.CancelBooking(5, customer)
	var aerr *AuthorizationError
	assert.ErrorAs(s.T(), err, &aerr)
}

func (s *EngineTestSuite) TestCancelBookingWrongStatus() {
	start := s.Now.Add(48 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_COMPLETED))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, customer.Email))
	s.Mock.ExpectRollback()

	err := s.Engine.CancelBooking(5, customer)
	var cerr *ConflictError
	assert.ErrorAs(s.T(), err, &cerr)
	assert.EqualError(s.T(), err, "Only pending or confirmed bookings can be cancelled. Current status: COMPLETED")
}

func (s *EngineTestSuite) TestUpdateBookingNotOwner() {
	start := s.Now.Add(48 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_PENDING))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, "someoneelse@example.com"))
	s.Mock.ExpectRollback()

	_, err := s.Engine.UpdateBooking(5, UpdateParams{}, customer)
	var aerr *AuthorizationError
	assert.ErrorAs(s.T(), err, &aerr)
	assert.EqualError(s.T(), err, "You are not authorized to update this booking.")
}

func (s *EngineTestSuite) TestUpdateBookingWrongStatus() {
	start := s.Now.Add(48 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_CONFIRMED))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, customer.Email))
	s.Mock.ExpectRollback()

	_, err := s.Engine.UpdateBooking(5, UpdateParams{}, customer)
	var cerr *ConflictError
	assert.ErrorAs(s.T(), err, &cerr)
	assert.EqualError(s.T(), err, "Only pending bookings can be updated.")
}

func (s *EngineTestSuite) TestUpdateBookingReprices() {
	start := s.Now.Add(10 * 24 * time.Hour)
	newStart := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
	newEnd := time.Date(2026, 6, 22, 0, 0, 0, 0, time.UTC)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_PENDING))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(2, customer.Email))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "cars"`).
		WillReturnRows(carRows(50, 0))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.Mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	booking, err := s.Engine.UpdateBooking(5, UpdateParams{
		StartDate: &newStart,
		EndDate:   &newEnd,
	}, customer)
	s.Require().NoError(err)
	// June 20 through June 22 is 3 inclusive days at $50.
	assert.Equal(s.T(), 150.0, booking.TotalPrice)
	assert.Equal(s.T(), time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC), booking.StartDateTime)
	assert.Equal(s.T(), time.Date(2026, 6, 22, 23, 59, 59, 0, time.UTC), booking.EndDateTime)
}

func (s *EngineTestSuite) TestConfirmPickupRequiresAdmin() {
	_, err := s.Engine.ConfirmPickup(5, customer)
	var aerr *AuthorizationError
	assert.ErrorAs(s.T(), err, &aerr)
}

func (s *EngineTestSuite) TestConfirmPickupWrongStatus() {
	start := s.Now.Add(1 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_PENDING))
	s.Mock.ExpectRollback()

	_, err := s.Engine.ConfirmPickup(5, operator)
	var cerr *ConflictError
	assert.ErrorAs(s.T(), err, &cerr)
	assert.EqualError(s.T(), err, "Booking must be confirmed to be picked up. Current status: PENDING")
}

func (s *EngineTestSuite) TestConfirmPickup() {
	start := s.Now.Add(1 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_CONFIRMED))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "cars"`).
		WillReturnRows(carRows(50, 3))
	// The car leaves the fleet and its usage count moves 3 -> 4.
	s.Mock.ExpectExec(`UPDATE "cars"`).
		WithArgs(false, 4, sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	booking, err := s.Engine.ConfirmPickup(5, operator)
	s.Require().NoError(err)
	assert.Equal(s.T(), types.BOOKING_IN_PROGRESS, booking.Status)
}

func (s *EngineTestSuite) TestCompleteBooking() {
	start := s.Now.Add(-24 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, s.Now, types.BOOKING_IN_PROGRESS))
	// The car returns to the fleet.
	s.Mock.ExpectExec(`UPDATE "cars"`).
		WithArgs(true, sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	booking, err := s.Engine.CompleteBooking(5, operator)
	s.Require().NoError(err)
	assert.Equal(s.T(), types.BOOKING_COMPLETED, booking.Status)
}

func (s *EngineTestSuite) TestCompleteBookingWrongStatus() {
	start := s.Now.Add(-24 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, s.Now, types.BOOKING_CONFIRMED))
	s.Mock.ExpectRollback()

	_, err := s.Engine.CompleteBooking(5, operator)
	var cerr *ConflictError
	assert.ErrorAs(s.T(), err, &cerr)
	assert.EqualError(s.T(), err, "Booking must be in progress to be completed. Current status: CONFIRMED")
}

func (s *EngineTestSuite) TestConfirmBookingWrongStatus() {
	start := s.Now.Add(24 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_CANCELLED))
	s.Mock.ExpectRollback()

	ref := "cs_test_123"
	_, err := s.Engine.ConfirmBooking(5, &ref)
	var cerr *ConflictError
	assert.ErrorAs(s.T(), err, &cerr)
}

func (s *EngineTestSuite) TestConfirmBooking() {
	start := s.Now.Add(24 * time.Hour)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(5, start, start.Add(24*time.Hour), types.BOOKING_PENDING))
	s.Mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	ref := "cs_test_123"
	booking, err := s.Engine.ConfirmBooking(5, &ref)
	s.Require().NoError(err)
	assert.Equal(s.T(), types.BOOKING_CONFIRMED, booking.Status)
	s.Require().NotNil(booking.PaymentRef)
	assert.Equal(s.T(), "cs_test_123", *booking.PaymentRef)
}

func (s *EngineTestSuite) TestIsCarAvailable() {
	start := s.Now.Add(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	available, err := s.Engine.IsCarAvailable(1, start, end)
	s.Require().NoError(err)
	assert.True(s.T(), available)

	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(bookingRows(7, start, end, types.BOOKING_PENDING))
	available, err = s.Engine.IsCarAvailable(1, start, end)
	s.Require().NoError(err)
	assert.False(s.T(), available)
}

func (s *EngineTestSuite) TestListBookingsForUserScopes() {
	start := s.Now.Add(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	// "active" keeps bookings that have not ended yet, soonest start first.
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings" JOIN users ON users.id = bookings.user_id WHERE users.email = (.+) AND end_date_time >= (.+) ORDER BY start_date_time asc`).
		WillReturnRows(bookingRows(5, start, end, types.BOOKING_CONFIRMED))
	s.Mock.ExpectQuery(`SELECT (.+) FROM "cars"`).
		WillReturnRows(carRows(50, 0))

	active, err := s.Engine.ListBookingsForUser(customer.Email, "active")
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	assert.Equal(s.T(), uint(5), active[0].ID)
	s.Require().NotNil(active[0].Car)
	assert.Equal(s.T(), "Toyota", active[0].Car.Brand)

	// "past" keeps ended bookings, most recent start first.
	s.Mock.ExpectQuery(`SELECT (.+) FROM "bookings" JOIN users ON users.id = bookings.user_id WHERE users.email = (.+) AND end_date_time < (.+) ORDER BY start_date_time desc`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	past, err := s.Engine.ListBookingsForUser(customer.Email, "past")
	s.Require().NoError(err)
	assert.Empty(s.T(), past)
}

func (s *EngineTestSuite) TestListBookingsRequiresAdmin() {
	_, err := s.Engine.ListBookings(customer)
	var aerr *AuthorizationError
	assert.ErrorAs(s.T(), err, &aerr)
}

func (s *EngineTestSuite) TestDeleteAllBookingsRequiresAdmin() {
	err := s.Engine.DeleteAllBookings(customer)
	var aerr *AuthorizationError
	assert.ErrorAs(s.T(), err, &aerr)
}

func TestAuthorizeRoles(t *testing.T) {
	e := NewEngine(nil, fixedClock{})
	tests := []struct {
		op        Operation
		requester Identity
		allowed   bool
	}{
		{OpCreateBooking, customer, true},
		{OpUpdateBooking, customer, true},
		{OpCancelBooking, customer, true},
		{OpConfirmPickup, customer, false},
		{OpComplete, customer, false},
		{OpListAll, customer, false},
		{OpWipe, customer, false},
		{OpConfirmPickup, operator, true},
		{OpComplete, operator, true},
		{OpListAll, operator, true},
		{OpWipe, operator, true},
	}
	for _, tt := range tests {
		err := e.authorize(tt.op, tt.requester)
		if tt.allowed {
			assert.NoError(t, err, "operation %s should be allowed for %s", tt.op, tt.requester.Role)
		} else {
			assert.Error(t, err, "operation %s should be denied for %s", tt.op, tt.requester.Role)
		}
	}
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
