package bookings

import (
	"carrental/src/models"
	"carrental/src/types"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine enforces the booking state machine. Every lifecycle operation
// runs as a single transaction; the overlap check and the write are
// serialized per car by a row lock on the car record.
type Engine struct {
	db    *gorm.DB
	clock Clock
}

func NewEngine(db *gorm.DB, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{db: db, clock: clock}
}

type CreateParams struct {
	CarID         uint
	StartDateTime time.Time
	EndDateTime   time.Time
}

// UpdateParams carries a partial update; nil fields keep their stored
// value. Dates are calendar days: start bills from midnight, end until
// 23:59:59.
type UpdateParams struct {
	CarID     *uint
	StartDate *time.Time
	EndDate   *time.Time
}

func (e *Engine) CreateBooking(params CreateParams, requester Identity) (*models.Booking, error) {
	if err := e.authorize(OpCreateBooking, requester); err != nil {
		return nil, err
	}
	start := params.StartDateTime
	end := params.EndDateTime
	if start.IsZero() || end.IsZero() {
		return nil, &ValidationError{Reason: "Start and End date-times must be provided."}
	}
	if !end.After(start) {
		return nil, &ValidationError{Reason: "End date-time must be after start date-time."}
	}
	if start.Before(e.clock.Now().Add(1 * time.Hour)) {
		return nil, &ValidationError{Reason: "Booking start time must be at least 1 hour from now."}
	}

	var booking models.Booking
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var car models.Car
		// The row lock on the car serializes concurrent creations for it:
		// two requests cannot both see an empty overlap set.
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", params.CarID).
			First(&car).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "Car", ID: params.CarID}
			}
			return err
		}
		var user models.User
		if err := tx.
			Where("email = ?", requester.Email).
			First(&user).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "User", ID: requester.Email}
			}
			return err
		}
		overlapping, err := findOverlapping(tx, car.ID, start, end, 0)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return &ConflictError{Reason: "Car is already booked during this time period."}
		}
		durationInHours := int64(end.Sub(start) / time.Hour)
		if durationInHours <= 0 {
			return &ValidationError{Reason: "Booking must be for a positive duration."}
		}

		booking = models.Booking{
			CarID:         car.ID,
			UserID:        user.ID,
			StartDateTime: start,
			EndDateTime:   end,
			TotalPrice:    CreationPrice(start, end, car.PricePerDay),
			Status:        types.BOOKING_PENDING,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (e *Engine) GetBooking(id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := e.db.
		Model(&models.Booking{}).
		Where(&models.Booking{ID: id}).
		Preload("Car").
		Preload("User").
		First(&booking).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "Booking", ID: id}
		}
		return nil, err
	}
	return &booking, nil
}

func (e *Engine) UpdateBooking(id uint, params UpdateParams, requester Identity) (*models.Booking, error) {
	if err := e.authorize(OpUpdateBooking, requester); err != nil {
		return nil, err
	}
	var booking models.Booking
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.Booking{ID: id}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "Booking", ID: id}
			}
			return err
		}
		var owner models.User
		if err := tx.
			Where("id = ?", booking.UserID).
			First(&owner).
			Error; err != nil {
			return err
		}
		if owner.Email != requester.Email {
			return &AuthorizationError{Reason: "You are not authorized to update this booking."}
		}
		if booking.Status != types.BOOKING_PENDING {
			return &ConflictError{Reason: "Only pending bookings can be updated."}
		}

		updated := false
		if params.CarID != nil {
			booking.CarID = *params.CarID
			updated = true
		}
		if params.StartDate != nil {
			d := *params.StartDate
			booking.StartDateTime = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
			updated = true
		}
		if params.EndDate != nil {
			d := *params.EndDate
			booking.EndDateTime = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
			updated = true
		}

		if updated {
			if !booking.EndDateTime.After(booking.StartDateTime) {
				return &ValidationError{Reason: "End date-time must be after start date-time."}
			}
			var car models.Car
			if err := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", booking.CarID).
				First(&car).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &NotFoundError{Resource: "Car", ID: booking.CarID}
				}
				return err
			}
			overlapping, err := findOverlapping(tx, car.ID, booking.StartDateTime, booking.EndDateTime, booking.ID)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return &ConflictError{Reason: "Car is already booked during this time period."}
			}
			booking.TotalPrice = UpdatePrice(booking.StartDateTime, booking.EndDateTime, car.PricePerDay)
		}
		if err := tx.Save(&booking).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (e *Engine) CancelBooking(id uint, requester Identity) error {
	if err := e.authorize(OpCancelBooking, requester); err != nil {
		return err
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Where(&models.Booking{ID: id}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "Booking", ID: id}
			}
			return err
		}
		var owner models.User
		if err := tx.
			Where("id = ?", booking.UserID).
			First(&owner).
			Error; err != nil {
			return err
		}
		if owner.Email != requester.Email {
			return &AuthorizationError{Reason: "You are not authorized to cancel this booking."}
		}
		if booking.StartDateTime.IsZero() {
			return &ValidationError{Reason: "Booking data is corrupted - start date-time is missing."}
		}
		if booking.Status != types.BOOKING_PENDING && booking.Status != types.BOOKING_CONFIRMED {
			return &ConflictError{Reason: fmt.Sprintf("Only pending or confirmed bookings can be cancelled. Current status: %s", booking.Status)}
		}
		cancellationCutoff := booking.StartDateTime.Add(-2 * time.Hour)
		if e.clock.Now().After(cancellationCutoff) {
			return &PolicyError{Reason: "Booking cannot be cancelled within 2 hours of the start time."}
		}
		// Car availability stays untouched: the flag only ever flips on
		// pickup and return.
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: id}).
			Update("status", types.BOOKING_CANCELLED).
			Error; err != nil {
			return err
		}
		return nil
	})
}

// ConfirmBooking moves a pending booking to CONFIRMED. Called by the
// payment collaborator once a capture succeeds.
func (e *Engine) ConfirmBooking(id uint, paymentRef *string) (*models.Booking, error) {
	var booking models.Booking
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Booking{ID: id}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "Booking", ID: id}
			}
			return err
		}
		if booking.Status != types.BOOKING_PENDING {
			return &ConflictError{Reason: fmt.Sprintf("Only pending bookings can be confirmed. Current status: %s", booking.Status)}
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: id}).
			Updates(map[string]any{
				"status":      types.BOOKING_CONFIRMED,
				"payment_ref": paymentRef,
			}).
			Error; err != nil {
			return err
		}
		booking.Status = types.BOOKING_CONFIRMED
		booking.PaymentRef = paymentRef
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (e *Engine) ConfirmPickup(id uint, requester Identity) (*models.Booking, error) {
	if err := e.authorize(OpConfirmPickup, requester); err != nil {
		return nil, err
	}
	var booking models.Booking
	err := e.db.Transaction(func(tx *gorm.DB) error {
		// Locked read: a concurrent pickup observes the new status and
		// fails the precondition instead of double-applying the effects.
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Booking{ID: id}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "Booking", ID: id}
			}
			return err
		}
		if booking.Status != types.BOOKING_CONFIRMED {
			return &ConflictError{Reason: fmt.Sprintf("Booking must be confirmed to be picked up. Current status: %s", booking.Status)}
		}
		var car models.Car
		if err := tx.
			Where("id = ?", booking.CarID).
			First(&car).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Car{}).
			Where("id = ?", car.ID).
			Updates(map[string]any{
				"available":   false,
				"usage_count": car.UsageCount + 1,
			}).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: id}).
			Update("status", types.BOOKING_IN_PROGRESS).
			Error; err != nil {
			return err
		}
		booking.Status = types.BOOKING_IN_PROGRESS
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (e *Engine) CompleteBooking(id uint, requester Identity) (*models.Booking, error) {
	if err := e.authorize(OpComplete, requester); err != nil {
		return nil, err
	}
	var booking models.Booking
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Booking{ID: id}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "Booking", ID: id}
			}
			return err
		}
		if booking.Status != types.BOOKING_IN_PROGRESS {
			return &ConflictError{Reason: fmt.Sprintf("Booking must be in progress to be completed. Current status: %s", booking.Status)}
		}
		if err := tx.
			Model(&models.Car{}).
			Where("id = ?", booking.CarID).
			Update("available", true).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: id}).
			Update("status", types.BOOKING_COMPLETED).
			Error; err != nil {
			return err
		}
		booking.Status = types.BOOKING_COMPLETED
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (e *Engine) ListBookings(requester Identity) ([]models.Booking, error) {
	if err := e.authorize(OpListAll, requester); err != nil {
		return nil, err
	}
	var bookings []models.Booking
	if err := e.db.
		Model(&models.Booking{}).
		Preload("Car").
		Preload("User").
		Order("start_date_time desc").
		Find(&bookings).
		Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListBookingsForUser returns the requester's bookings filtered by scope:
// "active" has not ended yet (soonest start first), "past" has ended
// (most recent start first), anything else returns all of them.
func (e *Engine) ListBookingsForUser(email string, scope string) ([]models.Booking, error) {
	now := e.clock.Now()
	q := e.db.
		Model(&models.Booking{}).
		Joins("JOIN users ON users.id = bookings.user_id").
		Where("users.email = ?", email).
		Preload("Car")
	switch strings.ToLower(scope) {
	case "active":
		q = q.Where("end_date_time >= ?", now).Order("start_date_time asc")
	case "past":
		q = q.Where("end_date_time < ?", now).Order("start_date_time desc")
	default:
		q = q.Order("start_date_time desc")
	}
	var bookings []models.Booking
	if err := q.Find(&bookings).Error; err != nil {
		log.Printf("Error listing bookings for %s: %s\n", email, err.Error())
		return nil, err
	}
	return bookings, nil
}

// DeleteAllBookings is the operational escape hatch; nothing in the
// business flow deletes bookings individually.
func (e *Engine) DeleteAllBookings(requester Identity) error {
	if err := e.authorize(OpWipe, requester); err != nil {
		return err
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		return tx.
			Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.Booking{}).
			Error
	})
}

// FindOverlapping returns non-cancelled bookings for the car whose
// [start, end) interval intersects the window.
func (e *Engine) FindOverlapping(carID uint, start, end time.Time) ([]models.Booking, error) {
	return findOverlapping(e.db, carID, start, end, 0)
}

// IsCarAvailable is a read-only probe; it takes no locks and has no
// side effects.
func (e *Engine) IsCarAvailable(carID uint, start, end time.Time) (bool, error) {
	overlapping, err := e.FindOverlapping(carID, start, end)
	if err != nil {
		return false, err
	}
	return len(overlapping) == 0, nil
}

func findOverlapping(tx *gorm.DB, carID uint, start, end time.Time, excludeID uint) ([]models.Booking, error) {
	q := tx.
		Model(&models.Booking{}).
		Where("car_id = ?", carID).
		Where("start_date_time < ? AND end_date_time > ?", end, start).
		Where("status <> ?", types.BOOKING_CANCELLED)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var overlapping []models.Booking
	if err := q.Find(&overlapping).Error; err != nil {
		return nil, err
	}
	return overlapping, nil
}
