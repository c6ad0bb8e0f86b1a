package bookings

import (
	"math"
	"time"
)

// CreationPrice bills whole hours rounded up to full days: a 25 hour
// rental pays for 2 days.
func CreationPrice(start, end time.Time, pricePerDay float64) float64 {
	durationInHours := int64(end.Sub(start) / time.Hour)
	numberOfDays := int64(math.Ceil(float64(durationInHours) / 24.0))
	return float64(numberOfDays) * pricePerDay
}

// UpdatePrice bills an inclusive calendar-day count: daysBetween + 1.
// This intentionally differs from CreationPrice; the two billing rules
// are per-path and must not be unified without a product decision.
func UpdatePrice(start, end time.Time, pricePerDay float64) float64 {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	numberOfDays := int64(endDay.Sub(startDay).Hours()/24) + 1
	return float64(numberOfDays) * pricePerDay
}
