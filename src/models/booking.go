package models

import (
	"carrental/src/types"
	"time"
)

// Booking references Car and User by id only; neither owns the booking.
type Booking struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	CarID         uint                `gorm:"not null" json:"car_id,omitempty"`
	UserID        uint                `gorm:"not null" json:"user_id,omitempty"`
	StartDateTime time.Time           `gorm:"not null" json:"start_date_time,omitempty"`
	EndDateTime   time.Time           `gorm:"not null" json:"end_date_time,omitempty"`
	TotalPrice    float64             `json:"total_price,omitempty"`
	Status        types.BookingStatus `gorm:"default:'PENDING'" json:"status,omitempty"`
	PaymentRef    *string             `json:"-"`

	Car  *Car  `gorm:"foreignKey:car_id" json:"car,omitempty"`
	User *User `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}
