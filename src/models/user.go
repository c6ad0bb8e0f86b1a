package models

import (
	"carrental/src/types"
	"time"
)

type User struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `gorm:"uniqueIndex" json:"email,omitempty"`
	Password      string     `json:"-"`
	Role          types.Role `gorm:"default:'USER'" json:"role,omitempty"`
	EmailVerified bool       `json:"email_verified,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`

	Bookings []Booking `gorm:"foreignKey:user_id" json:"bookings,omitempty"`

	types.Timestamps
}
