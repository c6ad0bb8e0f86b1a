package models

import "carrental/src/types"

type Review struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	CarID   uint   `gorm:"not null;index" json:"car_id,omitempty"`
	UserID  uint   `gorm:"not null" json:"user_id,omitempty"`
	Rating  int    `gorm:"not null" json:"rating,omitempty"`
	Comment string `json:"comment,omitempty"`

	Car  *Car  `gorm:"foreignKey:car_id" json:"-"`
	User *User `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}
