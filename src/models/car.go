package models

import "carrental/src/types"

type Car struct {
	ID           uint    `gorm:"primarykey" json:"id"`
	Brand        string  `json:"brand,omitempty"`
	Model        string  `json:"model,omitempty"`
	Slug         string  `gorm:"index" json:"slug,omitempty"`
	PricePerDay  float64 `json:"price_per_day,omitempty"`
	Available    bool    `gorm:"default:true" json:"available"`
	ImageURL     string  `json:"image_url,omitempty"`
	Category     string  `json:"category,omitempty"`
	Transmission string  `json:"transmission,omitempty"`
	FuelType     string  `json:"fuel_type,omitempty"`
	Seats        int     `json:"seats,omitempty"`
	Color        string  `json:"color,omitempty"`
	Year         int     `json:"year,omitempty"`
	Description  string  `json:"description,omitempty"`

	UsageCount int `gorm:"default:0" json:"usage_count,omitempty"`

	// Aggregates kept in sync whenever a review is written.
	RatingAverage float64 `gorm:"default:0" json:"rating_average"`
	RatingCount   int     `gorm:"default:0" json:"rating_count"`

	types.Timestamps
}
