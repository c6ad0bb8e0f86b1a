package types

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type BookingStatus string

const (
	BOOKING_PENDING     BookingStatus = "PENDING"
	BOOKING_CONFIRMED   BookingStatus = "CONFIRMED"
	BOOKING_IN_PROGRESS BookingStatus = "IN_PROGRESS"
	BOOKING_COMPLETED   BookingStatus = "COMPLETED"
	BOOKING_CANCELLED   BookingStatus = "CANCELLED"
)

type Role string

const (
	ROLE_USER  Role = "USER"
	ROLE_ADMIN Role = "ADMIN"
)

type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type CreateBookingRequestBody struct {
	CarID         uint   `json:"car_id" binding:"required"`
	StartDateTime string `json:"start_date_time" binding:"required,bookingdate" time_format:"2006-01-02T15:04:05"`
	EndDateTime   string `json:"end_date_time" binding:"required,bookingdate" time_format:"2006-01-02T15:04:05"`
}

// Partial update: absent fields keep their stored value.
type UpdateBookingRequestBody struct {
	CarID     *uint   `json:"car_id,omitempty"`
	StartDate *string `json:"start_date,omitempty" binding:"omitempty,calendardate" time_format:"2006-01-02"`
	EndDate   *string `json:"end_date,omitempty" binding:"omitempty,calendardate" time_format:"2006-01-02"`
}

type CreateCarRequestBody struct {
	Brand        string  `json:"brand" binding:"required"`
	Model        string  `json:"model" binding:"required"`
	PricePerDay  float64 `json:"price_per_day" binding:"required,gt=0"`
	ImageURL     string  `json:"image_url,omitempty"`
	Category     string  `json:"category,omitempty"`
	Transmission string  `json:"transmission,omitempty"`
	FuelType     string  `json:"fuel_type,omitempty"`
	Seats        int     `json:"seats,omitempty"`
	Color        string  `json:"color,omitempty"`
	Year         int     `json:"year,omitempty"`
	Description  string  `json:"description,omitempty"`
}

type UpdateCarRequestBody struct {
	Brand        *string  `json:"brand,omitempty"`
	Model        *string  `json:"model,omitempty"`
	PricePerDay  *float64 `json:"price_per_day,omitempty" binding:"omitempty,gt=0"`
	Available    *bool    `json:"available,omitempty"`
	ImageURL     *string  `json:"image_url,omitempty"`
	Category     *string  `json:"category,omitempty"`
	Transmission *string  `json:"transmission,omitempty"`
	FuelType     *string  `json:"fuel_type,omitempty"`
	Seats        *int     `json:"seats,omitempty"`
	Color        *string  `json:"color,omitempty"`
	Year         *int     `json:"year,omitempty"`
	Description  *string  `json:"description,omitempty"`
}

type CarQueryFilters struct {
	Brand        string   `form:"brand"`
	Category     string   `form:"category"`
	FuelType     string   `form:"fuel_type"`
	Transmission string   `form:"transmission"`
	Available    *bool    `form:"available"`
	MinPrice     *float64 `form:"min_price"`
	MaxPrice     *float64 `form:"max_price"`
	MinSeats     *int     `form:"min_seats"`
	MaxSeats     *int     `form:"max_seats"`
	MinYear      *int     `form:"min_year"`
	MaxYear      *int     `form:"max_year"`
	Query        string   `form:"q"`
}

type RegisterRequestBody struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequestBody struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ForgotPasswordRequestBody struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequestBody struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type CreateReviewRequestBody struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

type UpdateUserRoleRequestBody struct {
	Role Role `json:"role" binding:"required,oneof=USER ADMIN"`
}

type VerifyPassRequestBody struct {
	Code string `json:"code" binding:"required"`
}

type CreateCheckoutRequestBody struct {
	BookingID uint `json:"booking_id" binding:"required"`
}

// Write-path projection: car by id only, user summary nested (read paths preload both).
type BookingView struct {
	ID            uint          `json:"id"`
	CarID         uint          `json:"car_id"`
	User          *UserView     `json:"user,omitempty"`
	StartDateTime time.Time     `json:"start_date_time"`
	EndDateTime   time.Time     `json:"end_date_time"`
	TotalPrice    float64       `json:"total_price"`
	Status        BookingStatus `json:"status"`
}

type UserView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
