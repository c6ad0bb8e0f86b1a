package main

import (
	"carrental/src/config"
	"carrental/src/db"
	"carrental/src/models"
	"carrental/src/types"
	"carrental/src/utils"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func carHandlers(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/cars", func(ctx *gin.Context) {
			var filters types.CarQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			q := db.Model(&models.Car{})
			if filters.Query != "" {
				like := fmt.Sprintf("%%%s%%", filters.Query)
				q = q.Where("brand ILIKE ? OR model ILIKE ?", like, like)
			}
			if filters.Brand != "" {
				q = q.Where("brand = ?", filters.Brand)
			}
			if filters.Category != "" {
				q = q.Where("category = ?", filters.Category)
			}
			if filters.FuelType != "" {
				q = q.Where("fuel_type = ?", filters.FuelType)
			}
			if filters.Transmission != "" {
				q = q.Where("transmission = ?", filters.Transmission)
			}
			if filters.Available != nil {
				q = q.Where("available = ?", *filters.Available)
			}
			if filters.MinPrice != nil {
				q = q.Where("price_per_day >= ?", *filters.MinPrice)
			}
			if filters.MaxPrice != nil {
				q = q.Where("price_per_day <= ?", *filters.MaxPrice)
			}
			if filters.MinSeats != nil {
				q = q.Where("seats >= ?", *filters.MinSeats)
			}
			if filters.MaxSeats != nil {
				q = q.Where("seats <= ?", *filters.MaxSeats)
			}
			if filters.MinYear != nil {
				q = q.Where("year >= ?", *filters.MinYear)
			}
			if filters.MaxYear != nil {
				q = q.Where("year <= ?", *filters.MaxYear)
			}
			var cars []models.Car
			if err := q.Order("brand asc, model asc").Find(&cars).Error; err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": cars, "count": len(cars)})
		}).
		GET("/cars/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var car models.Car
			if err := db.
				Model(&models.Car{}).
				Where(&models.Car{ID: params.ID}).
				First(&car).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Car not found with ID: %d", params.ID)})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": car})
		}).
		GET("/cars/:id/availability", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var query struct {
				Start string `form:"start" binding:"required,bookingdate"`
				End   string `form:"end" binding:"required,bookingdate"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			start, _ := time.Parse(config.TIME_PARSE_FORMAT, query.Start)
			end, _ := time.Parse(config.TIME_PARSE_FORMAT, query.End)
			available, err := getEngine().IsCarAvailable(params.ID, start, end)
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"car_id": params.ID, "available": available})
		})
	return apiv1
}

func carAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/cars", func(ctx *gin.Context) {
			if ctx.GetString("role") != string(types.ROLE_ADMIN) {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to perform this action."})
				return
			}
			var body types.CreateCarRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			car := models.Car{
				Brand:        body.Brand,
				Model:        body.Model,
				Slug:         utils.CarSlug(body.Brand, body.Model),
				PricePerDay:  body.PricePerDay,
				Available:    true,
				ImageURL:     body.ImageURL,
				Category:     body.Category,
				Transmission: body.Transmission,
				FuelType:     body.FuelType,
				Seats:        body.Seats,
				Color:        body.Color,
				Year:         body.Year,
				Description:  body.Description,
			}
			db := db.GetDb()
			if err := db.Create(&car).Error; err != nil {
				log.Printf("Could not create car: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Error while processing request"})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": car})
		}).
		PUT("/cars/:id", func(ctx *gin.Context) {
			if ctx.GetString("role") != string(types.ROLE_ADMIN) {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to perform this action."})
				return
			}
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateCarRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var car models.Car
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where(&models.Car{ID: params.ID}).
					First(&car).
					Error; err != nil {
					return err
				}
				updates := map[string]any{}
				if body.Brand != nil {
					car.Brand = *body.Brand
					updates["brand"] = *body.Brand
				}
				if body.Model != nil {
					car.Model = *body.Model
					updates["model"] = *body.Model
				}
				if body.Brand != nil || body.Model != nil {
					updates["slug"] = utils.CarSlug(car.Brand, car.Model)
				}
				if body.PricePerDay != nil {
					updates["price_per_day"] = *body.PricePerDay
				}
				if body.Available != nil {
					updates["available"] = *body.Available
				}
				if body.ImageURL != nil {
					updates["image_url"] = *body.ImageURL
				}
				if body.Category != nil {
					updates["category"] = *body.Category
				}
				if body.Transmission != nil {
					updates["transmission"] = *body.Transmission
				}
				if body.FuelType != nil {
					updates["fuel_type"] = *body.FuelType
				}
				if body.Seats != nil {
					updates["seats"] = *body.Seats
				}
				if body.Color != nil {
					updates["color"] = *body.Color
				}
				if body.Year != nil {
					updates["year"] = *body.Year
				}
				if body.Description != nil {
					updates["description"] = *body.Description
				}
				if len(updates) == 0 {
					return nil
				}
				if err := tx.
					Model(&models.Car{}).
					Where(&models.Car{ID: params.ID}).
					Updates(updates).
					Error; err != nil {
					return err
				}
				return tx.Where(&models.Car{ID: params.ID}).First(&car).Error
			})
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Car not found with ID: %d", params.ID)})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": car})
		}).
		DELETE("/cars/:id", func(ctx *gin.Context) {
			if ctx.GetString("role") != string(types.ROLE_ADMIN) {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to perform this action."})
				return
			}
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			if err := db.Delete(&models.Car{}, params.ID).Error; err != nil {
				log.Printf("Could not delete car %d: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Error while processing request"})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
