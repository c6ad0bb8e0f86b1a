package main

import (
	"carrental/src/db"
	"carrental/src/models"
	"carrental/src/types"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// recomputeCarRating refreshes the denormalized rating columns on cars. Must
// run inside the same transaction as the review write.
func recomputeCarRating(tx *gorm.DB, carId uint) error {
	type aggregate struct {
		Avg   float64
		Count int64
	}
	var agg aggregate
	if err := tx.
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("car_id = ?", carId).
		Scan(&agg).
		Error; err != nil {
		return err
	}
	return tx.
		Model(&models.Car{}).
		Where("id = ?", carId).
		Updates(map[string]any{
			"rating_average": agg.Avg,
			"rating_count":   agg.Count,
		}).
		Error
}

func reviewPublicRoutes(g *gin.Engine) {
	apiv1 := apiv1Group(g)
	apiv1.GET("/cars/:id/reviews", func(ctx *gin.Context) {
		var params types.SimpleRequestParams
		if err := ctx.ShouldBindUri(&params); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		db := db.GetDb()
		var reviews []models.Review
		if err := db.
			Where("car_id = ?", params.ID).
			Order("created_at DESC").
			Preload("User", func(db *gorm.DB) *gorm.DB {
				return db.Select("id", "name")
			}).
			Find(&reviews).
			Error; err != nil {
			log.Printf("[ReviewList] error: %s\n", err.Error())
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": reviews})
	})
}

func reviewHandlers(g *gin.RouterGroup) {
	g.
		POST("/cars/:id/reviews", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateReviewRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			review := models.Review{
				CarID:   params.ID,
				UserID:  userId,
				Rating:  body.Rating,
				Comment: body.Comment,
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var car models.Car
				if err := tx.First(&car, params.ID).Error; err != nil {
					return err
				}
				var completed int64
				if err := tx.
					Model(&models.Booking{}).
					Where("car_id = ? AND user_id = ? AND status = ?", params.ID, userId, types.BOOKING_COMPLETED).
					Count(&completed).
					Error; err != nil {
					return err
				}
				if completed == 0 {
					return errors.New("only customers who completed a booking can review this car")
				}
				var existing int64
				if err := tx.
					Model(&models.Review{}).
					Where("car_id = ? AND user_id = ?", params.ID, userId).
					Count(&existing).
					Error; err != nil {
					return err
				}
				if existing > 0 {
					return errors.New("you have already reviewed this car")
				}
				if err := tx.Create(&review).Error; err != nil {
					return err
				}
				return recomputeCarRating(tx, params.ID)
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
					return
				}
				log.Printf("[ReviewCreate] error: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": review})
		}).
		PUT("/reviews/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateReviewRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var review models.Review
			if err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.First(&review, params.ID).Error; err != nil {
					return err
				}
				if review.UserID != userId {
					return errors.New("you can only edit your own reviews")
				}
				if err := tx.
					Model(&review).
					Updates(map[string]any{
						"rating":  body.Rating,
						"comment": body.Comment,
					}).
					Error; err != nil {
					return err
				}
				return recomputeCarRating(tx, review.CarID)
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
					return
				}
				log.Printf("[ReviewUpdate] error: %s\n", err.Error())
				ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": review})
		}).
		DELETE("/reviews/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			role := ctx.GetString("role")
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var review models.Review
				if err := tx.First(&review, params.ID).Error; err != nil {
					return err
				}
				if review.UserID != userId && role != string(types.ROLE_ADMIN) {
					return errors.New("you can only delete your own reviews")
				}
				if err := tx.Delete(&review).Error; err != nil {
					return err
				}
				return recomputeCarRating(tx, review.CarID)
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
					return
				}
				log.Printf("[ReviewDelete] error: %s\n", err.Error())
				ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
}
