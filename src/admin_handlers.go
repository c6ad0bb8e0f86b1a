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

func adminHandlers(g *gin.RouterGroup) {
	admin := g.Group("/admin")
	admin.Use(func(ctx *gin.Context) {
		if ctx.GetString("role") != string(types.ROLE_ADMIN) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator access required"})
			return
		}
		ctx.Next()
	})
	admin.
		GET("/users", func(ctx *gin.Context) {
			db := db.GetDb()
			var users []models.User
			if err := db.
				Order("created_at DESC").
				Find(&users).
				Error; err != nil {
				log.Printf("[AdminListUsers] error: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			views := make([]types.UserView, 0, len(users))
			for _, u := range users {
				views = append(views, types.UserView{ID: u.ID, Name: u.Name, Email: u.Email})
			}
			ctx.JSON(http.StatusOK, gin.H{"data": views})
		}).
		PUT("/users/:id/role", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateUserRoleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var user models.User
			if err := db.First(&user, params.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
					return
				}
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			if err := db.
				Model(&user).
				Update("role", body.Role).
				Error; err != nil {
				log.Printf("[AdminUpdateRole] error: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": types.UserView{ID: user.ID, Name: user.Name, Email: user.Email}})
		}).
		DELETE("/users/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if params.ID == ctx.GetUint("id") {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
				return
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var user models.User
				if err := tx.First(&user, params.ID).Error; err != nil {
					return err
				}
				var active int64
				if err := tx.
					Model(&models.Booking{}).
					Where("user_id = ? AND status IN ?", params.ID, []types.BookingStatus{
						types.BOOKING_PENDING,
						types.BOOKING_CONFIRMED,
						types.BOOKING_IN_PROGRESS,
					}).
					Count(&active).
					Error; err != nil {
					return err
				}
				if active > 0 {
					return errors.New("user still has active bookings")
				}
				return tx.Delete(&user).Error
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
					return
				}
				log.Printf("[AdminDeleteUser] error: %s\n", err.Error())
				ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
}
