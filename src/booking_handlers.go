package main

import (
	"carrental/src/bookings"
	"carrental/src/config"
	"carrental/src/db"
	"carrental/src/types"
	"carrental/src/utils"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

func getEngine() *bookings.Engine {
	return bookings.NewEngine(db.GetDb(), bookings.SystemClock{})
}

func bookingErrorStatus(err error) int {
	var validationErr *bookings.ValidationError
	var notFoundErr *bookings.NotFoundError
	var conflictErr *bookings.ConflictError
	var authErr *bookings.AuthorizationError
	var policyErr *bookings.PolicyError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &conflictErr):
		return http.StatusConflict
	case errors.As(err, &authErr):
		return http.StatusForbidden
	case errors.As(err, &policyErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondBookingError(ctx *gin.Context, err error) {
	status := bookingErrorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Could not complete request: %s\n", err.Error())
		ctx.JSON(status, gin.H{"error": "Something went wrong"})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			start, err := time.Parse(config.TIME_PARSE_FORMAT, body.StartDateTime)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			end, err := time.Parse(config.TIME_PARSE_FORMAT, body.EndDateTime)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := getEngine().CreateBooking(bookings.CreateParams{
				CarID:         body.CarID,
				StartDateTime: start,
				EndDateTime:   end,
			}, utils.RequesterIdentity(ctx))
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": utils.BookingToView(booking)})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			all, err := getEngine().ListBookings(utils.RequesterIdentity(ctx))
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			views := make([]types.BookingView, 0, len(all))
			for i := range all {
				views = append(views, utils.BookingToView(&all[i]))
			}
			ctx.JSON(http.StatusOK, gin.H{"data": views, "count": len(views)})
		}).
		DELETE("/bookings", func(ctx *gin.Context) {
			if err := getEngine().DeleteAllBookings(utils.RequesterIdentity(ctx)); err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := getEngine().GetBooking(params.ID)
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": utils.BookingToView(booking)})
		}).
		PUT("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			updateParams := bookings.UpdateParams{CarID: body.CarID}
			if body.StartDate != nil {
				d, err := time.Parse(config.DATE_PARSE_FORMAT, *body.StartDate)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				updateParams.StartDate = &d
			}
			if body.EndDate != nil {
				d, err := time.Parse(config.DATE_PARSE_FORMAT, *body.EndDate)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				updateParams.EndDate = &d
			}
			booking, err := getEngine().UpdateBooking(params.ID, updateParams, utils.RequesterIdentity(ctx))
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": utils.BookingToView(booking)})
		}).
		DELETE("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			if err := getEngine().CancelBooking(params.ID, utils.RequesterIdentity(ctx)); err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"message": "Booking cancelled successfully"})
		}).
		POST("/bookings/:id/confirm-pickup", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := getEngine().ConfirmPickup(params.ID, utils.RequesterIdentity(ctx))
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": utils.BookingToView(booking)})
		}).
		POST("/bookings/:id/complete", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := getEngine().CompleteBooking(params.ID, utils.RequesterIdentity(ctx))
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": utils.BookingToView(booking)})
		}).
		GET("/bookings/:id/pass", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := getEngine().GetBooking(params.ID)
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			requester := utils.RequesterIdentity(ctx)
			if booking.User == nil || booking.User.Email != requester.Email {
				if requester.Role != types.ROLE_ADMIN {
					ctx.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to view this pass"})
					return
				}
			}
			if booking.Status != types.BOOKING_CONFIRMED && booking.Status != types.BOOKING_IN_PROGRESS {
				ctx.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("No pickup pass for a booking in status %s", booking.Status)})
				return
			}
			filename, err := utils.GeneratePickupPass(booking)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"url": fmt.Sprintf("%s/share/%s", apiPrefix, filename)})
		}).
		POST("/passes/verify", func(ctx *gin.Context) {
			if ctx.GetString("role") != string(types.ROLE_ADMIN) {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to verify passes"})
				return
			}
			var body types.VerifyPassRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			keyEnv := os.Getenv("API_QRC_SECRET")
			key, err := hex.DecodeString(keyEnv)
			if err != nil {
				log.Printf("Could not read data from string: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			message, err := utils.DecryptMessage(key, body.Code)
			if err != nil {
				log.Printf("Error decrypting message: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Pass could not be verified"})
				return
			}
			var rawData map[string]any
			json.Unmarshal([]byte(*message), &rawData)
			bookingIdKey, ok := rawData["bookingId"].(float64)
			if !ok {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Pass could not be verified"})
				return
			}
			bookingId := uint(bookingIdKey)

			booking, err := getEngine().GetBooking(bookingId)
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			if booking.Status != types.BOOKING_CONFIRMED && booking.Status != types.BOOKING_IN_PROGRESS {
				ctx.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Pass is no longer valid. Current status: %s", booking.Status)})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"valid": true, "data": utils.BookingToView(booking)})
		}).
		GET("/users/me/bookings", func(ctx *gin.Context) {
			scope := ctx.DefaultQuery("scope", "all")
			email := ctx.GetString("email")
			list, err := getEngine().ListBookingsForUser(email, scope)
			if err != nil {
				respondBookingError(ctx, err)
				return
			}
			views := make([]types.BookingView, 0, len(list))
			for i := range list {
				views = append(views, utils.BookingToView(&list[i]))
			}
			ctx.JSON(http.StatusOK, gin.H{"data": views, "count": len(views)})
		})
	return g
}
