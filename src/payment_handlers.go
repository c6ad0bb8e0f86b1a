package main

import (
	"carrental/src/lib"
	"carrental/src/types"
	"carrental/src/utils"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

// checkoutAmount converts a dollar total to cents. Rounded, not
// truncated: float64 cannot represent most cent values exactly.
func checkoutAmount(total float64) int64 {
	return int64(math.Round(total * 100))
}

func paymentHandlers(g *gin.RouterGroup) {
	g.POST("/payments/checkout", func(ctx *gin.Context) {
		var body types.CreateCheckoutRequestBody
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		engine := getEngine()
		booking, err := engine.GetBooking(body.BookingID)
		if err != nil {
			respondBookingError(ctx, err)
			return
		}
		requester := utils.RequesterIdentity(ctx)
		if booking.User == nil || booking.User.Email != requester.Email {
			ctx.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to pay for this booking"})
			return
		}
		if booking.Status != types.BOOKING_PENDING {
			ctx.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Only pending bookings can be paid. Current status: %s", booking.Status)})
			return
		}

		requestId := uuid.New().String()
		amount := checkoutAmount(booking.TotalPrice)
		session, err := lib.CreateBookingCheckout(amount, "usd", strconv.Itoa(int(booking.ID)), requestId)
		if err != nil {
			log.Printf("[Checkout] stripe error: %s\n", err.Error())
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}

		rd := lib.GetRedisClient()
		if _, err := rd.SetEx(context.Background(), fmt.Sprintf("checkout:%s", requestId), booking.ID, 10*time.Minute).Result(); err != nil {
			log.Printf("Error caching checkout reference: %s\n", err.Error())
		}

		ctx.JSON(http.StatusOK, gin.H{"url": session.URL, "session_id": session.ID})
	})
}

func stripeWebhookRoute(g *gin.Engine) {
	g.POST("/webhooks/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Status(http.StatusBadRequest)
			return
		}
		sig := ctx.GetHeader("Stripe-Signature")
		event, err := webhook.ConstructEvent(payload, sig, os.Getenv("STRIPE_WEBHOOK_SECRET"))
		if err != nil {
			log.Printf("[StripeWebhook] signature verification failed: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}

		switch event.Type {
		case "checkout.session.completed":
			raw := string(event.Data.Raw)
			sessionId := gjson.Get(raw, "id").String()
			bookingId := gjson.Get(raw, "metadata.bookingId").Uint()
			if bookingId == 0 {
				log.Printf("[StripeWebhook] session %s carries no booking metadata\n", sessionId)
				break
			}
			engine := getEngine()
			if _, err := engine.ConfirmBooking(uint(bookingId), &sessionId); err != nil {
				log.Printf("[StripeWebhook] could not confirm booking %d: %s\n", bookingId, err.Error())
				// Ack anyway: retries will not change the outcome for
				// bookings that already left PENDING.
			}
			requestId := gjson.Get(raw, "metadata.requestId").String()
			if requestId != "" {
				rd := lib.GetRedisClient()
				rd.Del(context.Background(), fmt.Sprintf("checkout:%s", requestId))
			}
		default:
			log.Printf("[StripeWebhook] ignoring event type %s\n", event.Type)
		}

		ctx.Status(http.StatusOK)
	})
}
