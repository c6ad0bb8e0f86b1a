package lib

import (
	"context"
	"os"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

// CreateBookingCheckout opens a checkout session for a pending booking.
// The metadata round-trips through the capture webhook.
func CreateBookingCheckout(amount int64, currency string, bookingID string, requestID string) (*stripe.CheckoutSession, error) {
	sc := GetStripeClient()
	params := stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("Car rental booking"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(os.Getenv("APP_HOST") + "/bookings/success"),
		CancelURL:  stripe.String(os.Getenv("APP_HOST") + "/bookings/cancelled"),
		Metadata: map[string]string{
			"bookingId": bookingID,
			"requestId": requestID,
		},
	}
	return sc.V1CheckoutSessions.Create(context.Background(), &params)
}
