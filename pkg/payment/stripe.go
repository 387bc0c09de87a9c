package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/noah-isme/tutorhub-api/pkg/config"
)

// StripeGateway creates PaymentIntents through the Stripe API.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a gateway bound to the given secret key.
// Backends may be nil to use Stripe's default endpoints.
func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, backends)}
}

// CreatePaymentIntent implements Gateway.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice(req.Methods),
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		// Only an answer from Stripe is a refusal the payer can act on. Transport failures
		// stay plain errors so checkout reports the provider as unavailable.
		var stripeErr *stripe.Error
		if !errors.As(err, &stripeErr) {
			return nil, fmt.Errorf("stripe create payment intent: %w", err)
		}
		message := stripeErr.Msg
		if message == "" {
			message = string(stripeErr.Type)
		}
		return nil, &ProviderError{Provider: config.PaymentProviderStripe, Message: message, Err: err}
	}

	return &Intent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}
