package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/tutorhub-api/pkg/config"
)

// IntentRequest describes the charge a client will confirm.
type IntentRequest struct {
	Amount   int64
	Currency string
	Methods  []string
	Metadata map[string]string
}

// Intent is the client-confirmable handle returned by a provider.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// Gateway creates payment intents on an external provider.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// ProviderError carries the provider's own message so it can be shown to the payer as is.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewGateway selects the gateway implementation named by the configuration.
func NewGateway(cfg config.PaymentsConfig) (Gateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.PaymentProviderFake:
		return NewFakeGateway(""), nil
	case config.PaymentProviderStripe, "":
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("stripe secret key is required")
		}
		return NewStripeGateway(cfg.SecretKey, nil), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// FakeGateway issues local intents without contacting a provider.
// A non-empty Decline message makes every call fail with that message.
type FakeGateway struct {
	Decline string
}

// NewFakeGateway builds a FakeGateway.
func NewFakeGateway(decline string) *FakeGateway {
	return &FakeGateway{Decline: decline}
}

// CreatePaymentIntent returns a synthetic intent.
func (g *FakeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, &ProviderError{Provider: config.PaymentProviderFake, Message: "amount must be positive"}
	}
	if g.Decline != "" {
		return nil, &ProviderError{Provider: config.PaymentProviderFake, Message: g.Decline}
	}
	id := "pi_fake_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return &Intent{ID: id, ClientSecret: id + "_secret"}, nil
}
