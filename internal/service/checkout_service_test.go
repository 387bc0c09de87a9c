package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/payment"
)

type mockOrderRepo struct {
	orders []*models.Order
}

func (m *mockOrderRepo) Create(ctx context.Context, order *models.Order) error {
	order.ID = "order-1"
	m.orders = append(m.orders, order)
	return nil
}

type recordingGateway struct {
	requests []payment.IntentRequest
	err      error
}

func (g *recordingGateway) CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Intent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

var testShipping = models.ShippingDetails{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}

type checkoutFixture struct {
	svc     *CheckoutService
	carts   *CartService
	orders  *mockOrderRepo
	gateway *recordingGateway
	metrics *MetricsService
}

func newCheckoutFixture() checkoutFixture {
	carts, _ := newCartFixture()
	orders := &mockOrderRepo{}
	gateway := &recordingGateway{}
	metrics := NewMetricsService()
	svc := NewCheckoutService(carts, orders, gateway, &mockAuditWriter{}, metrics, nil, zap.NewNop(), config.PaymentsConfig{Currency: "eur", Methods: []string{"card", "sepa_debit"}})
	return checkoutFixture{svc: svc, carts: carts, orders: orders, gateway: gateway, metrics: metrics}
}

func TestCheckoutServiceCreatesOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	for _, id := range []string{"p1", "p1", "p2"} {
		_, err := f.carts.AddToCart(ctx, studentActor, id)
		require.NoError(t, err)
	}

	result, err := f.svc.Checkout(ctx, studentActor, testShipping, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, "pi_123_secret", result.ClientSecret)
	assert.InDelta(t, 40.08, result.Total, 0.0001)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, int64(4008), f.gateway.requests[0].Amount)
	assert.Equal(t, "eur", f.gateway.requests[0].Currency)
	assert.Equal(t, []string{"card", "sepa_debit"}, f.gateway.requests[0].Methods)

	require.Len(t, f.orders.orders, 1)
	order := f.orders.orders[0]
	assert.Equal(t, "pi_123", order.PaymentIntentID)
	assert.Equal(t, "Springfield", order.City)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.checkouts.WithLabelValues(CheckoutSucceeded)))
}

func TestCheckoutServiceProviderErrorLeavesNoOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, studentActor, "p1")
	require.NoError(t, err)
	f.gateway.err = &payment.ProviderError{Provider: "stripe", Message: "Your card was declined."}

	_, err = f.svc.Checkout(ctx, studentActor, testShipping, models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPaymentFailed.Code, appErr.Code)
	assert.Equal(t, "Your card was declined.", appErr.Message)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.checkouts.WithLabelValues(CheckoutDeclined)))
}

func TestCheckoutServiceGatewayOutage(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, studentActor, "p1")
	require.NoError(t, err)
	f.gateway.err = fmt.Errorf("stripe create payment intent: %w", errors.New("dial tcp: timeout"))

	_, err = f.svc.Checkout(ctx, studentActor, testShipping, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrPaymentFailed)
	assert.Equal(t, "payment provider unavailable", appErrors.FromError(err).Message)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.checkouts.WithLabelValues(CheckoutFailed)))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.checkouts.WithLabelValues(CheckoutDeclined)))
}

func TestCheckoutServiceRejectsEmptyCartAndBadShipping(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, studentActor, testShipping, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.carts.AddToCart(ctx, studentActor, "p1")
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, studentActor, models.ShippingDetails{Address: "  ", City: "X", PostalCode: "1", Country: "US"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.gateway.requests)
}

func TestCheckoutServiceSummary(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.carts.AddToCart(context.Background(), studentActor, "p2")
	require.NoError(t, err)

	summary, err := f.svc.Summary(context.Background(), studentActor)
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.TotalCents)
}
