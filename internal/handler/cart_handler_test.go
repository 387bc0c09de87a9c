package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type fakeCartSrv struct {
	added int
}

func (f *fakeCartSrv) AddToCart(_ context.Context, _ policy.Subject, productID string) (*models.AddToCartResult, error) {
	f.added++
	return &models.AddToCartResult{
		Item:      &models.CartItem{ID: "item-1", ProductID: productID, Quantity: f.added},
		ItemCount: f.added,
		Message:   "Metronome added to cart.",
	}, nil
}

func (f *fakeCartSrv) Detail(context.Context, policy.Subject) (*models.CartDetail, error) {
	return models.PriceCart("cart-1", nil), nil
}

func (f *fakeCartSrv) Remove(context.Context, policy.Subject, string) error {
	return appErrors.Clone(appErrors.ErrNotFound, "cart item not found")
}

type fakeCheckoutSrv struct {
	err      error
	shipping models.ShippingDetails
}

func (f *fakeCheckoutSrv) Summary(context.Context, policy.Subject) (*models.CartDetail, error) {
	return models.PriceCart("cart-1", nil), nil
}

func (f *fakeCheckoutSrv) Checkout(_ context.Context, _ policy.Subject, shipping models.ShippingDetails, _ models.RequestMeta) (*models.CheckoutResult, error) {
	f.shipping = shipping
	if f.err != nil {
		return nil, f.err
	}
	return &models.CheckoutResult{OrderID: "order-1", ClientSecret: "pi_1_secret", Total: 19.99, Currency: "usd"}, nil
}

const shippingJSON = `{"address":"1 Main St","city":"Springfield","postal_code":"12345","country":"US"}`

func TestCartHandlerAddReturnsCount(t *testing.T) {
	handler := NewCartHandler(&fakeCartSrv{}, &fakeCheckoutSrv{})

	c, rec := newTestContext(http.MethodPost, "/cart/items/p1", studentClaims)
	handler.Add(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/cart/items/p1", studentClaims)
	handler.Add(c)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), envelope.Data["item_count"])
	assert.Equal(t, "Metronome added to cart.", envelope.Meta["message"])
}

func TestCartHandlerRemoveForeignItem(t *testing.T) {
	handler := NewCartHandler(&fakeCartSrv{}, &fakeCheckoutSrv{})

	c, rec := newTestContext(http.MethodDelete, "/cart/items/x", studentClaims)
	handler.Remove(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartHandlerCheckoutSuccess(t *testing.T) {
	checkout := &fakeCheckoutSrv{}
	handler := NewCartHandler(&fakeCartSrv{}, checkout)

	c, rec := newTestContext(http.MethodPost, "/checkout", studentClaims)
	c.Request, _ = http.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(shippingJSON))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Checkout(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "pi_1_secret", envelope.Data["client_secret"])
	assert.Equal(t, "Springfield", checkout.shipping.City)
}

func TestCartHandlerCheckoutPaymentFailed(t *testing.T) {
	handler := NewCartHandler(&fakeCartSrv{}, &fakeCheckoutSrv{err: appErrors.Clone(appErrors.ErrPaymentFailed, "Your card was declined.")})

	c, rec := newTestContext(http.MethodPost, "/checkout", studentClaims)
	c.Request, _ = http.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(shippingJSON))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Checkout(c)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "Your card was declined.", envelope.Error.Message)
}

func TestCartHandlerCheckoutRejectsMalformedBody(t *testing.T) {
	checkout := &fakeCheckoutSrv{}
	handler := NewCartHandler(&fakeCartSrv{}, checkout)

	c, rec := newTestContext(http.MethodPost, "/checkout", studentClaims)
	c.Request, _ = http.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString("{"))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Checkout(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, checkout.shipping.City)
}
