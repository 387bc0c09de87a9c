package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type cartService interface {
	AddToCart(ctx context.Context, actor policy.Subject, productID string) (*models.AddToCartResult, error)
	Detail(ctx context.Context, actor policy.Subject) (*models.CartDetail, error)
	Remove(ctx context.Context, actor policy.Subject, itemID string) error
}

type checkoutService interface {
	Summary(ctx context.Context, actor policy.Subject) (*models.CartDetail, error)
	Checkout(ctx context.Context, actor policy.Subject, shipping models.ShippingDetails, meta models.RequestMeta) (*models.CheckoutResult, error)
}

// CartHandler exposes the caller's cart and checkout.
type CartHandler struct {
	carts    cartService
	checkout checkoutService
}

// NewCartHandler constructs the handler.
func NewCartHandler(carts cartService, checkout checkoutService) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout}
}

// Detail godoc
// @Summary Current cart
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cart [get]
func (h *CartHandler) Detail(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	detail, err := h.carts.Detail(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Add godoc
// @Summary Add a product to the cart
// @Description Adding the same product again increments its quantity.
// @Tags Cart
// @Produce json
// @Param productId path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /cart/items/{productId} [post]
func (h *CartHandler) Add(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	result, err := h.carts.AddToCart(c.Request.Context(), actor, c.Param("productId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, result, result.Message)
}

// Remove godoc
// @Summary Remove a cart line
// @Tags Cart
// @Param itemId path string true "Cart item ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /cart/items/{itemId} [delete]
func (h *CartHandler) Remove(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	if err := h.carts.Remove(c.Request.Context(), actor, c.Param("itemId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Checkout summary
// @Tags Checkout
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /checkout [get]
func (h *CartHandler) Summary(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	summary, err := h.checkout.Summary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Checkout godoc
// @Summary Pay for the cart
// @Description Creates a payment intent and an order. Provider refusals return 402 with the provider message.
// @Tags Checkout
// @Accept json
// @Produce json
// @Param payload body models.ShippingDetails true "Shipping details"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Security BearerAuth
// @Router /checkout [post]
func (h *CartHandler) Checkout(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	var shipping models.ShippingDetails
	if !bindJSON(c, &shipping) {
		return
	}
	result, err := h.checkout.Checkout(c.Request.Context(), actor, shipping, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
