package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/payment"
)

type cartDetailer interface {
	Detail(ctx context.Context, actor policy.Subject) (*models.CartDetail, error)
}

type orderRepository interface {
	Create(ctx context.Context, order *models.Order) error
}

// CheckoutService turns a cart into a payment intent and an order.
type CheckoutService struct {
	carts     cartDetailer
	orders    orderRepository
	gateway   payment.Gateway
	audit     auditWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.PaymentsConfig
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(carts cartDetailer, orders orderRepository, gateway payment.Gateway, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg config.PaymentsConfig) *CheckoutService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{"card"}
	}
	return &CheckoutService{
		carts:     carts,
		orders:    orders,
		gateway:   gateway,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Summary returns the cart that would be charged.
func (s *CheckoutService) Summary(ctx context.Context, actor policy.Subject) (*models.CartDetail, error) {
	return s.carts.Detail(ctx, actor)
}

// Checkout charges the cart total. A provider refusal is returned as ErrPaymentFailed with the
// provider's message and leaves no order behind.
func (s *CheckoutService) Checkout(ctx context.Context, actor policy.Subject, shipping models.ShippingDetails, meta models.RequestMeta) (*models.CheckoutResult, error) {
	shipping = trimShipping(shipping)
	if err := s.validator.Struct(shipping); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shipping details")
	}

	cart, err := s.carts.Detail(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 || cart.TotalCents <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cart is empty")
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		Amount:   cart.TotalCents,
		Currency: s.cfg.Currency,
		Methods:  s.cfg.Methods,
		Metadata: map[string]string{"user_id": actor.ID, "cart_id": cart.CartID},
	})
	if err != nil {
		var providerErr *payment.ProviderError
		if errors.As(err, &providerErr) {
			s.metrics.RecordCheckout(CheckoutDeclined)
			s.logger.Info("payment declined", zap.String("user_id", actor.ID), zap.String("provider", providerErr.Provider), zap.String("reason", providerErr.Message))
			return nil, appErrors.Clone(appErrors.ErrPaymentFailed, providerErr.Message)
		}
		s.metrics.RecordCheckout(CheckoutFailed)
		s.logger.Error("payment gateway unavailable", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "payment provider unavailable")
	}

	cartID := cart.CartID
	order := &models.Order{
		UserID:          actor.ID,
		CartID:          &cartID,
		TotalAmount:     cart.Total,
		Currency:        s.cfg.Currency,
		Address:         shipping.Address,
		City:            shipping.City,
		PostalCode:      shipping.PostalCode,
		Country:         shipping.Country,
		PaymentIntentID: intent.ID,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.metrics.RecordCheckout(CheckoutFailed)
		s.logger.Error("failed to record order after payment intent", zap.String("payment_intent_id", intent.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create order")
	}

	s.metrics.RecordCheckout(CheckoutSucceeded)
	s.record(ctx, actor.ID, order, meta)
	return &models.CheckoutResult{
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Total:           cart.Total,
		Currency:        s.cfg.Currency,
	}, nil
}

func (s *CheckoutService) record(ctx context.Context, actorID string, order *models.Order, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"total_amount": order.TotalAmount, "currency": order.Currency, "payment_intent_id": order.PaymentIntentID})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCheckout,
		Resource:   "orders",
		ResourceID: &order.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record checkout audit log", zap.Error(err))
	}
}

func trimShipping(in models.ShippingDetails) models.ShippingDetails {
	return models.ShippingDetails{
		Address:    strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
	}
}
