package models

import "time"

// Order records a checkout against a payment intent.
type Order struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	CartID          *string   `db:"cart_id" json:"cart_id,omitempty"`
	TotalAmount     float64   `db:"total_amount" json:"total_amount"`
	Currency        string    `db:"currency" json:"currency"`
	Address         string    `db:"address" json:"address"`
	City            string    `db:"city" json:"city"`
	PostalCode      string    `db:"postal_code" json:"postal_code"`
	Country         string    `db:"country" json:"country"`
	PaymentIntentID string    `db:"payment_intent_id" json:"payment_intent_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ShippingDetails is submitted with a checkout.
type ShippingDetails struct {
	Address    string `json:"address" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// CheckoutResult returns what the client needs to confirm payment.
type CheckoutResult struct {
	OrderID         string  `json:"order_id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ClientSecret    string  `json:"client_secret"`
	Total           float64 `json:"total"`
	Currency        string  `json:"currency"`
}
