package models

import (
	"math"
	"time"
)

// Product is a catalog entry.
type Product struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	ImagePath   *string   `db:"image_path" json:"-"`
	HasImage    bool      `db:"-" json:"has_image"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Query    string
	Page     int
	PageSize int
}

// ProductRequest is the manager payload for creating or updating a product.
type ProductRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0,lte=99999999.99"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

// ProductImageLink is a time-limited download link for a product image.
type ProductImageLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ToCents converts a two-decimal amount to minor units.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts minor units back to a decimal amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
