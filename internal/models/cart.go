package models

import "time"

// Cart is the per-user shopping cart.
type Cart struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CartItem is one product line within a cart.
type CartItem struct {
	ID          string  `db:"id" json:"id"`
	CartID      string  `db:"cart_id" json:"cart_id"`
	ProductID   string  `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
	Quantity    int     `db:"quantity" json:"quantity"`
	LineTotal   float64 `db:"-" json:"line_total"`
}

// CartDetail is the priced content of a cart.
type CartDetail struct {
	CartID     string     `json:"cart_id"`
	Items      []CartItem `json:"items"`
	ItemCount  int        `json:"item_count"`
	Total      float64    `json:"total"`
	TotalCents int64      `json:"-"`
}

// AddToCartResult acknowledges an add-to-cart call.
type AddToCartResult struct {
	Item      *CartItem `json:"item"`
	ItemCount int       `json:"item_count"`
	Message   string    `json:"message"`
}

// PriceCart fills line totals and the cart total using minor units.
func PriceCart(cartID string, items []CartItem) *CartDetail {
	detail := &CartDetail{CartID: cartID, Items: items}
	if detail.Items == nil {
		detail.Items = []CartItem{}
	}
	for i := range detail.Items {
		line := ToCents(detail.Items[i].UnitPrice) * int64(detail.Items[i].Quantity)
		detail.Items[i].LineTotal = FromCents(line)
		detail.TotalCents += line
		detail.ItemCount += detail.Items[i].Quantity
	}
	detail.Total = FromCents(detail.TotalCents)
	return detail
}
