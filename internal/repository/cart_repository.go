package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

const cartItemSelect = `SELECT ci.id, ci.cart_id, ci.product_id, p.name AS product_name, p.price AS unit_price, ci.quantity
FROM cart_items ci
JOIN products p ON p.id = ci.product_id`

// CartRepository persists carts and cart items.
type CartRepository struct {
	db *sqlx.DB
}

// NewCartRepository constructs the repository.
func NewCartRepository(db *sqlx.DB) *CartRepository {
	return &CartRepository{db: db}
}

// EnsureCart returns the user's cart, creating it on first use.
func (r *CartRepository) EnsureCart(ctx context.Context, userID string) (*models.Cart, error) {
	const insertQuery = `INSERT INTO carts (id, user_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO NOTHING
RETURNING id, user_id, created_at`

	var cart models.Cart
	err := r.db.GetContext(ctx, &cart, insertQuery, uuid.NewString(), userID, time.Now().UTC())
	if err == nil {
		return &cart, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	if err := r.db.GetContext(ctx, &cart, `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &cart, nil
}

// AddItem adds one unit of a product, incrementing the quantity of an existing line.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID string) (*models.CartItem, error) {
	const query = `INSERT INTO cart_items (id, cart_id, product_id, quantity) VALUES ($1, $2, $3, 1)
ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + 1
RETURNING id, cart_id, product_id, quantity`

	var item models.CartItem
	if err := r.db.GetContext(ctx, &item, query, uuid.NewString(), cartID, productID); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return &item, nil
}

// ListItems returns the cart lines with current product names and prices.
func (r *CartRepository) ListItems(ctx context.Context, cartID string) ([]models.CartItem, error) {
	items := make([]models.CartItem, 0)
	if err := r.db.SelectContext(ctx, &items, cartItemSelect+` WHERE ci.cart_id = $1 ORDER BY p.name ASC`, cartID); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}

// CountItems returns the total quantity held in the cart.
func (r *CartRepository) CountItems(ctx context.Context, cartID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return count, nil
}

// RemoveItem deletes a line from the given cart only.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		if database.IsInvalidText(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("remove cart item: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
