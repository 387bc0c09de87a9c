package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type cartRepository interface {
	EnsureCart(ctx context.Context, userID string) (*models.Cart, error)
	AddItem(ctx context.Context, cartID, productID string) (*models.CartItem, error)
	ListItems(ctx context.Context, cartID string) ([]models.CartItem, error)
	CountItems(ctx context.Context, cartID string) (int, error)
	RemoveItem(ctx context.Context, cartID, itemID string) error
}

type productFinder interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
}

// CartService manages each user's single cart.
type CartService struct {
	repo     cartRepository
	products productFinder
	logger   *zap.Logger
}

// NewCartService constructs a CartService.
func NewCartService(repo cartRepository, products productFinder, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{repo: repo, products: products, logger: logger}
}

// EnsureCart returns the user's cart, creating it on first use.
func (s *CartService) EnsureCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.repo.EnsureCart(ctx, userID)
	if err != nil && database.IsUniqueViolation(err, "carts_user_key") {
		cart, err = s.repo.EnsureCart(ctx, userID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	return cart, nil
}

// AddToCart adds one unit of a product. Repeating the call increments the line quantity.
func (s *CartService) AddToCart(ctx context.Context, actor policy.Subject, productID string) (*models.AddToCartResult, error) {
	if !policy.Can(actor, policy.ActionUseCart, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	cart, err := s.EnsureCart(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.AddItem(ctx, cart.ID, product.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add product to cart")
	}
	item.ProductName = product.Name
	item.UnitPrice = product.Price
	item.LineTotal = models.FromCents(models.ToCents(product.Price) * int64(item.Quantity))

	count, err := s.repo.CountItems(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cart items")
	}
	return &models.AddToCartResult{
		Item:      item,
		ItemCount: count,
		Message:   fmt.Sprintf("%s added to cart.", product.Name),
	}, nil
}

// Detail returns the priced content of the user's cart.
func (s *CartService) Detail(ctx context.Context, actor policy.Subject) (*models.CartDetail, error) {
	if !policy.Can(actor, policy.ActionUseCart, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	cart, err := s.EnsureCart(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cart items")
	}
	return models.PriceCart(cart.ID, items), nil
}

// Remove deletes a line from the caller's own cart. Lines of other carts are reported as not found.
func (s *CartService) Remove(ctx context.Context, actor policy.Subject, itemID string) error {
	if !policy.Can(actor, policy.ActionUseCart, policy.Anything) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	cart, err := s.EnsureCart(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveItem(ctx, cart.ID, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "cart item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove cart item")
	}
	return nil
}
