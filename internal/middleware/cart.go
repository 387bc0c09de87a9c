package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// ContextCartKey is the gin context key holding the caller's cart.
const ContextCartKey = "currentCart"

// CartProvider returns the user's cart, creating it when missing.
type CartProvider interface {
	EnsureCart(ctx context.Context, userID string) (*models.Cart, error)
}

// EnsureCart lazily creates the authenticated user's cart. It must run after JWT.
// Failures are logged and never block the request.
func EnsureCart(carts CartProvider, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		value, ok := c.Get(ContextUserKey)
		claims, isClaims := value.(*models.JWTClaims)
		if !ok || !isClaims || carts == nil {
			c.Next()
			return
		}
		cart, err := carts.EnsureCart(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.Warn("failed to ensure cart", zap.String("user_id", claims.UserID), zap.Error(err))
			c.Next()
			return
		}
		c.Set(ContextCartKey, cart)
		c.Next()
	}
}
