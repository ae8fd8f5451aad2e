package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

// CartController serves both cart variants. Authenticated requests work on
// the persistent cart, guests on the session cart named by X-Session-Key.
type CartController struct {
	cartService      service.CartService
	guestCartService service.GuestCartService
	mergeService     service.CartMergeService
	guestCarts       repository.GuestCartStore
}

func NewCartController(
	cartService service.CartService,
	guestCartService service.GuestCartService,
	mergeService service.CartMergeService,
	guestCarts repository.GuestCartStore,
) *CartController {
	return &CartController{
		cartService:      cartService,
		guestCartService: guestCartService,
		mergeService:     mergeService,
		guestCarts:       guestCarts,
	}
}

type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

func cartResponse(lines []model.CartLine, count int, total decimal.Decimal) gin.H {
	return gin.H{
		"items": lines,
		"count": count,
		"total": total.StringFixed(2),
	}
}

func userCartResponse(cart *model.Cart) gin.H {
	resp := cartResponse(cart.Lines(), cart.Count(), cart.Total())
	resp["cart_items"] = cart.Items
	return resp
}

func guestCartResponse(cart model.GuestCart) gin.H {
	resp := cartResponse(cart.Lines, cart.Count(), cart.Total())
	resp["session_key"] = cart.SessionKey
	return resp
}

// GetCart returns the caller's cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	principal, _ := middleware.GetPrincipal(c)

	if userID, ok := model.AccountID(principal); ok {
		cart, err := ctrl.cartService.GetCart(userID)
		if err != nil {
			respondError(c, err, 0, "get cart")
			return
		}
		c.JSON(http.StatusOK, userCartResponse(cart))
		return
	}

	sessionKey := middleware.GetSessionKey(c)
	cart, err := ctrl.guestCarts.Load(c.Request.Context(), sessionKey)
	if err != nil {
		log.Error("Failed to load guest cart", err, map[string]interface{}{
			"session_key": sessionKey,
		})
		apperrors.InternalError(c, "")
		return
	}
	c.JSON(http.StatusOK, guestCartResponse(cart))
}

// AddToCart adds a product to the caller's cart
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	principal, _ := middleware.GetPrincipal(c)
	if userID, ok := model.AccountID(principal); ok {
		line, err := ctrl.cartService.AddToCart(userID, req.ProductID, req.Quantity)
		if err != nil {
			respondError(c, err, 0, "add to cart")
			return
		}

		log.Info("Item added to cart successfully", map[string]interface{}{
			"user_id":    userID,
			"product_id": req.ProductID,
			"quantity":   line.Quantity,
		})
		c.JSON(http.StatusCreated, gin.H{
			"message": "Item added to cart successfully",
			"item":    line,
		})
		return
	}

	ctx := c.Request.Context()
	sessionKey := middleware.GetSessionKey(c)
	cart, err := ctrl.guestCarts.Load(ctx, sessionKey)
	if err != nil {
		log.Error("Failed to load guest cart", err, map[string]interface{}{
			"session_key": sessionKey,
		})
		apperrors.InternalError(c, "")
		return
	}

	updated, line, err := ctrl.guestCartService.Add(cart, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err, 0, "add to guest cart")
		return
	}
	if err := ctrl.guestCarts.Save(ctx, updated); err != nil {
		log.Error("Failed to save guest cart", err, map[string]interface{}{
			"session_key": sessionKey,
		})
		apperrors.InternalError(c, "")
		return
	}

	log.Info("Item added to guest cart successfully", map[string]interface{}{
		"session_key": sessionKey,
		"product_id":  req.ProductID,
		"quantity":    line.Quantity,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Item added to cart successfully",
		"item":        line,
		"session_key": sessionKey,
	})
}

// RemoveFromCart drops a product from the caller's cart
// DELETE /api/v1/cart/items/:product_id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "product_id")
	if !ok {
		return
	}

	principal, _ := middleware.GetPrincipal(c)
	if userID, ok := model.AccountID(principal); ok {
		if err := ctrl.cartService.RemoveFromCart(userID, productID); err != nil {
			respondError(c, err, 0, "remove from cart")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Cart item removed successfully",
		})
		return
	}

	ctx := c.Request.Context()
	sessionKey := middleware.GetSessionKey(c)
	cart, err := ctrl.guestCarts.Load(ctx, sessionKey)
	if err != nil {
		log.Error("Failed to load guest cart", err, map[string]interface{}{
			"session_key": sessionKey,
		})
		apperrors.InternalError(c, "")
		return
	}

	if err := ctrl.guestCarts.Save(ctx, ctrl.guestCartService.Remove(cart, productID)); err != nil {
		log.Error("Failed to save guest cart", err, map[string]interface{}{
			"session_key": sessionKey,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item removed successfully",
	})
}

// ClearCart empties the authenticated user's cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	userID, ok := accountID(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.ClearCart(userID); err != nil {
		respondError(c, err, 0, "clear cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

// MergeCart folds the session cart of X-Session-Key into the user's cart
// POST /api/v1/cart/merge
func (ctrl *CartController) MergeCart(c *gin.Context) {
	userID, ok := accountID(c)
	if !ok {
		return
	}

	cart, err := mergeGuestCart(c, ctrl.mergeService, ctrl.guestCarts, userID)
	if err != nil {
		respondError(c, err, 0, "merge cart")
		return
	}

	c.JSON(http.StatusOK, userCartResponse(cart))
}

// mergeGuestCart merges the request's guest cart, if any, and deletes it from the store.
// A request without X-Session-Key returns the user's cart unchanged.
func mergeGuestCart(c *gin.Context, merger service.CartMergeService, store repository.GuestCartStore, userID uint) (*model.Cart, error) {
	log := middleware.GetLoggerFromContext(c)
	ctx := c.Request.Context()

	guest := model.NewGuestCart("")
	sessionKey := strings.TrimSpace(c.GetHeader(middleware.SessionKeyHeader))
	if sessionKey != "" {
		loaded, err := store.Load(ctx, sessionKey)
		if err != nil {
			return nil, err
		}
		guest = loaded
	}

	cart, cleared, err := merger.Merge(ctx, guest, userID)
	if err != nil {
		return nil, err
	}

	if sessionKey != "" && !guest.IsEmpty() {
		if err := store.Delete(ctx, cleared.SessionKey); err != nil {
			// lines are already in the user cart
			log.Warn("Failed to delete merged guest cart", map[string]interface{}{
				"session_key": sessionKey,
				"error":       err.Error(),
			})
		}
	}
	return cart, nil
}
