package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
)

type OrderController struct {
	orderService service.OrderService
	mergeService service.CartMergeService
	guestCarts   repository.GuestCartStore
}

func NewOrderController(
	orderService service.OrderService,
	mergeService service.CartMergeService,
	guestCarts repository.GuestCartStore,
) *OrderController {
	return &OrderController{
		orderService: orderService,
		mergeService: mergeService,
		guestCarts:   guestCarts,
	}
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Checkout merges any guest cart of the session and places an order from the user's cart
// POST /api/v1/orders/checkout
func (ctrl *OrderController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := accountID(c)
	if !ok {
		return
	}

	if _, err := mergeGuestCart(c, ctrl.mergeService, ctrl.guestCarts, userID); err != nil {
		respondError(c, err, 0, "merge cart")
		return
	}

	order, err := ctrl.orderService.Checkout(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, 0, "checkout")
		return
	}

	log.Info("Order created successfully", map[string]interface{}{
		"user_id":  userID,
		"order_id": order.ID,
		"total":    order.TotalPrice.String(),
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"order":   order,
	})
}

// GetOrders lists the user's orders
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	userID, ok := accountID(c)
	if !ok {
		return
	}

	orders, err := ctrl.orderService.GetUserOrders(userID)
	if err != nil {
		respondError(c, err, 0, "list orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrderByID returns one of the user's orders
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrderByID(c *gin.Context) {
	userID, ok := accountID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrderByID(userID, orderID)
	if err != nil {
		respondError(c, err, orderID, "get order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}

// UpdateOrderStatus ships or delivers an order
// PUT /api/v1/orders/:id/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}
	status := model.OrderStatus(req.Status)
	if !status.IsValid() {
		log.Warn("Invalid order status", map[string]interface{}{
			"order_id": orderID,
			"status":   req.Status,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "Invalid order status")
		return
	}

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	order, err := ctrl.orderService.UpdateOrderStatus(c.Request.Context(), principal, orderID, status)
	if err != nil {
		respondError(c, err, orderID, "update order status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"order":   order,
	})
}
