package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
)

type PaymentController struct {
	paymentService service.PaymentService
}

func NewPaymentController(paymentService service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

// PaymentCallbackRequest is what the gateway posts back after checkout
type PaymentCallbackRequest struct {
	MerchantReference string `json:"merchant_reference" form:"merchant_reference" binding:"required"`
	Status            string `json:"status" form:"status"`
}

// InitiatePayment opens a gateway session for an order
// POST /api/v1/payments/orders/:id
func (ctrl *PaymentController) InitiatePayment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := accountID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	handle, err := ctrl.paymentService.InitiatePayment(c.Request.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, service.ErrDuplicatePayment) && handle != nil {
			log.Warn("Duplicate payment attempt", map[string]interface{}{
				"user_id":  userID,
				"order_id": orderID,
				"status":   handle.Status,
			})
			c.JSON(http.StatusConflict, gin.H{
				"error":    apperrors.PaymentDuplicate,
				"message":  "A payment for this order was already started",
				"redirect": fmt.Sprintf("/orders/%d", orderID),
				"payment":  handle,
			})
			return
		}
		respondError(c, err, orderID, "initiate payment")
		return
	}

	log.Info("Payment initiated", map[string]interface{}{
		"user_id":    userID,
		"order_id":   orderID,
		"payment_id": handle.PaymentID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Payment initiated successfully",
		"payment":  handle,
		"redirect": handle.RedirectURL,
	})
}

// PaymentCallback handles the browser redirect back from the gateway
// GET /api/v1/payments/callback
func (ctrl *PaymentController) PaymentCallback(c *gin.Context) {
	var req PaymentCallbackRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ctrl.rejectCallback(c, err)
		return
	}
	ctrl.handleCallback(c, req)
}

// PaymentNotify handles a server-to-server callback from the gateway
// POST /api/v1/payments/callback
func (ctrl *PaymentController) PaymentNotify(c *gin.Context) {
	var req PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.rejectCallback(c, err)
		return
	}
	ctrl.handleCallback(c, req)
}

func (ctrl *PaymentController) rejectCallback(c *gin.Context, err error) {
	middleware.GetLoggerFromContext(c).Warn("Invalid payment callback", map[string]interface{}{
		"error": err.Error(),
	})
	apperrors.RespondWithRedirect(c, http.StatusBadRequest, apperrors.ValidationRequired, "Payment could not be found", "/cart")
}

func (ctrl *PaymentController) handleCallback(c *gin.Context, req PaymentCallbackRequest) {
	log := middleware.GetLoggerFromContext(c)
	reference := strings.TrimSpace(req.MerchantReference)

	outcome, err := ctrl.paymentService.HandleCallback(c.Request.Context(), reference, req.Status)
	if err != nil {
		respondError(c, err, 0, "payment callback")
		return
	}

	log.Info("Payment callback handled", map[string]interface{}{
		"reference":         reference,
		"status":            outcome.Status,
		"already_processed": outcome.AlreadyProcessed,
		"mismatch":          outcome.Mismatch,
	})

	message := "Payment is still being processed"
	switch outcome.Status {
	case model.PaymentStatusSuccess:
		message = "Payment completed successfully"
	case model.PaymentStatusFailed:
		message = "Payment failed"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           message,
		"status":            outcome.Status,
		"order_id":          outcome.Payment.OrderID,
		"already_processed": outcome.AlreadyProcessed,
		"redirect":          fmt.Sprintf("/orders/%d", outcome.Payment.OrderID),
	})
}

// GetPayment returns the payment of one of the user's orders
// GET /api/v1/payments/orders/:id
func (ctrl *PaymentController) GetPayment(c *gin.Context) {
	userID, ok := accountID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := ctrl.paymentService.GetPayment(userID, orderID)
	if err != nil {
		respondError(c, err, orderID, "get payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment": payment,
	})
}
