package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
)

type errorMapping struct {
	target   error
	status   int
	code     string
	message  string
	redirect string // %d is replaced by the order id
}

// domainErrors maps service sentinels to what the client sees. Messages never
// carry internal detail.
var domainErrors = []errorMapping{
	{service.ErrEmptyCart, http.StatusBadRequest, apperrors.CartEmpty, "Your cart is empty", "/cart"},
	{service.ErrDuplicatePayment, http.StatusConflict, apperrors.PaymentDuplicate, "A payment for this order was already started", "/orders/%d"},
	{service.ErrGatewayUnavailable, http.StatusBadGateway, apperrors.PaymentGatewayUnavailable, "The payment provider is unavailable. Please try again later", "/orders/%d"},
	{service.ErrUnknownReference, http.StatusNotFound, apperrors.PaymentUnknownReference, "Payment could not be found", "/cart"},
	{service.ErrInvalidPaymentAmount, http.StatusBadRequest, apperrors.PaymentInvalidAmount, "Order amount is invalid", "/orders/%d"},
	{service.ErrOrderNotPayable, http.StatusConflict, apperrors.OrderNotPayable, "This order is not awaiting payment", "/orders/%d"},
	{service.ErrOrderNotFound, http.StatusNotFound, apperrors.OrderNotFound, "Order not found", ""},
	{service.ErrPaymentNotFound, http.StatusNotFound, apperrors.PaymentNotFound, "Payment not found", ""},
	{service.ErrOrderAccessDenied, http.StatusForbidden, apperrors.AuthzAccessDenied, "Access denied", ""},
	{model.ErrInvalidStatusTransition, http.StatusConflict, apperrors.OrderInvalidTransition, "This status change is not allowed", ""},
	{service.ErrProductNotFound, http.StatusNotFound, apperrors.ProductNotFound, "Product not found", ""},
	{service.ErrProductUnavailable, http.StatusBadRequest, apperrors.ProductUnavailable, "Product is not available", ""},
	{service.ErrInsufficientStock, http.StatusBadRequest, apperrors.ProductInsufficientStock, "Insufficient stock", ""},
	{service.ErrBelowMinimumOrder, http.StatusBadRequest, apperrors.ProductBelowMinimumOrder, "Quantity is below the minimum order", ""},
	{service.ErrInvalidQuantity, http.StatusBadRequest, apperrors.CartInvalidQuantity, "Quantity must be at least 1", ""},
	{service.ErrInvalidPrice, http.StatusBadRequest, apperrors.ProductInvalidPrice, "Price must be greater than zero", ""},
	{service.ErrProductAccessDenied, http.StatusForbidden, apperrors.AuthzAccessDenied, "Access denied", ""},
	{service.ErrSellerNotFound, http.StatusNotFound, apperrors.SellerNotFound, "Seller not found", ""},
	{service.ErrSellerNotApproved, http.StatusForbidden, apperrors.SellerNotApproved, "Seller account is awaiting approval", ""},
	{service.ErrSellerAlreadyExists, http.StatusConflict, apperrors.SellerAlreadyExists, "Seller profile already exists", ""},
	{service.ErrSellerAlreadyApproved, http.StatusConflict, apperrors.SellerAlreadyApproved, "Seller is already approved", ""},
	{service.ErrUserNotFound, http.StatusNotFound, apperrors.ResourceNotFound, "User not found", ""},
	{service.ErrCategoryNotFound, http.StatusNotFound, apperrors.CategoryNotFound, "Category not found", ""},
	{service.ErrSubCategoryNotFound, http.StatusNotFound, apperrors.SubCategoryNotFound, "Subcategory not found", ""},
	{service.ErrSubCategoryMismatch, http.StatusBadRequest, apperrors.SubCategoryMismatch, "Subcategory does not belong to the category", ""},
	{service.ErrInvalidCategoryName, http.StatusBadRequest, apperrors.CategoryInvalidName, "Category name must contain a letter or digit", ""},
	{service.ErrCategorySlugConflict, http.StatusConflict, apperrors.CategorySlugConflict, "A category with this name already exists", ""},
	{service.ErrDealNotFound, http.StatusNotFound, apperrors.DealNotFound, "Deal not found", ""},
	{service.ErrReviewNotFound, http.StatusNotFound, apperrors.ReviewNotFound, "Review not found", ""},
	{service.ErrReviewExists, http.StatusConflict, apperrors.ReviewAlreadyExists, "You have already reviewed this product", ""},
	{service.ErrInvalidRating, http.StatusBadRequest, apperrors.ReviewInvalidRating, "Rating must be between 1 and 5", ""},
	{service.ErrReviewTooLong, http.StatusBadRequest, apperrors.ReviewTooLong, "Review comment is too long", ""},
	{service.ErrReviewOwnProduct, http.StatusForbidden, apperrors.ReviewOwnProduct, "Sellers cannot review their own products", ""},
	{service.ErrReviewAccessDenied, http.StatusForbidden, apperrors.AuthzAccessDenied, "Access denied", ""},
	{service.ErrNotificationNotFound, http.StatusNotFound, apperrors.NotificationNotFound, "Notification not found", ""},
}

// respondError writes the response for err. orderID fills order redirects and may be zero.
func respondError(c *gin.Context, err error, orderID uint, action string) {
	log := middleware.GetLoggerFromContext(c)

	for _, m := range domainErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		log.Warn("Request failed", map[string]interface{}{
			"action": action,
			"code":   m.code,
			"error":  err.Error(),
		})
		if m.redirect == "" {
			apperrors.RespondWithError(c, m.status, m.code, m.message)
			return
		}
		redirect := m.redirect
		if strings.Contains(redirect, "%d") {
			if orderID != 0 {
				redirect = fmt.Sprintf(redirect, orderID)
			} else {
				redirect = "/orders"
			}
		}
		apperrors.RespondWithRedirect(c, m.status, m.code, m.message, redirect)
		return
	}

	log.Error("Request failed", err, map[string]interface{}{
		"action": action,
	})
	apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, action)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid ID parameter", map[string]interface{}{
			"param": name,
			"value": raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

// accountID returns the authenticated user behind the request
func accountID(c *gin.Context) (uint, bool) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return 0, false
	}
	id, ok := model.AccountID(principal)
	if !ok {
		apperrors.Unauthorized(c, "")
		return 0, false
	}
	return id, true
}
