package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
)

type SellerController struct {
	sellerService service.SellerService
}

func NewSellerController(sellerService service.SellerService) *SellerController {
	return &SellerController{
		sellerService: sellerService,
	}
}

type CreateSellerRequest struct {
	BusinessName string `json:"business_name" binding:"required"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
}

// CreateProfile opens a seller profile for the current user. It stays
// unapproved until an administrator approves it.
// POST /api/v1/sellers
func (ctrl *SellerController) CreateProfile(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := accountID(c)
	if !ok {
		return
	}

	var req CreateSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid seller profile request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	seller, err := ctrl.sellerService.CreateProfile(userID, service.CreateSellerInput{
		BusinessName: req.BusinessName,
		Phone:        req.Phone,
		Address:      req.Address,
	})
	if err != nil {
		respondError(c, err, 0, "create seller profile")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Seller profile created. It will be available once approved",
		"seller":  seller,
	})
}

// GetMine returns the current user's seller profile
// GET /api/v1/sellers/me
func (ctrl *SellerController) GetMine(c *gin.Context) {
	userID, ok := accountID(c)
	if !ok {
		return
	}

	seller, err := ctrl.sellerService.GetMine(userID)
	if err != nil {
		respondError(c, err, 0, "get seller profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"seller": seller,
	})
}
