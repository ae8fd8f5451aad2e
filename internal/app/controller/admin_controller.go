package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminController struct {
	sellerService service.SellerService
	exportService service.OrderExportService
}

func NewAdminController(sellerService service.SellerService, exportService service.OrderExportService) *AdminController {
	return &AdminController{
		sellerService: sellerService,
		exportService: exportService,
	}
}

// ListPendingSellers returns seller profiles awaiting approval
// GET /api/v1/admin/sellers/pending
func (ctrl *AdminController) ListPendingSellers(c *gin.Context) {
	sellers, err := ctrl.sellerService.ListPending()
	if err != nil {
		respondError(c, err, 0, "list pending sellers")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sellers": sellers,
		"count":   len(sellers),
	})
}

// ApproveSeller approves a seller profile
// PUT /api/v1/admin/sellers/:id/approve
func (ctrl *AdminController) ApproveSeller(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	sellerID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	seller, err := ctrl.sellerService.Approve(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err, 0, "approve seller")
		return
	}

	adminID, _ := middleware.GetUserID(c)
	log.Info("Seller approved", map[string]interface{}{
		"seller_id": sellerID,
		"admin_id":  adminID,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Seller approved successfully",
		"seller":  seller,
	})
}

// ExportOrders downloads orders as an xlsx workbook
// GET /api/v1/admin/orders/export?status=&from=2006-01-02&to=2006-01-02
func (ctrl *AdminController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var filter repository.OrderFilter
	if raw := c.Query("status"); raw != "" {
		status := model.OrderStatus(raw)
		if !status.IsValid() {
			apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "Invalid order status")
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "Invalid from date")
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "Invalid to date")
			return
		}
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	data, err := ctrl.exportService.ExportOrders(filter)
	if err != nil {
		log.Error("Failed to export orders", err)
		apperrors.InternalError(c, "Failed to export orders")
		return
	}

	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
