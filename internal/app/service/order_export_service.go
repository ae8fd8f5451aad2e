package service

import (
	"fmt"
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

const (
	ordersSheet = "Orders"
	linesSheet  = "Lines"
)

var (
	orderHeader = []interface{}{"Order ID", "User ID", "Status", "Total", "Created At", "Paid At"}
	lineHeader  = []interface{}{"Order ID", "Product ID", "Product", "Quantity", "Unit Price", "Subtotal"}
)

type OrderExportService interface {
	ExportOrders(filter repository.OrderFilter) ([]byte, error)
}

type orderExportService struct {
	orderRepo repository.OrderRepository
}

func NewOrderExportService(orderRepo repository.OrderRepository) OrderExportService {
	return &orderExportService{orderRepo: orderRepo}
}

// ExportOrders renders matching orders as an xlsx workbook with one sheet
// for orders and one for their lines
func (s *orderExportService) ExportOrders(filter repository.OrderFilter) ([]byte, error) {
	orders, err := s.orderRepo.FindWithFilter(filter)
	if err != nil {
		logger.Error("Failed to load orders for export", err)
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ordersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(linesSheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(ordersSheet, "A1", &orderHeader); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(linesSheet, "A1", &lineHeader); err != nil {
		return nil, err
	}

	lineRow := 2
	for i, order := range orders {
		row := []interface{}{
			order.ID,
			order.UserID,
			string(order.Status),
			order.TotalPrice.StringFixed(2),
			order.CreatedAt.Format(time.RFC3339),
			formatOptionalTime(order.PaidAt),
		}
		if err := f.SetSheetRow(ordersSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}

		for _, item := range order.OrderItems {
			line := []interface{}{
				order.ID,
				item.ProductID,
				item.ProductName,
				item.Quantity,
				item.UnitPrice.StringFixed(2),
				item.Subtotal.StringFixed(2),
			}
			if err := f.SetSheetRow(linesSheet, fmt.Sprintf("A%d", lineRow), &line); err != nil {
				return nil, err
			}
			lineRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	logger.Info("Orders exported", map[string]interface{}{
		"orders": len(orders),
		"lines":  lineRow - 2,
	})
	return buf.Bytes(), nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
