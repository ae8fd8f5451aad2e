package repository

import (
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(payment *model.Payment) error
	FindByReference(reference string) (*model.Payment, error)
	FindByOrderID(orderID uint) (*model.Payment, error)
	FindPendingBefore(cutoff time.Time, limit int) ([]model.Payment, error)
	SaveSession(id uint, token, redirectURL string) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(payment *model.Payment) error {
	logger.Debug("Creating payment in database", map[string]interface{}{
		"order_id":  payment.OrderID,
		"reference": payment.Reference,
		"amount":    payment.Amount.String(),
	})

	if err := r.db.Create(payment).Error; err != nil {
		logger.Error("Failed to create payment in database", err, map[string]interface{}{
			"order_id":  payment.OrderID,
			"reference": payment.Reference,
		})
		return err
	}

	logger.Debug("Payment created in database", map[string]interface{}{
		"payment_id": payment.ID,
		"reference":  payment.Reference,
	})
	return nil
}

func (r *paymentRepository) FindByReference(reference string) (*model.Payment, error) {
	logger.Debug("Finding payment by reference in database", map[string]interface{}{
		"reference": reference,
	})

	var payment model.Payment
	if err := r.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		logger.Debug("Payment not found by reference in database", map[string]interface{}{
			"reference": reference,
			"error":     err.Error(),
		})
		return nil, err
	}

	logger.Debug("Payment found by reference in database", map[string]interface{}{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return &payment, nil
}

func (r *paymentRepository) FindByOrderID(orderID uint) (*model.Payment, error) {
	logger.Debug("Finding payment by order ID in database", map[string]interface{}{
		"order_id": orderID,
	})

	var payment model.Payment
	if err := r.db.Where("order_id = ?", orderID).Order("id DESC").First(&payment).Error; err != nil {
		logger.Debug("Payment not found by order ID in database", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return nil, err
	}

	logger.Debug("Payment found by order ID in database", map[string]interface{}{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return &payment, nil
}

func (r *paymentRepository) FindPendingBefore(cutoff time.Time, limit int) ([]model.Payment, error) {
	logger.Debug("Finding stale pending payments in database", map[string]interface{}{
		"cutoff": cutoff,
		"limit":  limit,
	})

	var payments []model.Payment
	query := r.db.Where("status = ? AND created_at < ?", model.PaymentStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&payments).Error; err != nil {
		logger.Error("Failed to find stale pending payments in database", err)
		return nil, err
	}

	logger.Debug("Stale pending payments found in database", map[string]interface{}{
		"count": len(payments),
	})
	return payments, nil
}

// SaveSession stores the gateway session on a payment that is still PENDING
func (r *paymentRepository) SaveSession(id uint, token, redirectURL string) error {
	logger.Debug("Saving payment gateway session in database", map[string]interface{}{
		"payment_id": id,
	})

	err := r.db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"gateway_token": token,
			"redirect_url":  redirectURL,
		}).Error
	if err != nil {
		logger.Error("Failed to save payment gateway session in database", err, map[string]interface{}{
			"payment_id": id,
		})
		return err
	}

	logger.Debug("Payment gateway session saved in database", map[string]interface{}{
		"payment_id": id,
	})
	return nil
}
