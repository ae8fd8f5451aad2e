package repository

import (
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

type SellerRepository interface {
	Create(seller *model.Seller) error
	FindByID(id uint) (*model.Seller, error)
	FindByUserID(userID uint) (*model.Seller, error)
	FindPending() ([]model.Seller, error)
	Update(seller *model.Seller) error
}

type sellerRepository struct {
	db *gorm.DB
}

func NewSellerRepository(db *gorm.DB) SellerRepository {
	return &sellerRepository{db: db}
}

func (r *sellerRepository) Create(seller *model.Seller) error {
	logger.Debug("Creating seller in database", map[string]interface{}{
		"user_id":       seller.UserID,
		"business_name": seller.BusinessName,
	})

	if err := r.db.Create(seller).Error; err != nil {
		logger.Error("Failed to create seller in database", err, map[string]interface{}{
			"user_id": seller.UserID,
		})
		return err
	}

	logger.Debug("Seller created in database", map[string]interface{}{
		"seller_id": seller.ID,
		"user_id":   seller.UserID,
	})
	return nil
}

func (r *sellerRepository) FindByID(id uint) (*model.Seller, error) {
	logger.Debug("Finding seller by ID in database", map[string]interface{}{
		"seller_id": id,
	})

	var seller model.Seller
	if err := r.db.First(&seller, id).Error; err != nil {
		logger.Error("Failed to find seller by ID in database", err, map[string]interface{}{
			"seller_id": id,
		})
		return nil, err
	}

	logger.Debug("Seller found by ID in database", map[string]interface{}{
		"seller_id": seller.ID,
		"approved":  seller.Approved,
	})
	return &seller, nil
}

func (r *sellerRepository) FindByUserID(userID uint) (*model.Seller, error) {
	logger.Debug("Finding seller by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var seller model.Seller
	if err := r.db.Where("user_id = ?", userID).First(&seller).Error; err != nil {
		logger.Debug("Seller not found by user ID in database", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}

	logger.Debug("Seller found by user ID in database", map[string]interface{}{
		"seller_id": seller.ID,
		"user_id":   userID,
	})
	return &seller, nil
}

func (r *sellerRepository) FindPending() ([]model.Seller, error) {
	logger.Debug("Finding sellers awaiting approval in database")

	var sellers []model.Seller
	if err := r.db.Where("approved = ?", false).Order("created_at ASC").Find(&sellers).Error; err != nil {
		logger.Error("Failed to find sellers awaiting approval in database", err)
		return nil, err
	}

	logger.Debug("Sellers awaiting approval found in database", map[string]interface{}{
		"count": len(sellers),
	})
	return sellers, nil
}

func (r *sellerRepository) Update(seller *model.Seller) error {
	logger.Debug("Updating seller in database", map[string]interface{}{
		"seller_id": seller.ID,
	})

	if err := r.db.Save(seller).Error; err != nil {
		logger.Error("Failed to update seller in database", err, map[string]interface{}{
			"seller_id": seller.ID,
		})
		return err
	}

	logger.Debug("Seller updated in database", map[string]interface{}{
		"seller_id": seller.ID,
		"approved":  seller.Approved,
	})
	return nil
}
