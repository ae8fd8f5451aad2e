package repository

import (
	"math"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

type ReviewStats struct {
	Average float64 `gorm:"column:average" json:"average_rating"`
	Count   int64   `gorm:"column:count" json:"review_count"`
}

// ReviewRepository keeps products.average_rating and products.review_count
// in step with every write.
type ReviewRepository interface {
	Create(review *model.Review) error
	FindByID(id uint) (*model.Review, error)
	FindByProduct(productID uint, offset, limit int) ([]model.Review, int64, error)
	FindByUser(userID uint, offset, limit int) ([]model.Review, int64, error)
	Update(review *model.Review) error
	Delete(review *model.Review) error
	Stats(productID uint) (ReviewStats, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(review *model.Review) error {
	logger.Debug("Creating review in database", map[string]interface{}{
		"product_id": review.ProductID,
		"user_id":    review.UserID,
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return err
		}
		return refreshProductRating(tx, review.ProductID)
	})
	if err != nil {
		logger.Error("Failed to create review in database", err, map[string]interface{}{
			"product_id": review.ProductID,
			"user_id":    review.UserID,
		})
		return err
	}
	return nil
}

func (r *reviewRepository) FindByID(id uint) (*model.Review, error) {
	var review model.Review
	if err := r.db.Preload("User").First(&review, id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) FindByProduct(productID uint, offset, limit int) ([]model.Review, int64, error) {
	var reviews []model.Review
	var total int64

	query := r.db.Model(&model.Review{}).Where("product_id = ?", productID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("User").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		logger.Error("Failed to find product reviews", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *reviewRepository) FindByUser(userID uint, offset, limit int) ([]model.Review, int64, error) {
	var reviews []model.Review
	var total int64

	query := r.db.Model(&model.Review{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Product").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		logger.Error("Failed to find user reviews", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *reviewRepository) Update(review *model.Review) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Review{}).
			Where("id = ?", review.ID).
			Updates(map[string]interface{}{
				"rating":  review.Rating,
				"comment": review.Comment,
			}).Error
		if err != nil {
			return err
		}
		return refreshProductRating(tx, review.ProductID)
	})
}

func (r *reviewRepository) Delete(review *model.Review) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Review{}, review.ID).Error; err != nil {
			return err
		}
		return refreshProductRating(tx, review.ProductID)
	})
}

func (r *reviewRepository) Stats(productID uint) (ReviewStats, error) {
	return reviewStats(r.db, productID)
}

func reviewStats(db *gorm.DB, productID uint) (ReviewStats, error) {
	var stats ReviewStats
	err := db.Model(&model.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&stats).Error
	stats.Average = math.Round(stats.Average*10) / 10
	return stats, err
}

func refreshProductRating(tx *gorm.DB, productID uint) error {
	stats, err := reviewStats(tx, productID)
	if err != nil {
		return err
	}
	return tx.Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"average_rating": stats.Average,
			"review_count":   stats.Count,
		}).Error
}
