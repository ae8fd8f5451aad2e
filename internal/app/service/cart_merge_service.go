package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartMergeService folds a guest cart into the persistent cart of the user
// who just authenticated for checkout
type CartMergeService interface {
	Merge(ctx context.Context, guest model.GuestCart, userID uint) (*model.Cart, model.GuestCart, error)
}

type cartMergeService struct {
	cartRepo repository.CartRepository
	db       *gorm.DB
}

func NewCartMergeService(cartRepo repository.CartRepository, db *gorm.DB) CartMergeService {
	return &cartMergeService{cartRepo: cartRepo, db: db}
}

// Merge returns the merged user cart and the emptied guest cart.
// An empty guest cart leaves the database untouched. A session key that
// was merged before returns the user cart unchanged.
func (s *cartMergeService) Merge(ctx context.Context, guest model.GuestCart, userID uint) (*model.Cart, model.GuestCart, error) {
	if guest.IsEmpty() {
		cart, err := s.userCart(userID)
		return cart, guest, err
	}

	logger.Info("Merging guest cart", map[string]interface{}{
		"user_id":     userID,
		"session_key": guest.SessionKey,
		"guest_lines": len(guest.Lines),
	})

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, guest, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	marker := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.MergedGuestSession{SessionKey: guest.SessionKey, UserID: userID})
	if marker.Error != nil {
		tx.Rollback()
		return nil, guest, fmt.Errorf("record merged session: %w", marker.Error)
	}
	if marker.RowsAffected == 0 {
		tx.Rollback()
		logger.Warn("Guest cart already merged", map[string]interface{}{
			"user_id":     userID,
			"session_key": guest.SessionKey,
		})
		cart, err := s.userCart(userID)
		return cart, guest.Cleared(), err
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Cart{UserID: userID}).Error; err != nil {
		tx.Rollback()
		return nil, guest, fmt.Errorf("create cart: %w", err)
	}

	var cart model.Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error; err != nil {
		tx.Rollback()
		return nil, guest, fmt.Errorf("lock cart: %w", err)
	}

	var items []model.CartItem
	if err := tx.Where("cart_id = ?", cart.ID).Order("id ASC").Find(&items).Error; err != nil {
		tx.Rollback()
		return nil, guest, fmt.Errorf("load cart items: %w", err)
	}
	cart.Items = items

	existing := make(map[uint]model.CartItem, len(items))
	for _, item := range items {
		existing[item.ProductID] = item
	}

	for _, line := range model.MergeLines(guest.Lines, cart.Lines()) {
		item, ok := existing[line.ProductID]
		if ok {
			if item.Quantity == line.Quantity {
				continue
			}
			if err := tx.Model(&model.CartItem{}).Where("id = ?", item.ID).
				Update("quantity", line.Quantity).Error; err != nil {
				tx.Rollback()
				return nil, guest, fmt.Errorf("update merged line: %w", err)
			}
			continue
		}

		newItem := model.CartItem{
			CartID:    cart.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		if err := tx.Create(&newItem).Error; err != nil {
			tx.Rollback()
			return nil, guest, fmt.Errorf("create merged line: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit cart merge", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, guest, err
	}

	merged, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		return nil, guest, err
	}

	logger.Info("Guest cart merged", map[string]interface{}{
		"user_id": userID,
		"lines":   len(merged.Items),
		"total":   merged.Total().String(),
	})
	return merged, guest.Cleared(), nil
}

func (s *cartMergeService) userCart(userID uint) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}
