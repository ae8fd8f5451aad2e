package service

import (
	"errors"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrBelowMinimumOrder = errors.New("quantity is below the product's minimum order")

type CartService interface {
	GetOrCreateCart(userID uint) (*model.Cart, error)
	GetCart(userID uint) (*model.Cart, error)
	AddToCart(userID, productID uint, quantity int) (model.CartLine, error)
	RemoveFromCart(userID, productID uint) error
	ClearCart(userID uint) error
}

type cartService struct {
	cartRepo repository.CartRepository
	catalog  ProductCatalog
}

func NewCartService(cartRepo repository.CartRepository, catalog ProductCatalog) CartService {
	return &cartService{
		cartRepo: cartRepo,
		catalog:  catalog,
	}
}

func (s *cartService) GetOrCreateCart(userID uint) (*model.Cart, error) {
	cart, err := s.cartRepo.GetOrCreate(userID)
	if err != nil {
		logger.Error("Failed to get or create cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return cart, nil
}

// GetCart returns the user's cart, or an unsaved empty cart if none exists yet
func (s *cartService) GetCart(userID uint) (*model.Cart, error) {
	logger.Debug("Fetching user cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
		}
		logger.Error("Failed to fetch user cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("User cart fetched successfully", map[string]interface{}{
		"user_id": userID,
		"lines":   len(cart.Items),
		"count":   cart.Count(),
	})
	return cart, nil
}

func (s *cartService) AddToCart(userID, productID uint, quantity int) (model.CartLine, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	})

	if quantity < 1 {
		return model.CartLine{}, ErrInvalidQuantity
	}

	product, err := s.catalog.GetAvailableProduct(productID)
	if err != nil {
		return model.CartLine{}, err
	}

	cart, err := s.GetOrCreateCart(userID)
	if err != nil {
		return model.CartLine{}, err
	}

	existing, err := s.cartRepo.FindItem(cart.ID, productID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing cart item", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return model.CartLine{}, err
	}

	current := 0
	if existing != nil {
		current = existing.Quantity
	}
	if err := checkQuantity(product, current+quantity); err != nil {
		logger.Warn("Cannot add to cart", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"requested":  current + quantity,
			"available":  product.StockQuantity,
			"reason":     err.Error(),
		})
		return model.CartLine{}, err
	}

	if existing != nil {
		return s.increment(existing, quantity)
	}

	item := &model.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.BasePrice,
	}
	if err := s.cartRepo.CreateItem(item); err != nil {
		if !isDuplicateKey(err) {
			return model.CartLine{}, err
		}
		// another request created the line first
		existing, findErr := s.cartRepo.FindItem(cart.ID, productID)
		if findErr != nil {
			return model.CartLine{}, findErr
		}
		return s.increment(existing, quantity)
	}

	logger.Info("Cart item added successfully", map[string]interface{}{
		"cart_item_id": item.ID,
		"unit_price":   item.UnitPrice.String(),
	})
	return item.Line(), nil
}

func (s *cartService) increment(item *model.CartItem, quantity int) (model.CartLine, error) {
	newQuantity := item.Quantity + quantity
	logger.Debug("Updating existing cart item", map[string]interface{}{
		"cart_item_id": item.ID,
		"old_qty":      item.Quantity,
		"new_qty":      newQuantity,
	})

	if err := s.cartRepo.UpdateItemQuantity(item.ID, newQuantity); err != nil {
		return model.CartLine{}, err
	}
	item.Quantity = newQuantity
	return item.Line(), nil
}

// RemoveFromCart drops the product's line; a missing cart or line is not an error
func (s *cartService) RemoveFromCart(userID, productID uint) error {
	logger.Info("Removing item from cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
	})

	cart, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	return s.cartRepo.DeleteItem(cart.ID, productID)
}

func (s *cartService) ClearCart(userID uint) error {
	logger.Info("Clearing cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	return s.cartRepo.DeleteItemsByCartID(cart.ID)
}

func checkQuantity(product *model.Product, requested int) error {
	if requested > product.StockQuantity {
		return ErrInsufficientStock
	}
	if product.MinOrder > 1 && requested < product.MinOrder {
		return ErrBelowMinimumOrder
	}
	return nil
}
