package service

import (
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
)

// GuestCartService applies the cart rules to a session cart value.
// It never stores anything; callers persist the returned cart.
type GuestCartService interface {
	Add(cart model.GuestCart, productID uint, quantity int) (model.GuestCart, model.CartLine, error)
	Remove(cart model.GuestCart, productID uint) model.GuestCart
}

type guestCartService struct {
	catalog ProductCatalog
}

func NewGuestCartService(catalog ProductCatalog) GuestCartService {
	return &guestCartService{catalog: catalog}
}

func (s *guestCartService) Add(cart model.GuestCart, productID uint, quantity int) (model.GuestCart, model.CartLine, error) {
	if quantity < 1 {
		return cart, model.CartLine{}, ErrInvalidQuantity
	}

	product, err := s.catalog.GetAvailableProduct(productID)
	if err != nil {
		return cart, model.CartLine{}, err
	}

	current := 0
	if line, ok := cart.Line(productID); ok {
		current = line.Quantity
	}
	if err := checkQuantity(product, current+quantity); err != nil {
		logger.Warn("Cannot add to guest cart", map[string]interface{}{
			"session_key": cart.SessionKey,
			"product_id":  productID,
			"requested":   current + quantity,
			"reason":      err.Error(),
		})
		return cart, model.CartLine{}, err
	}

	updated, line := cart.Add(productID, quantity, product.BasePrice)

	logger.Debug("Guest cart item added", map[string]interface{}{
		"session_key": cart.SessionKey,
		"product_id":  productID,
		"quantity":    line.Quantity,
	})
	return updated, line, nil
}

func (s *guestCartService) Remove(cart model.GuestCart, productID uint) model.GuestCart {
	return cart.Remove(productID)
}
