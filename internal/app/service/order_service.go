package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderAccessDenied = errors.New("not allowed to manage this order")
)

type orderCreatedPayload struct {
	OrderID uint              `json:"order_id"`
	UserID  uint              `json:"user_id"`
	Total   decimal.Decimal   `json:"total"`
	Items   []model.OrderItem `json:"items"`
}

type OrderService interface {
	Checkout(ctx context.Context, userID uint) (*model.Order, error)
	GetUserOrders(userID uint) ([]model.Order, error)
	GetOrderByID(userID, orderID uint) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, actor model.Principal, orderID uint, status model.OrderStatus) (*model.Order, error)
}

type orderService struct {
	orderRepo  repository.OrderRepository
	db         *gorm.DB
	dispatcher EffectDispatcher
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	db *gorm.DB,
	dispatcher EffectDispatcher,
) OrderService {
	return &orderService{
		orderRepo:  orderRepo,
		db:         db,
		dispatcher: dispatcher,
	}
}

// Checkout turns the user's cart into a pending order and empties the cart in one transaction
func (s *orderService) Checkout(ctx context.Context, userID uint) (*model.Order, error) {
	logger.Info("Creating order from cart", map[string]interface{}{
		"user_id": userID,
	})

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during checkout, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id": userID,
			})
			panic(r)
		}
	}()

	var cart model.Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot create order: cart is empty", map[string]interface{}{
				"user_id": userID,
			})
			return nil, ErrEmptyCart
		}
		logger.Error("Failed to lock cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	var items []model.CartItem
	if err := tx.Where("cart_id = ?", cart.ID).
		Preload("Product", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		Order("id ASC").
		Find(&items).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if len(items) == 0 {
		tx.Rollback()
		logger.Warn("Cannot create order: cart is empty", map[string]interface{}{
			"user_id": userID,
		})
		return nil, ErrEmptyCart
	}

	order := model.Order{
		UserID: userID,
		Status: model.OrderStatusPending,
	}
	for _, item := range items {
		order.OrderItems = append(order.OrderItems, model.NewOrderItem(item.Line(), item.Product.Name))
	}
	order.TotalPrice = order.ItemsTotal()

	logger.Debug("Processing cart items for order", map[string]interface{}{
		"user_id":    userID,
		"item_count": len(items),
		"total":      order.TotalPrice.String(),
	})

	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to create order", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to clear cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	payload := orderCreatedPayload{
		OrderID: order.ID,
		UserID:  userID,
		Total:   order.TotalPrice,
		Items:   order.OrderItems,
	}
	if err := recordEvent(tx, model.AggregateOrder, order.ID, model.EventOrderCreated, payload); err != nil {
		tx.Rollback()
		logger.Error("Failed to record order event", err, map[string]interface{}{
			"order_id": order.ID,
		})
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit order transaction", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("Order created successfully", map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     userID,
		"total_price": order.TotalPrice.String(),
		"item_count":  len(order.OrderItems),
	})

	s.dispatcher.Dispatch(ctx, order.Placed()...)

	return &order, nil
}

func (s *orderService) GetUserOrders(userID uint) ([]model.Order, error) {
	logger.Debug("Fetching user orders", map[string]interface{}{
		"user_id": userID,
	})

	orders, err := s.orderRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("User orders fetched successfully", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

func (s *orderService) GetOrderByID(userID, orderID uint) (*model.Order, error) {
	logger.Debug("Fetching order by ID", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
	})

	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Order not found", map[string]interface{}{
				"order_id": orderID,
			})
			return nil, ErrOrderNotFound
		}
		logger.Error("Failed to fetch order", err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}

	if order.UserID != userID {
		logger.Warn("Order access denied", map[string]interface{}{
			"user_id":       userID,
			"order_id":      orderID,
			"order_user_id": order.UserID,
		})
		return nil, ErrOrderNotFound
	}

	return order, nil
}

// UpdateOrderStatus moves an order along paid→shipped→delivered.
// Admins may update any order, approved sellers only orders containing their products.
func (s *orderService) UpdateOrderStatus(ctx context.Context, actor model.Principal, orderID uint, status model.OrderStatus) (*model.Order, error) {
	logger.Info("Updating order status", map[string]interface{}{
		"order_id": orderID,
		"status":   status,
	})

	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if err := s.authorizeFulfillment(ctx, actor, order.ID); err != nil {
		return nil, err
	}

	// paid is reached only through a verified payment
	if status == model.OrderStatusPaid {
		return nil, fmt.Errorf("%w: order %s -> %s", model.ErrInvalidStatusTransition, order.Status, status)
	}

	previous := order.Status
	effects, err := order.Advance(status, time.Now())
	if err != nil {
		logger.Warn("Rejected order status change", map[string]interface{}{
			"order_id": orderID,
			"from":     previous,
			"to":       status,
		})
		return nil, err
	}

	updated, err := s.orderRepo.UpdateStatus(order, previous)
	if err != nil {
		return nil, err
	}
	if !updated {
		// someone else moved the order first
		return nil, fmt.Errorf("%w: order %d is no longer %s", model.ErrInvalidStatusTransition, order.ID, previous)
	}

	logger.Info("Order status updated successfully", map[string]interface{}{
		"order_id": orderID,
		"from":     previous,
		"to":       order.Status,
	})

	s.dispatcher.Dispatch(ctx, effects...)
	return order, nil
}

func (s *orderService) authorizeFulfillment(ctx context.Context, actor model.Principal, orderID uint) error {
	switch p := actor.(type) {
	case model.Admin:
		return nil
	case model.SellerPrincipal:
		if !p.Approved {
			return ErrSellerNotApproved
		}
		var count int64
		if err := s.db.WithContext(ctx).Table("order_items").
			Joins("JOIN products ON products.id = order_items.product_id").
			Where("order_items.order_id = ? AND products.seller_id = ?", orderID, p.SellerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrOrderAccessDenied
		}
		return nil
	default:
		return ErrOrderAccessDenied
	}
}
