package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidStatusTransition = errors.New("invalid status transition")

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // placed, awaiting payment
	OrderStatusPaid      OrderStatus = "paid"      // payment verified with the gateway
	OrderStatusShipped   OrderStatus = "shipped"   // handed to the carrier
	OrderStatusDelivered OrderStatus = "delivered" // received by the buyer
)

var orderTransitions = map[OrderStatus]OrderStatus{
	OrderStatusPending: OrderStatusPaid,
	OrderStatusPaid:    OrderStatusShipped,
	OrderStatusShipped: OrderStatusDelivered,
}

// CanTransitionTo allows exactly one step forward along pending→paid→shipped→delivered
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderTransitions[s] == next
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// Order is an immutable snapshot of a checkout; only status and its timestamps change
type Order struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	Status      OrderStatus     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	ShippedAt   *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	User       User        `gorm:"foreignKey:UserID" json:"-"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	ProductName string          `gorm:"not null" json:"product_name"` // name at checkout time
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"` // copied from the cart line
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// NewOrderItem snapshots a cart line by value
func NewOrderItem(line CartLine, productName string) OrderItem {
	return OrderItem{
		ProductID:   line.ProductID,
		ProductName: productName,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		Subtotal:    line.LineTotal(),
	}
}

// ItemsTotal recomputes the total from the order's own lines
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.OrderItems {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Paid reports whether payment has been verified for the order
func (o *Order) Paid() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusShipped || o.Status == OrderStatusDelivered
}

// Placed returns the effects of a freshly created order
func (o *Order) Placed() []Effect {
	return []Effect{{
		Kind:    EffectOrderConfirmed,
		UserID:  o.UserID,
		OrderID: o.ID,
		Amount:  o.TotalPrice,
	}}
}

// Advance moves the order one step forward and returns the effects to perform
func (o *Order) Advance(next OrderStatus, now time.Time) ([]Effect, error) {
	if !o.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: order %s -> %s", ErrInvalidStatusTransition, o.Status, next)
	}

	o.Status = next
	switch next {
	case OrderStatusPaid:
		o.PaidAt = &now
		// paid is announced through the payment transition
		return nil, nil
	case OrderStatusShipped:
		o.ShippedAt = &now
		return []Effect{{Kind: EffectOrderShipped, UserID: o.UserID, OrderID: o.ID, Amount: o.TotalPrice}}, nil
	case OrderStatusDelivered:
		o.DeliveredAt = &now
		return []Effect{{Kind: EffectOrderDelivered, UserID: o.UserID, OrderID: o.ID, Amount: o.TotalPrice}}, nil
	}
	return nil, nil
}
