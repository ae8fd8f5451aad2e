package model

import "github.com/shopspring/decimal"

type EffectKind string

const (
	EffectOrderConfirmed   EffectKind = "order_confirmed"
	EffectPaymentSucceeded EffectKind = "payment_succeeded"
	EffectPaymentFailed    EffectKind = "payment_failed"
	EffectOrderShipped     EffectKind = "order_shipped"
	EffectOrderDelivered   EffectKind = "order_delivered"
	EffectSellerApproved   EffectKind = "seller_approved"
)

// Effect is a side effect requested by a state transition.
// Transitions only describe effects; the caller performs them after the
// state change is durable, and a failed effect never undoes the change.
type Effect struct {
	Kind      EffectKind      `json:"kind"`
	UserID    uint            `json:"user_id"`
	OrderID   uint            `json:"order_id,omitempty"`
	PaymentID uint            `json:"payment_id,omitempty"`
	SellerID  uint            `json:"seller_id,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}
