package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && next.IsTerminal()
}

// Failure reasons recorded on FAILED payments
const (
	FailureGatewayUnavailable = "gateway_unavailable"
	FailureVerificationFailed = "verification_failed"
	FailureAmountMismatch     = "amount_mismatch"
	FailureDeclined           = "declined"
)

// MerchantReference is the deterministic reference sent to the gateway.
// One order of one buyer can only ever produce one reference.
func MerchantReference(buyerID, orderID uint) string {
	return fmt.Sprintf("%d-%d", buyerID, orderID)
}

type Payment struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	OrderID       uint            `gorm:"not null;index" json:"order_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status        PaymentStatus   `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	Reference     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	GatewayToken  string          `json:"-"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	VerifiedAt    *time.Time      `json:"verified_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}

// NewPayment creates the PENDING payment for an order
func NewPayment(buyerID, orderID uint, amount decimal.Decimal) *Payment {
	return &Payment{
		UserID:    buyerID,
		OrderID:   orderID,
		Amount:    amount,
		Status:    PaymentStatusPending,
		Reference: MerchantReference(buyerID, orderID),
	}
}

// Succeed moves PENDING to SUCCESS
func (p *Payment) Succeed(transactionID string, now time.Time) ([]Effect, error) {
	if !p.Status.CanTransitionTo(PaymentStatusSuccess) {
		return nil, fmt.Errorf("%w: payment %s -> %s", ErrInvalidStatusTransition, p.Status, PaymentStatusSuccess)
	}
	p.Status = PaymentStatusSuccess
	p.TransactionID = transactionID
	p.FailureReason = ""
	p.VerifiedAt = &now
	return []Effect{p.effect(EffectPaymentSucceeded)}, nil
}

// Fail moves PENDING to FAILED with a reason
func (p *Payment) Fail(reason string, now time.Time) ([]Effect, error) {
	if !p.Status.CanTransitionTo(PaymentStatusFailed) {
		return nil, fmt.Errorf("%w: payment %s -> %s", ErrInvalidStatusTransition, p.Status, PaymentStatusFailed)
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.VerifiedAt = &now
	return []Effect{p.effect(EffectPaymentFailed)}, nil
}

func (p *Payment) effect(kind EffectKind) Effect {
	return Effect{
		Kind:      kind,
		UserID:    p.UserID,
		OrderID:   p.OrderID,
		PaymentID: p.ID,
		Reference: p.Reference,
		Amount:    p.Amount,
		Reason:    p.FailureReason,
	}
}
