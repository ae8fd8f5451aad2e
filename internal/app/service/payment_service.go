package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/ikkim/marketplace-backend/pkg/payment/gateway"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrDuplicatePayment     = errors.New("payment already started for this order")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrUnknownReference     = errors.New("unknown payment reference")
	ErrVerificationMismatch = errors.New("claimed payment status differs from gateway")
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")
	ErrOrderNotPayable      = errors.New("order is not awaiting payment")
)

const reconcileBatchSize = 100

// PaymentGateway is the subset of the gateway client the payment flow needs
type PaymentGateway interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResponse, error)
	Verify(ctx context.Context, reference string) (*gateway.VerifyResponse, error)
}

// PaymentHandle is what the buyer needs to continue a payment
type PaymentHandle struct {
	PaymentID   uint                `json:"payment_id"`
	OrderID     uint                `json:"order_id"`
	Reference   string              `json:"reference"`
	Status      model.PaymentStatus `json:"status"`
	Amount      decimal.Decimal     `json:"amount"`
	RedirectURL string              `json:"redirect_url,omitempty"`
}

// CallbackOutcome describes the payment state after a callback was handled
type CallbackOutcome struct {
	Payment          *model.Payment      `json:"payment"`
	Status           model.PaymentStatus `json:"status"`
	AlreadyProcessed bool                `json:"already_processed"`
	Mismatch         bool                `json:"mismatch"`
}

type paymentEventPayload struct {
	PaymentID     uint                `json:"payment_id"`
	OrderID       uint                `json:"order_id"`
	UserID        uint                `json:"user_id"`
	Reference     string              `json:"reference"`
	Status        model.PaymentStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	TransactionID string              `json:"transaction_id,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

// verdict is the verified result of a payment attempt
type verdict struct {
	status        model.PaymentStatus
	reason        string
	transactionID string
}

type PaymentService interface {
	InitiatePayment(ctx context.Context, userID, orderID uint) (*PaymentHandle, error)
	HandleCallback(ctx context.Context, reference, claimedStatus string) (*CallbackOutcome, error)
	GetPayment(userID, orderID uint) (*model.Payment, error)
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	gateway     PaymentGateway
	db          *gorm.DB
	dispatcher  EffectDispatcher
	timeout     time.Duration
}

// NewPaymentService creates the payment service. Every gateway call is bounded by timeout.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	gw PaymentGateway,
	db *gorm.DB,
	dispatcher EffectDispatcher,
	timeout time.Duration,
) PaymentService {
	if timeout <= 0 {
		timeout = gateway.DefaultTimeout
	}
	return &paymentService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		gateway:     gw,
		db:          db,
		dispatcher:  dispatcher,
		timeout:     timeout,
	}
}

// InitiatePayment records a PENDING payment for the order and opens a gateway session.
// A second attempt for the same order returns ErrDuplicatePayment with the existing handle.
func (s *paymentService) InitiatePayment(ctx context.Context, userID, orderID uint) (*PaymentHandle, error) {
	logger.Info("Initiating payment", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
	})

	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.UserID != userID {
		logger.Warn("Payment requested for another user's order", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		return nil, ErrOrderNotFound
	}

	reference := model.MerchantReference(userID, orderID)
	if existing, err := s.paymentRepo.FindByReference(reference); err == nil {
		logger.Warn("Duplicate payment attempt", map[string]interface{}{
			"reference": reference,
			"status":    existing.Status,
		})
		return newPaymentHandle(existing), ErrDuplicatePayment
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}

	if order.Status != model.OrderStatusPending {
		return nil, ErrOrderNotPayable
	}

	amount := order.ItemsTotal()
	if !amount.IsPositive() || !amount.Equal(order.TotalPrice) {
		logger.Warn("Order total does not match its lines", map[string]interface{}{
			"order_id":    orderID,
			"total_price": order.TotalPrice.String(),
			"lines_total": amount.String(),
		})
		return nil, ErrInvalidPaymentAmount
	}

	payment := model.NewPayment(userID, orderID, amount)
	if err := s.paymentRepo.Create(payment); err != nil {
		if isDuplicateKey(err) {
			existing, findErr := s.paymentRepo.FindByReference(reference)
			if findErr != nil {
				return nil, ErrDuplicatePayment
			}
			return newPaymentHandle(existing), ErrDuplicatePayment
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	req := gateway.SessionRequest{
		Amount:            amount,
		Description:       fmt.Sprintf("Order #%d", orderID),
		MerchantReference: reference,
	}
	if user, err := s.userRepo.FindByID(userID); err == nil {
		req.Email = user.Email
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.gateway.CreateSession(callCtx, req)
	if err == nil && session.PaymentURL == "" {
		err = gateway.ErrMissingRedirect
	}
	if err != nil {
		logger.Error("Failed to create payment session", err, map[string]interface{}{
			"reference": reference,
		})
		outcome, applyErr := s.apply(ctx, payment, verdict{
			status: model.PaymentStatusFailed,
			reason: model.FailureGatewayUnavailable,
		})
		if applyErr != nil {
			return nil, applyErr
		}
		return newPaymentHandle(outcome.Payment), fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.paymentRepo.SaveSession(payment.ID, session.Token, session.PaymentURL); err != nil {
		return nil, fmt.Errorf("failed to store payment session: %w", err)
	}
	payment.GatewayToken = session.Token
	payment.RedirectURL = session.PaymentURL

	logger.Info("Payment initiated successfully", map[string]interface{}{
		"payment_id": payment.ID,
		"reference":  reference,
		"amount":     amount.String(),
	})
	return newPaymentHandle(payment), nil
}

// HandleCallback settles a payment from the gateway's own record.
// The claimed status is only compared, never applied.
func (s *paymentService) HandleCallback(ctx context.Context, reference, claimedStatus string) (*CallbackOutcome, error) {
	payment, err := s.paymentRepo.FindByReference(reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Payment callback for unknown reference", map[string]interface{}{
				"reference": reference,
			})
			return nil, ErrUnknownReference
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return s.settle(ctx, payment, claimedStatus)
}

func (s *paymentService) settle(ctx context.Context, payment *model.Payment, claimedStatus string) (*CallbackOutcome, error) {
	if payment.Status.IsTerminal() {
		logger.Info("Payment already processed", map[string]interface{}{
			"reference": payment.Reference,
			"status":    payment.Status,
		})
		return &CallbackOutcome{Payment: payment, Status: payment.Status, AlreadyProcessed: true}, nil
	}

	result := s.verify(ctx, payment)

	mismatch := false
	if claimed := strings.ToUpper(strings.TrimSpace(claimedStatus)); claimed != "" && claimed != string(result.status) {
		mismatch = true
		logger.Warn("Payment callback status mismatch", map[string]interface{}{
			"reference": payment.Reference,
			"claimed":   claimed,
			"verified":  result.status,
			"error":     ErrVerificationMismatch.Error(),
		})
	}

	if result.status == model.PaymentStatusPending {
		return &CallbackOutcome{Payment: payment, Status: payment.Status, Mismatch: mismatch}, nil
	}

	outcome, err := s.apply(ctx, payment, result)
	if err != nil {
		return nil, err
	}
	outcome.Mismatch = mismatch
	return outcome, nil
}

func (s *paymentService) verify(ctx context.Context, payment *model.Payment) verdict {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.gateway.Verify(callCtx, payment.Reference)
	if err != nil {
		logger.Error("Failed to verify payment", err, map[string]interface{}{
			"reference": payment.Reference,
		})
		return verdict{status: model.PaymentStatusFailed, reason: model.FailureVerificationFailed}
	}

	switch resp.Status.Normalize() {
	case gateway.StatusPending:
		return verdict{status: model.PaymentStatusPending}
	case gateway.StatusSuccess:
		if resp.Amount != nil && !resp.Amount.Equal(payment.Amount) {
			logger.Warn("Verified amount differs from payment", map[string]interface{}{
				"reference": payment.Reference,
				"expected":  payment.Amount.String(),
				"verified":  resp.Amount.String(),
			})
			return verdict{status: model.PaymentStatusFailed, reason: model.FailureAmountMismatch}
		}
		return verdict{status: model.PaymentStatusSuccess, transactionID: resp.TransactionID}
	default:
		return verdict{status: model.PaymentStatusFailed, reason: model.FailureDeclined}
	}
}

// apply moves a PENDING payment to its verified terminal state.
// Only the writer whose conditional update changed the row dispatches effects;
// a losing writer gets the state the winner stored.
func (s *paymentService) apply(ctx context.Context, payment *model.Payment, result verdict) (*CallbackOutcome, error) {
	updated := *payment
	now := time.Now()

	var (
		effects []model.Effect
		err     error
	)
	if result.status == model.PaymentStatusSuccess {
		effects, err = updated.Succeed(result.transactionID, now)
	} else {
		effects, err = updated.Fail(result.reason, now)
	}
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	res := tx.Model(&model.Payment{}).
		Where("id = ? AND status = ?", payment.ID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":         updated.Status,
			"transaction_id": updated.TransactionID,
			"failure_reason": updated.FailureReason,
			"verified_at":    updated.VerifiedAt,
		})
	if res.Error != nil {
		tx.Rollback()
		logger.Error("Failed to update payment status", res.Error, map[string]interface{}{
			"reference": payment.Reference,
		})
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		tx.Rollback()
		current, err := s.paymentRepo.FindByReference(payment.Reference)
		if err != nil {
			return nil, fmt.Errorf("failed to reload payment: %w", err)
		}
		logger.Info("Payment settled concurrently", map[string]interface{}{
			"reference": payment.Reference,
			"status":    current.Status,
		})
		return &CallbackOutcome{Payment: current, Status: current.Status, AlreadyProcessed: true}, nil
	}

	eventType := model.EventPaymentFailed
	if updated.Status == model.PaymentStatusSuccess {
		eventType = model.EventPaymentSucceeded

		orderRes := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", payment.OrderID, model.OrderStatusPending).
			Updates(map[string]interface{}{
				"status":  model.OrderStatusPaid,
				"paid_at": now,
			})
		if orderRes.Error != nil {
			tx.Rollback()
			logger.Error("Failed to mark order paid", orderRes.Error, map[string]interface{}{
				"order_id": payment.OrderID,
			})
			return nil, orderRes.Error
		}
		if orderRes.RowsAffected == 0 {
			logger.Warn("Order was not pending when payment succeeded", map[string]interface{}{
				"order_id": payment.OrderID,
			})
		}
	}

	payload := paymentEventPayload{
		PaymentID:     updated.ID,
		OrderID:       updated.OrderID,
		UserID:        updated.UserID,
		Reference:     updated.Reference,
		Status:        updated.Status,
		Amount:        updated.Amount,
		TransactionID: updated.TransactionID,
		FailureReason: updated.FailureReason,
	}
	if err := recordEvent(tx, model.AggregatePayment, updated.ID, eventType, payload); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit payment transition", err, map[string]interface{}{
			"reference": payment.Reference,
		})
		return nil, err
	}

	logger.Info("Payment settled", map[string]interface{}{
		"reference":      updated.Reference,
		"status":         updated.Status,
		"failure_reason": updated.FailureReason,
	})

	s.dispatcher.Dispatch(ctx, effects...)
	*payment = updated
	return &CallbackOutcome{Payment: payment, Status: payment.Status}, nil
}

func (s *paymentService) GetPayment(userID, orderID uint) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ReconcilePending settles PENDING payments older than olderThan through the
// callback path and returns how many reached a terminal state
func (s *paymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	payments, err := s.paymentRepo.FindPendingBefore(cutoff, reconcileBatchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range payments {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		outcome, err := s.settle(ctx, &payments[i], "")
		if err != nil {
			logger.Error("Failed to reconcile payment", err, map[string]interface{}{
				"reference": payments[i].Reference,
			})
			continue
		}
		if outcome.Status.IsTerminal() {
			settled++
		}
	}

	logger.Info("Pending payments reconciled", map[string]interface{}{
		"checked": len(payments),
		"settled": settled,
	})
	return settled, nil
}

func newPaymentHandle(p *model.Payment) *PaymentHandle {
	return &PaymentHandle{
		PaymentID:   p.ID,
		OrderID:     p.OrderID,
		Reference:   p.Reference,
		Status:      p.Status,
		Amount:      p.Amount,
		RedirectURL: p.RedirectURL,
	}
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") ||
		strings.Contains(err.Error(), "duplicate key")
}
