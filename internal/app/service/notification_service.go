package service

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/websocket"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/ikkim/marketplace-backend/pkg/mail"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// EffectDispatcher performs the side effects returned by state transitions.
// Dispatch never fails: every effect is attempted and failures are only logged.
type EffectDispatcher interface {
	Dispatch(ctx context.Context, effects ...model.Effect)
}

type NotificationService interface {
	EffectDispatcher
	GetNotifications(userID uint, isRead *bool, page, pageSize int) ([]model.Notification, int64, int64, error)
	GetUnreadCount(userID uint) (int64, error)
	MarkAsRead(notificationID, userID uint) error
	MarkAllAsRead(userID uint) error
}

type notificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	hub      *websocket.Hub
	mailer   mail.Mailer
}

func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	hub *websocket.Hub,
	mailer mail.Mailer,
) NotificationService {
	return &notificationService{
		repo:     repo,
		userRepo: userRepo,
		hub:      hub,
		mailer:   mailer,
	}
}

func (s *notificationService) Dispatch(ctx context.Context, effects ...model.Effect) {
	for _, effect := range effects {
		s.dispatchOne(ctx, effect)
	}
}

func (s *notificationService) dispatchOne(ctx context.Context, effect model.Effect) {
	notification := renderNotification(effect)
	fields := map[string]interface{}{
		"kind":     effect.Kind,
		"user_id":  effect.UserID,
		"order_id": effect.OrderID,
	}

	if err := s.repo.CreateNotification(notification); err != nil {
		logger.Error("Failed to store notification", err, fields)
	}

	if s.hub != nil {
		if err := s.hub.SendToUser(effect.UserID, websocket.Event{Type: string(effect.Kind), Data: notification}); err != nil {
			logger.Warn("Failed to push notification", fields)
		}
	}

	if s.mailer == nil || s.userRepo == nil {
		return
	}
	user, err := s.userRepo.FindByID(effect.UserID)
	if err != nil {
		logger.Warn("Skipping notification email, recipient not found", fields)
		return
	}
	msg := mail.Message{
		To:      user.Email,
		Subject: notification.Title,
		Body:    fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", html.EscapeString(user.Name), html.EscapeString(notification.Content)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		logger.Warn("Notification email not delivered", fields)
		return
	}

	logger.Info("Notification dispatched", fields)
}

func renderNotification(effect model.Effect) *model.Notification {
	n := &model.Notification{
		UserID: effect.UserID,
		Type:   effect.Kind,
	}
	if effect.OrderID != 0 {
		orderID := effect.OrderID
		n.RelatedOrderID = &orderID
		n.Link = fmt.Sprintf("/orders/%d", effect.OrderID)
	}

	switch effect.Kind {
	case model.EffectOrderConfirmed:
		n.Title = fmt.Sprintf("Order #%d confirmed", effect.OrderID)
		n.Content = fmt.Sprintf("We received your order #%d totalling %s.", effect.OrderID, effect.Amount.StringFixed(2))
	case model.EffectPaymentSucceeded:
		n.Title = fmt.Sprintf("Payment received for order #%d", effect.OrderID)
		n.Content = fmt.Sprintf("Your payment of %s (reference %s) was confirmed.", effect.Amount.StringFixed(2), effect.Reference)
	case model.EffectPaymentFailed:
		n.Title = fmt.Sprintf("Payment failed for order #%d", effect.OrderID)
		n.Content = fmt.Sprintf("Your payment (reference %s) could not be completed. Please retry checkout or contact support.", effect.Reference)
	case model.EffectOrderShipped:
		n.Title = fmt.Sprintf("Order #%d shipped", effect.OrderID)
		n.Content = fmt.Sprintf("Your order #%d is on its way.", effect.OrderID)
	case model.EffectOrderDelivered:
		n.Title = fmt.Sprintf("Order #%d delivered", effect.OrderID)
		n.Content = fmt.Sprintf("Your order #%d was delivered.", effect.OrderID)
	case model.EffectSellerApproved:
		sellerID := effect.SellerID
		n.RelatedSellerID = &sellerID
		n.Title = "Your seller account is approved"
		n.Content = "You can now list products on the marketplace."
		n.Link = "/sellers/me"
	default:
		n.Title = string(effect.Kind)
		n.Content = string(effect.Kind)
	}
	return n
}

func (s *notificationService) GetNotifications(userID uint, isRead *bool, page, pageSize int) ([]model.Notification, int64, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	notifications, total, err := s.repo.GetNotifications(userID, isRead, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, 0, err
	}

	unreadCount, err := s.repo.GetUnreadCount(userID)
	if err != nil {
		return nil, 0, 0, err
	}

	return notifications, total, unreadCount, nil
}

func (s *notificationService) GetUnreadCount(userID uint) (int64, error) {
	return s.repo.GetUnreadCount(userID)
}

func (s *notificationService) MarkAsRead(notificationID, userID uint) error {
	if err := s.repo.MarkAsRead(notificationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(userID uint) error {
	return s.repo.MarkAllAsRead(userID)
}
