package service

import (
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"gorm.io/gorm"
)

// recordEvent appends an outbox event to the caller's transaction
func recordEvent(tx *gorm.DB, aggregateType string, aggregateID uint, eventType string, payload interface{}) error {
	event, err := model.NewOutboxEvent(aggregateType, aggregateID, eventType, payload)
	if err != nil {
		return err
	}
	return tx.Create(event).Error
}
