package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	AggregateOrder   = "order"
	AggregatePayment = "payment"

	EventOrderCreated     = "order.created"
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and published afterwards
type OutboxEvent struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	AggregateType string         `gorm:"type:varchar(30);not null;index" json:"aggregate_type"`
	AggregateID   uint           `gorm:"not null" json:"aggregate_id"`
	EventType     string         `gorm:"type:varchar(50);not null" json:"event_type"`
	Payload       string         `gorm:"type:text;not null" json:"payload"` // JSON document
	Attempts      int            `gorm:"default:0" json:"attempts"`
	ProcessedAt   *time.Time     `gorm:"index" json:"processed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// NewOutboxEvent serializes payload into an unprocessed event
func NewOutboxEvent(aggregateType string, aggregateID uint, eventType string, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       string(data),
	}, nil
}
