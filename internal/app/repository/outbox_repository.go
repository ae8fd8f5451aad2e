package repository

import (
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"gorm.io/gorm"
)

type OutboxRepository interface {
	GetUnprocessedEvents(limit int) ([]model.OutboxEvent, error)
	MarkEventAsProcessed(id uint) error
	RecordFailedAttempt(id uint) error
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) GetUnprocessedEvents(limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.db.Where("processed_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *outboxRepository) MarkEventAsProcessed(id uint) error {
	return r.db.Model(&model.OutboxEvent{}).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", time.Now()).Error
}

func (r *outboxRepository) RecordFailedAttempt(id uint) error {
	return r.db.Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}
