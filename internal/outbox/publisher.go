package outbox

import (
	"context"
	"strconv"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const defaultBatchSize = 100

// MessageWriter is satisfied by *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates the writer the publisher sends events through
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// Publisher moves unprocessed outbox events to Kafka.
// Events are keyed by aggregate so one order's events stay in one partition.
type Publisher struct {
	repo      repository.OutboxRepository
	writer    MessageWriter
	batchSize int
}

func NewPublisher(repo repository.OutboxRepository, writer MessageWriter) *Publisher {
	return &Publisher{repo: repo, writer: writer, batchSize: defaultBatchSize}
}

// PublishPending sends one batch and returns how many events were published.
// A failed event stays unprocessed and is retried on the next run.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	events, err := p.repo.GetUnprocessedEvents(p.batchSize)
	if err != nil {
		logger.Error("Failed to fetch outbox events", err)
		return 0, err
	}

	published := 0
	for i := range events {
		event := &events[i]
		if err := p.writer.WriteMessages(ctx, toMessage(event)); err != nil {
			logger.Error("Failed to publish outbox event", err, map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.EventType,
				"attempts":   event.Attempts + 1,
			})
			if err := p.repo.RecordFailedAttempt(event.ID); err != nil {
				logger.Error("Failed to record outbox attempt", err, map[string]interface{}{
					"event_id": event.ID,
				})
			}
			continue
		}

		if err := p.repo.MarkEventAsProcessed(event.ID); err != nil {
			logger.Error("Failed to mark outbox event processed", err, map[string]interface{}{
				"event_id": event.ID,
			})
			continue
		}
		published++
	}

	if published > 0 {
		logger.Debug("Outbox events published", map[string]interface{}{
			"published": published,
			"fetched":   len(events),
		})
	}
	return published, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toMessage(event *model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(event.AggregateType + ":" + strconv.FormatUint(uint64(event.AggregateID), 10)),
		Value: []byte(event.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(strconv.FormatUint(uint64(event.ID), 10))},
		},
	}
}
