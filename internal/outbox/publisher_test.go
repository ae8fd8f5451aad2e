package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/db"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeWriter struct {
	messages []kafka.Message
	failKeys map[string]bool
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if w.failKeys[string(m.Key)] {
			return errors.New("broker unavailable")
		}
		w.messages = append(w.messages, m)
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func seedEvent(t *testing.T, testDB *gorm.DB, aggregateType string, aggregateID uint, eventType string) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent(aggregateType, aggregateID, eventType, map[string]interface{}{"id": aggregateID})
	require.NoError(t, err)
	require.NoError(t, testDB.Create(event).Error)
	return event
}

func TestPublisher_PublishPending(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	seedEvent(t, testDB, model.AggregateOrder, 1, model.EventOrderCreated)
	seedEvent(t, testDB, model.AggregatePayment, 7, model.EventPaymentSucceeded)

	writer := &fakeWriter{}
	publisher := NewPublisher(repository.NewOutboxRepository(testDB), writer)

	published, err := publisher.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	require.Len(t, writer.messages, 2)

	assert.Equal(t, "order:1", string(writer.messages[0].Key))
	assert.JSONEq(t, `{"id":1}`, string(writer.messages[0].Value))
	assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
	assert.Equal(t, model.EventOrderCreated, string(writer.messages[0].Headers[0].Value))
	assert.Equal(t, "payment:7", string(writer.messages[1].Key))

	t.Run("processed events are not sent again", func(t *testing.T) {
		published, err := publisher.PublishPending(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, published)
		assert.Len(t, writer.messages, 2)
	})
}

func TestPublisher_FailedEventIsRetried(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	failing := seedEvent(t, testDB, model.AggregateOrder, 1, model.EventOrderCreated)
	seedEvent(t, testDB, model.AggregateOrder, 2, model.EventOrderCreated)

	writer := &fakeWriter{failKeys: map[string]bool{"order:1": true}}
	publisher := NewPublisher(repository.NewOutboxRepository(testDB), writer)

	published, err := publisher.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	var stored model.OutboxEvent
	require.NoError(t, testDB.First(&stored, failing.ID).Error)
	assert.Nil(t, stored.ProcessedAt)
	assert.Equal(t, 1, stored.Attempts)

	writer.failKeys = nil
	published, err = publisher.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	require.NoError(t, testDB.First(&stored, failing.ID).Error)
	assert.NotNil(t, stored.ProcessedAt)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}
