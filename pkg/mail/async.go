package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ikkim/marketplace-backend/pkg/logger"
)

var (
	ErrQueueFull = errors.New("mail: queue full")
	ErrClosed    = errors.New("mail: mailer closed")
)

// AsyncMailer hands messages to a fixed pool of workers so callers never
// wait on the relay. A full queue drops the message.
type AsyncMailer struct {
	next    Mailer
	timeout time.Duration
	queue   chan Message
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncMailer(next Mailer, workers, queueSize int, timeout time.Duration) *AsyncMailer {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m := &AsyncMailer{
		next:    next,
		timeout: timeout,
		queue:   make(chan Message, queueSize),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.work()
	}
	return m
}

// Send enqueues msg. The caller's context is not carried into delivery
// because the request that triggered the mail usually ends first.
func (m *AsyncMailer) Send(_ context.Context, msg Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	select {
	case m.queue <- msg:
		return nil
	default:
		logger.Warn("Mail queue full, dropping message", map[string]interface{}{
			"to":      msg.To,
			"subject": msg.Subject,
		})
		return ErrQueueFull
	}
}

func (m *AsyncMailer) work() {
	defer m.wg.Done()
	for msg := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		if err := m.next.Send(ctx, msg); err != nil {
			logger.Error("Failed to send email", err, map[string]interface{}{
				"to":      msg.To,
				"subject": msg.Subject,
			})
		}
		cancel()
	}
}

// Close stops accepting messages and waits until every queued one was attempted
func (m *AsyncMailer) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
}
