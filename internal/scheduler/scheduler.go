package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// PaymentReconciler settles payments the gateway never called back for
type PaymentReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// EventPublisher drains the transactional outbox
type EventPublisher interface {
	PublishPending(ctx context.Context) (int, error)
}

type Config struct {
	ReconcileSpec      string
	PendingPaymentTTL  time.Duration
	OutboxPollInterval time.Duration
}

// Scheduler runs the background jobs of the marketplace
type Scheduler struct {
	cron       *cron.Cron
	reconciler PaymentReconciler
	publisher  EventPublisher
	config     Config
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewScheduler creates the scheduler. publisher may be nil when event publishing is disabled.
func NewScheduler(reconciler PaymentReconciler, publisher EventPublisher, config Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconciler: reconciler,
		publisher:  publisher,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.ReconcileSpec, s.reconcilePayments); err != nil {
		logger.Error("Failed to add cron job for payment reconciliation", err)
		return err
	}

	if s.publisher != nil {
		spec := fmt.Sprintf("@every %s", s.config.OutboxPollInterval)
		if _, err := s.cron.AddFunc(spec, s.publishEvents); err != nil {
			logger.Error("Failed to add cron job for outbox publishing", err)
			return err
		}
	}

	s.cron.Start()
	logger.Info("Scheduler started", map[string]interface{}{
		"reconcile_spec":  s.config.ReconcileSpec,
		"outbox_enabled":  s.publisher != nil,
		"outbox_interval": s.config.OutboxPollInterval.String(),
	})
	return nil
}

func (s *Scheduler) Stop() {
	logger.Info("Stopping scheduler...")
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) reconcilePayments() {
	settled, err := s.reconciler.ReconcilePending(s.ctx, s.config.PendingPaymentTTL)
	if err != nil {
		logger.Error("Failed to reconcile pending payments from scheduler", err)
		return
	}
	if settled > 0 {
		logger.Info("Reconciled pending payments", map[string]interface{}{
			"settled": settled,
		})
	}
}

func (s *Scheduler) publishEvents() {
	if _, err := s.publisher.PublishPending(s.ctx); err != nil {
		logger.Error("Failed to publish outbox events from scheduler", err)
	}
}
