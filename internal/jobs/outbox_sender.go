// Package jobs holds the background loops that run beside the HTTP server.
package jobs

import (
	"context"
	"sync"
	"time"

	"treasurer/internal/events"
	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/repository"
)

// OutboxConfig tunes the outbox sender.
type OutboxConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// OutboxSender publishes PENDING outbox messages and records the outcome.
// Messages are delivered at least once; consumers dedupe on the message key.
type OutboxSender struct {
	store     repository.Store
	publisher events.Publisher
	cfg       OutboxConfig
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewOutboxSender creates a new OutboxSender.
func NewOutboxSender(store repository.Store, publisher events.Publisher, cfg OutboxConfig) *OutboxSender {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxSender{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
	}
}

// Start polls the outbox until ctx is done or Stop is called.
func (s *OutboxSender) Start(ctx context.Context) {
	logger.Get().Infow("outbox sender started", "interval", s.cfg.Interval.String())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Get().Info("outbox sender stopped")
			return
		case <-s.stopCh:
			logger.Get().Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.SendPending(ctx)
		}
	}
}

// Stop ends the polling loop.
func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// SendPending publishes one batch and returns how many messages were sent.
func (s *OutboxSender) SendPending(ctx context.Context) int {
	msgs, err := s.store.Outbox().ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		logger.Get().Errorw("failed to load pending outbox messages", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		if s.send(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) send(ctx context.Context, msg models.OutboxMessage) bool {
	log := logger.With("outbox_id", msg.ID, "topic", msg.Topic, "key", msg.MessageKey)

	if err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, []byte(msg.Payload)); err != nil {
		log.Warnw("outbox publish failed", "retry_count", msg.RetryCount+1, "error", err)
		if err := s.store.Outbox().MarkAttemptFailed(ctx, msg.ID, err.Error(), s.cfg.MaxRetries); err != nil {
			log.Errorw("failed to record outbox attempt", "error", err)
		}
		if msg.RetryCount+1 >= s.cfg.MaxRetries {
			log.Errorw("outbox message exceeded max retries and was marked FAILED")
		}
		return false
	}

	if err := s.store.Outbox().MarkSent(ctx, msg.ID); err != nil {
		// The message will be published again on the next tick.
		log.Errorw("failed to mark outbox message sent", "error", err)
		return false
	}
	log.Debugw("outbox message sent")
	return true
}
