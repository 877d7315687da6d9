package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/repository"
)

// ReaperConfig tunes the stale PROCESSING reaper.
type ReaperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
	Now        func() time.Time
}

// StaleReaper fails transactions left in PROCESSING by a crashed allocation.
// The allocation commits its entries and the COMPLETED status together, so a
// row still PROCESSING after StaleAfter has no entries and is safe to fail.
type StaleReaper struct {
	store    repository.Store
	cfg      ReaperConfig
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewStaleReaper creates a new StaleReaper.
func NewStaleReaper(store repository.Store, cfg ReaperConfig) *StaleReaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &StaleReaper{
		store:  store,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Start sweeps until ctx is done or Stop is called.
func (r *StaleReaper) Start(ctx context.Context) {
	logger.Get().Infow("stale processing reaper started", "stale_after", r.cfg.StaleAfter.String())

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Get().Info("stale processing reaper stopped")
			return
		case <-r.stopCh:
			logger.Get().Info("stale processing reaper stopped")
			return
		case <-ticker.C:
			r.Reap(ctx)
		}
	}
}

// Stop ends the sweep loop.
func (r *StaleReaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Reap fails one batch of stale transactions and returns how many it moved.
func (r *StaleReaper) Reap(ctx context.Context) int {
	cutoff := r.cfg.Now().Add(-r.cfg.StaleAfter)
	stale, err := r.store.Ledger().ListStaleProcessing(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		logger.Get().Errorw("failed to load stale transactions", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	logger.Get().Infow("found stale processing transactions", "count", len(stale))

	// An abandoned claim says nothing about the event, so a redelivery may retry it.
	class := models.FailureRetryable
	reaped := 0
	for _, tx := range stale {
		msg := fmt.Sprintf("PROCESSING_TIMEOUT: no completion after %s", r.cfg.StaleAfter)
		update := repository.StatusUpdate{ErrMessage: &msg, FailureClass: &class}
		err := r.store.Ledger().TransitionStatus(ctx, tx.ID, models.TransactionStatusProcessing, models.TransactionStatusFailed, update)
		if err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				// Completed or failed by its owner since the scan.
				continue
			}
			logger.Get().Errorw("failed to fail stale transaction", "transaction_id", tx.ID, "error", err)
			continue
		}
		reaped++
		logger.Get().Warnw("stale transaction marked FAILED", "transaction_id", tx.ID, "started_at", tx.ProcessingStartedAt)
	}
	return reaped
}
