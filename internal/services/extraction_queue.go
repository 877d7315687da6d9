package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/repository"
	"treasurer/internal/uuid"
)

type extractionJob struct {
	transactionID string
	result        ExtractionResult
}

// ExtractionQueue records receipt-extraction results as PENDING transactions
// and allocates them on a background worker once the payer is resolved to a
// member.
type ExtractionQueue struct {
	store      repository.Store
	users      UserServicer
	allocation AllocationServicer
	jobs       chan extractionJob
	wg         sync.WaitGroup
}

// NewExtractionQueue creates a queue holding at most size waiting results.
func NewExtractionQueue(store repository.Store, users UserServicer, allocation AllocationServicer, size int) *ExtractionQueue {
	if size <= 0 {
		size = 64
	}
	return &ExtractionQueue{
		store:      store,
		users:      users,
		allocation: allocation,
		jobs:       make(chan extractionJob, size),
	}
}

// Start runs the worker until ctx is done.
func (q *ExtractionQueue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		logger.Get().Info("extraction queue worker started")
		for {
			select {
			case <-ctx.Done():
				logger.Get().Info("extraction queue worker stopped")
				return
			case job := <-q.jobs:
				q.process(ctx, job)
			}
		}
	}()
}

// Wait blocks until the worker has stopped.
func (q *ExtractionQueue) Wait() {
	q.wg.Wait()
}

// Enqueue stores the result as a PENDING transaction and queues it. If ctx
// ends before the queue has room, the transaction is marked FAILED.
// Enqueueing a correlation id again returns the recorded transaction unless
// it FAILED. A retryable failure is queued afresh and a terminal one is
// reported as TRANSACTION_FAILED.
func (q *ExtractionQueue) Enqueue(ctx context.Context, result ExtractionResult) (*models.Transaction, error) {
	if result.Amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	result.PayerName = strings.TrimSpace(result.PayerName)
	if result.PayerName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "payer name is required")
	}
	result.CorrelationID = strings.TrimSpace(result.CorrelationID)
	if result.CorrelationID == "" {
		result.CorrelationID = "extraction-" + uuid.New()
	}
	if result.Description == "" {
		result.Description = "Transfer from " + result.PayerName
	}

	existing, err := q.store.Ledger().GetTransactionByOrderCode(ctx, result.CorrelationID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	case existing.Status != models.TransactionStatusFailed:
		logger.Get().Infow("extraction result already recorded", "transaction_id", existing.ID, "correlation_id", result.CorrelationID, "status", existing.Status)
		return existing, nil
	case !existing.RetryableFailure():
		return nil, failedTransactionError(existing)
	default:
		logger.Get().Infow("retrying failed extraction", "correlation_id", result.CorrelationID, "failed_transaction_id", existing.ID)
	}

	date := result.EventDate
	if date.IsZero() {
		date = time.Now()
	}
	orderCode := result.CorrelationID
	tx := &models.Transaction{
		Type:            models.TransactionTypeIncome,
		Amount:          result.Amount,
		TransactionDate: date,
		Status:          models.TransactionStatusPending,
		Source:          models.TransactionSourceExtraction,
		Description:     result.Description,
		OrderCode:       &orderCode,
	}
	if err := q.store.Ledger().CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicateCorrelation) {
			// A concurrent enqueue of the same result won the insert.
			winner, err := q.store.Ledger().GetTransactionByOrderCode(ctx, orderCode)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
			}
			return winner, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	select {
	case q.jobs <- extractionJob{transactionID: tx.ID, result: result}:
	case <-ctx.Done():
		q.fail(context.WithoutCancel(ctx), tx.ID, "extraction was not queued: "+ctx.Err().Error(), models.FailureRetryable)
		return nil, apperrors.Wrap(apperrors.ErrPersistence, ctx.Err())
	}

	logger.Get().Infow("extraction result queued", "transaction_id", tx.ID, "correlation_id", orderCode)
	return tx, nil
}

func (q *ExtractionQueue) process(ctx context.Context, job extractionJob) {
	log := logger.With("transaction_id", job.transactionID, "correlation_id", job.result.CorrelationID)

	user, err := q.users.FindActiveByName(ctx, job.result.PayerName)
	if err != nil {
		log.Warnw("payer not resolved", "payer_name", job.result.PayerName, "error", err)
		q.fail(ctx, job.transactionID, "payer not resolved: "+failureMessage(err), failureClass(err))
		return
	}

	_, err = q.allocation.Allocate(ctx, AllocationRequest{
		UserID:        user.ID,
		Amount:        job.result.Amount,
		CorrelationID: job.result.CorrelationID,
		EventDate:     job.result.EventDate,
		Description:   job.result.Description,
		Source:        models.TransactionSourceExtraction,
	})
	if err != nil {
		log.Errorw("extraction allocation failed", "user_id", user.ID, "error", err)
		// Errors raised before the transaction was claimed leave it PENDING.
		q.fail(ctx, job.transactionID, failureMessage(err), failureClass(err))
	}
}

func (q *ExtractionQueue) fail(ctx context.Context, id, msg string, class models.FailureClass) {
	update := repository.StatusUpdate{ErrMessage: &msg, FailureClass: &class}
	err := q.store.Ledger().TransitionStatus(ctx, id, models.TransactionStatusPending, models.TransactionStatusFailed, update)
	if err != nil && !errors.Is(err, repository.ErrStatusConflict) {
		logger.Get().Errorw("failed to mark extraction transaction FAILED", "transaction_id", id, "error", err)
	}
}
