package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/events"
	"treasurer/internal/lock"
	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/period"
	"treasurer/internal/repository"
)

// failureWriteTimeout bounds the FAILED status write made after the caller's
// context has already expired.
const failureWriteTimeout = 5 * time.Second

// AllocationConfig tunes the allocation engine.
type AllocationConfig struct {
	// MaxAttempts bounds retries on conflicts and persistence errors.
	MaxAttempts int
	// Topic is the outbox topic for allocation events.
	Topic string
}

// allocationService splits payments into FUND and DEBT_PAYMENT entries.
type allocationService struct {
	store       repository.Store
	locker      lock.Locker
	policy      DuesPolicy
	maxAttempts int
	topic       string
}

// NewAllocationService creates a new AllocationServicer. A nil locker relies
// on the store's FUND period uniqueness alone.
func NewAllocationService(store repository.Store, locker lock.Locker, policy DuesPolicy, cfg AllocationConfig) AllocationServicer {
	if locker == nil {
		locker = lock.Noop{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Topic == "" {
		cfg.Topic = events.TopicPaymentAllocated
	}
	return &allocationService{
		store:       store,
		locker:      locker,
		policy:      policy,
		maxAttempts: cfg.MaxAttempts,
		topic:       cfg.Topic,
	}
}

// Allocate applies one payment event to the ledger. Delivering the same
// correlation id again after it completed returns the stored allocation
// without writing anything.
func (s *allocationService) Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	if req.Amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	req.CorrelationID = strings.TrimSpace(req.CorrelationID)
	if req.CorrelationID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "correlation id is required")
	}
	if req.UserID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required")
	}
	if req.Source == "" {
		req.Source = models.TransactionSourceManual
	}

	log := logger.With("correlation_id", req.CorrelationID, "user_id", req.UserID)

	user, err := s.store.Users().GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	if !user.Active {
		return nil, apperrors.ErrUserInactive
	}

	release, err := s.locker.Lock(ctx, lock.UserKey(user.ID))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConcurrencyConflict, err)
	}
	defer release()

	tx, eventDate, duplicate, err := s.claim(ctx, req)
	if err != nil {
		return nil, err
	}
	if duplicate != nil {
		log.Infow("duplicate delivery, returning stored allocation", "transaction_id", duplicate.Transaction.ID)
		return duplicate, nil
	}

	log = log.With("transaction_id", tx.ID)
	for attempt := 1; ; attempt++ {
		result, err := s.allocateOnce(ctx, tx.ID, user, eventDate)
		if err == nil {
			log.Infow("payment allocated",
				"attempt", attempt,
				"entries", len(result.Entries),
				"remainder", result.Remainder,
			)
			return result, nil
		}

		if !apperrors.Retryable(err) || attempt >= s.maxAttempts || ctx.Err() != nil {
			log.Errorw("allocation failed", "attempt", attempt, "error", err, "cause", errors.Unwrap(err))
			s.markFailed(ctx, tx.ID, err)
			return nil, err
		}
		log.Warnw("allocation attempt failed, retrying with fresh reads", "attempt", attempt, "error", err, "cause", errors.Unwrap(err))
	}
}

// claim resolves the transaction behind a correlation id and moves it to
// PROCESSING. It returns a non-nil result instead when the event already
// completed.
func (s *allocationService) claim(ctx context.Context, req AllocationRequest) (*models.Transaction, time.Time, *AllocationResult, error) {
	ledger := s.store.Ledger()
	eventDate := req.EventDate

	existing, err := ledger.GetTransactionByOrderCode(ctx, req.CorrelationID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		existing, err = s.createPending(ctx, req)
	case err != nil:
	case existing.RetryableFailure():
		// The previous attempt failed for reasons outside the event, so the
		// redelivery opens a new attempt under the same correlation id.
		logger.Get().Infow("retrying failed transaction", "correlation_id", req.CorrelationID, "failed_transaction_id", existing.ID)
		if eventDate.IsZero() {
			eventDate = existing.TransactionDate
		}
		retry := req
		retry.EventDate = eventDate
		if retry.Description == "" {
			retry.Description = existing.Description
		}
		existing, err = s.createPending(ctx, retry)
	case eventDate.IsZero():
		eventDate = existing.TransactionDate
	}
	if err != nil {
		return nil, eventDate, nil, classify(err)
	}

	switch existing.Status {
	case models.TransactionStatusCompleted:
		if existing.UserID == nil || *existing.UserID != req.UserID || existing.Amount != req.Amount {
			return nil, eventDate, nil, apperrors.ErrDuplicateEvent
		}
		entries, err := ledger.ListEntries(ctx, repository.EntryFilter{TransactionID: existing.ID})
		if err != nil {
			return nil, eventDate, nil, apperrors.Wrap(apperrors.ErrPersistence, err)
		}
		return nil, eventDate, &AllocationResult{
			Transaction: existing,
			Entries:     entries,
			Remainder:   existing.UnallocatedAmount,
			Duplicate:   true,
		}, nil
	case models.TransactionStatusFailed:
		return nil, eventDate, nil, failedTransactionError(existing)
	case models.TransactionStatusProcessing:
		return nil, eventDate, nil, apperrors.WithMessage(apperrors.ErrConcurrencyConflict, "payment is already being allocated")
	}

	if existing.Type != models.TransactionTypeIncome {
		return nil, eventDate, nil, apperrors.ErrInvalidTransactionType
	}
	if existing.UserID != nil && *existing.UserID != req.UserID {
		return nil, eventDate, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "correlation id belongs to another member")
	}
	if existing.Amount != req.Amount {
		msg := fmt.Sprintf("%s: expected %d, received %d", apperrors.ErrAmountMismatch.Code, existing.Amount, req.Amount)
		class := models.FailureTerminal
		update := repository.StatusUpdate{ErrMessage: &msg, FailureClass: &class}
		if err := ledger.TransitionStatus(ctx, existing.ID, models.TransactionStatusPending, models.TransactionStatusFailed, update); err != nil {
			logger.Get().Warnw("failed to mark mismatched transaction FAILED", "transaction_id", existing.ID, "error", err)
		}
		return nil, eventDate, nil, apperrors.ErrAmountMismatch
	}

	now := s.policy.now()
	update := repository.StatusUpdate{ProcessingStartedAt: &now}
	if existing.UserID == nil {
		update.UserID = &req.UserID
	}
	if err := ledger.TransitionStatus(ctx, existing.ID, models.TransactionStatusPending, models.TransactionStatusProcessing, update); err != nil {
		return nil, eventDate, nil, classify(err)
	}
	existing.Status = models.TransactionStatusProcessing
	existing.ProcessingStartedAt = &now
	existing.UserID = &req.UserID
	return existing, eventDate, nil, nil
}

// createPending inserts the transaction for a first delivery or a retry.
// Losing the insert race to a concurrent delivery falls back to the
// winner's row.
func (s *allocationService) createPending(ctx context.Context, req AllocationRequest) (*models.Transaction, error) {
	date := req.EventDate
	if date.IsZero() {
		date = s.policy.now()
	}
	userID := req.UserID
	orderCode := req.CorrelationID
	description := req.Description
	if description == "" {
		description = "Dues payment"
	}

	tx := &models.Transaction{
		Type:            models.TransactionTypeIncome,
		Amount:          req.Amount,
		UserID:          &userID,
		TransactionDate: date,
		Status:          models.TransactionStatusPending,
		Source:          req.Source,
		Description:     description,
		OrderCode:       &orderCode,
	}
	err := s.store.Ledger().CreateTransaction(ctx, tx)
	if errors.Is(err, repository.ErrDuplicateCorrelation) {
		return s.store.Ledger().GetTransactionByOrderCode(ctx, req.CorrelationID)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// allocateOnce computes and writes the allocation in one store transaction
// from fresh reads.
func (s *allocationService) allocateOnce(ctx context.Context, txID string, user *models.User, eventDate time.Time) (*AllocationResult, error) {
	var result *AllocationResult

	err := s.store.InTx(ctx, func(st repository.Store) error {
		ledger := st.Ledger()

		current, err := ledger.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		switch current.Status {
		case models.TransactionStatusProcessing:
		case models.TransactionStatusFailed:
			return apperrors.WithMessage(apperrors.ErrTransactionFailed, "transaction was failed while allocating: "+current.ErrMessage)
		default:
			return apperrors.ErrInvalidStatusChange
		}

		now := s.policy.now()
		ceiling := period.MonthOf(now)
		fee := s.policy.MonthlyFee

		start, latest, err := nextUnpaid(ctx, ledger, user, eventDate, now)
		if err != nil {
			return err
		}

		covered, remaining, err := period.CoveredBy(start, ceiling, current.Amount, fee)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrLogicInvariant, err)
		}
		entries := fundEntries(current, covered, fee)

		debt, err := st.Debts().OldestUnpaid(ctx, user.ID)
		if err != nil {
			return err
		}
		if debt != nil && remaining > 0 && remaining >= debt.Amount {
			if err := st.Debts().MarkFullPaid(ctx, debt.ID); err != nil {
				return err
			}
			debtID := debt.ID
			entries = append(entries, models.TransactionEntry{
				TransactionID: current.ID,
				UserID:        user.ID,
				DebtID:        &debtID,
				Amount:        debt.Amount,
				Type:          models.EntryTypeDebtPayment,
				PeriodMonth:   period.MonthOf(current.TransactionDate).String(),
			})
			remaining -= debt.Amount
		} else {
			debt = nil
		}

		next := start
		if len(covered) > 0 {
			next = covered[len(covered)-1].Next()
		}
		prepaid, remaining, err := period.Prepaid(period.Max(next, ceiling.Next()), remaining, fee)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrLogicInvariant, err)
		}
		entries = append(entries, fundEntries(current, prepaid, fee)...)

		if err := checkAllocation(current.Amount, remaining, latest, entries); err != nil {
			return err
		}

		if err := ledger.CreateEntries(ctx, entries); err != nil {
			return err
		}
		update := repository.StatusUpdate{UnallocatedAmount: &remaining}
		if err := ledger.TransitionStatus(ctx, current.ID, models.TransactionStatusProcessing, models.TransactionStatusCompleted, update); err != nil {
			return err
		}
		current.Status = models.TransactionStatusCompleted
		current.UnallocatedAmount = remaining

		if err := s.enqueueEvent(ctx, st.Outbox(), current, entries, debt, now); err != nil {
			return err
		}

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].PeriodMonth < entries[j].PeriodMonth
		})
		result = &AllocationResult{
			Transaction: current,
			Entries:     entries,
			Remainder:   remaining,
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (s *allocationService) enqueueEvent(ctx context.Context, outbox repository.OutboxRepository, tx *models.Transaction, entries []models.TransactionEntry, debt *models.Debt, now time.Time) error {
	event := events.PaymentAllocated{
		TransactionID: tx.ID,
		UserID:        *tx.UserID,
		Amount:        tx.Amount,
		Periods:       []string{},
		Remainder:     tx.UnallocatedAmount,
		OccurredAt:    now.UTC(),
	}
	if tx.OrderCode != nil {
		event.CorrelationID = *tx.OrderCode
	}
	for _, e := range entries {
		if e.Type == models.EntryTypeFund {
			event.Periods = append(event.Periods, e.PeriodMonth)
		}
	}
	if debt != nil {
		event.DebtID = debt.ID
		event.DebtAmount = debt.Amount
	}

	payload, err := event.Encode()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return outbox.Enqueue(ctx, &models.OutboxMessage{
		MessageKey: tx.ID,
		Topic:      s.topic,
		Payload:    string(payload),
		Status:     models.OutboxStatusPending,
	})
}

// markFailed records the failure. Store and contention errors are classed
// retryable so a redelivery can try again. It runs even when ctx is already
// done, so a timed-out allocation still ends FAILED.
func (s *allocationService) markFailed(ctx context.Context, id string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	msg := failureMessage(cause)
	class := failureClass(cause)
	update := repository.StatusUpdate{ErrMessage: &msg, FailureClass: &class}
	if err := s.store.Ledger().TransitionStatus(ctx, id, models.TransactionStatusProcessing, models.TransactionStatusFailed, update); err != nil {
		logger.Get().Errorw("failed to mark transaction FAILED", "transaction_id", id, "error", err)
	}
}

func fundEntries(tx *models.Transaction, months []period.Month, fee int64) []models.TransactionEntry {
	entries := make([]models.TransactionEntry, 0, len(months))
	for _, m := range months {
		entries = append(entries, models.TransactionEntry{
			TransactionID: tx.ID,
			UserID:        *tx.UserID,
			Amount:        fee,
			Type:          models.EntryTypeFund,
			PeriodMonth:   m.String(),
		})
	}
	return entries
}

// checkAllocation verifies the entries conserve the amount and extend the
// user's FUND periods strictly after latest without repeats.
func checkAllocation(amount, remainder int64, latest *period.Month, entries []models.TransactionEntry) error {
	var sum int64
	prev := latest
	for _, e := range entries {
		if e.Amount <= 0 {
			return apperrors.WithMessage(apperrors.ErrLogicInvariant, "entry amount must be positive")
		}
		sum += e.Amount
		if e.Type != models.EntryTypeFund {
			continue
		}
		m, err := period.Parse(e.PeriodMonth)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrLogicInvariant, err)
		}
		if prev != nil && !m.After(*prev) {
			return apperrors.WithMessage(apperrors.ErrLogicInvariant,
				fmt.Sprintf("fund period %s does not follow %s", m, prev))
		}
		prev = &m
	}
	if sum > amount {
		return apperrors.WithMessage(apperrors.ErrLogicInvariant,
			fmt.Sprintf("entries total %d exceeds transaction amount %d", sum, amount))
	}
	if sum+remainder != amount {
		return apperrors.WithMessage(apperrors.ErrLogicInvariant,
			fmt.Sprintf("entries total %d plus remainder %d does not equal amount %d", sum, remainder, amount))
	}
	return nil
}

// classify maps store errors onto the allocation taxonomy.
func classify(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrPeriodConflict),
		errors.Is(err, repository.ErrDebtSettled),
		errors.Is(err, repository.ErrStatusConflict):
		return apperrors.Wrap(apperrors.ErrConcurrencyConflict, err)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.Wrap(apperrors.ErrTransactionNotFound, err)
	default:
		return apperrors.Wrap(apperrors.ErrPersistence, err)
	}
}

func failureMessage(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", appErr.Code, appErr.Message, appErr.Internal)
	}
	return appErr.Code + ": " + appErr.Message
}

// failureClass decides whether a redelivery may retry after err. Validation
// and invariant failures stay terminal.
func failureClass(err error) models.FailureClass {
	if apperrors.Retryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.FailureRetryable
	}
	return models.FailureTerminal
}

func failedTransactionError(tx *models.Transaction) error {
	if tx.ErrMessage != "" {
		return apperrors.WithMessage(apperrors.ErrTransactionFailed, "transaction already failed: "+tx.ErrMessage)
	}
	return apperrors.ErrTransactionFailed
}
