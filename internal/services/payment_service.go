package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/gateway"
	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/repository"
	"treasurer/internal/uuid"
)

// gatewayDescriptionLimit is the longest description the gateway accepts.
const gatewayDescriptionLimit = 25

// webhookTimeLayout is the gateway's transactionDateTime format.
const webhookTimeLayout = "2006-01-02 15:04:05"

// PaymentConfig holds the checkout redirect targets.
type PaymentConfig struct {
	ReturnURL string
	CancelURL string
}

// paymentService turns gateway callbacks and manual entries into allocations.
type paymentService struct {
	store      repository.Store
	gateway    gateway.Gateway
	allocation AllocationServicer
	cfg        PaymentConfig
}

// NewPaymentService creates a new PaymentServicer.
func NewPaymentService(store repository.Store, gw gateway.Gateway, allocation AllocationServicer, cfg PaymentConfig) PaymentServicer {
	return &paymentService{
		store:      store,
		gateway:    gw,
		allocation: allocation,
		cfg:        cfg,
	}
}

// CreatePaymentLink asks the gateway for a checkout link and records a
// PENDING transaction keyed by the new order code.
func (s *paymentService) CreatePaymentLink(ctx context.Context, userID string, amount int64, description string) (*PaymentLinkResult, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	user, err := s.store.Users().GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !user.Active {
		return nil, apperrors.ErrUserInactive
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = "Dues " + user.Name
	}

	orderCode, err := gateway.NewOrderCode()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	link, err := s.gateway.CreatePaymentLink(ctx, gateway.PaymentLinkRequest{
		OrderCode:   orderCode,
		Amount:      amount,
		Description: truncate(description, gatewayDescriptionLimit),
		ReturnURL:   s.cfg.ReturnURL,
		CancelURL:   s.cfg.CancelURL,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGateway, err)
	}

	code := strconv.FormatInt(orderCode, 10)
	tx := &models.Transaction{
		Type:            models.TransactionTypeIncome,
		Amount:          amount,
		UserID:          &user.ID,
		TransactionDate: time.Now(),
		Status:          models.TransactionStatusPending,
		Source:          models.TransactionSourceGateway,
		Description:     description,
		OrderCode:       &code,
		CheckoutURL:     link.CheckoutURL,
	}
	if err := s.store.Ledger().CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicateCorrelation) {
			return nil, apperrors.ErrDuplicateEvent
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("payment link created", "transaction_id", tx.ID, "order_code", code, "user_id", user.ID, "amount", amount)
	return &PaymentLinkResult{
		Transaction: tx,
		CheckoutURL: link.CheckoutURL,
		OrderCode:   code,
	}, nil
}

// HandleWebhook verifies the callback signature and allocates the paid order
// under its order code, so redelivered callbacks are no-ops.
func (s *paymentService) HandleWebhook(ctx context.Context, body []byte) (*AllocationResult, error) {
	data, err := s.gateway.VerifyWebhook(body)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			return nil, apperrors.Wrap(apperrors.ErrInvalidSignature, err)
		}
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "malformed webhook payload")
	}

	orderCode := strconv.FormatInt(data.OrderCode, 10)
	log := logger.With("order_code", orderCode)

	tx, err := s.store.Ledger().GetTransactionByOrderCode(ctx, orderCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warnw("webhook for unknown order acknowledged without allocation")
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	if !data.Paid() {
		msg := fmt.Sprintf("gateway reported code %s: %s", data.Code, data.Desc)
		class := models.FailureTerminal
		update := repository.StatusUpdate{ErrMessage: &msg, FailureClass: &class}
		err := s.store.Ledger().TransitionStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusFailed, update)
		if err != nil && !errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
		}
		log.Infow("unpaid webhook marked transaction failed", "transaction_id", tx.ID, "code", data.Code)
		return nil, nil
	}

	if tx.UserID == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "order has no member")
	}

	eventDate := tx.TransactionDate
	if t, err := time.ParseInLocation(webhookTimeLayout, data.TransactionDateTime, time.Local); err == nil {
		eventDate = t
	}

	return s.allocation.Allocate(ctx, AllocationRequest{
		UserID:        *tx.UserID,
		Amount:        data.Amount,
		CorrelationID: orderCode,
		EventDate:     eventDate,
		Description:   tx.Description,
		Source:        models.TransactionSourceGateway,
	})
}

// RecordManualPayment allocates a payment entered by hand. Without a
// correlation id the entry cannot be retried idempotently, so one is minted.
func (s *paymentService) RecordManualPayment(ctx context.Context, req ManualPaymentRequest) (*AllocationResult, error) {
	correlationID := strings.TrimSpace(req.CorrelationID)
	if correlationID == "" {
		correlationID = "manual-" + uuid.New()
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Manual dues payment"
	}

	return s.allocation.Allocate(ctx, AllocationRequest{
		UserID:        req.UserID,
		Amount:        req.Amount,
		CorrelationID: correlationID,
		EventDate:     req.EventDate,
		Description:   description,
		Source:        models.TransactionSourceManual,
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
