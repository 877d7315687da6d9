package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/logger"
	"treasurer/internal/services"
)

// PaymentHandler handles the payment entry points.
type PaymentHandler struct {
	paymentService services.PaymentServicer
	auditService   services.AuditServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService services.PaymentServicer, auditService services.AuditServicer) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, auditService: auditService}
}

// CreatePaymentLinkRequest represents the request payload for a checkout link
type CreatePaymentLinkRequest struct {
	UserID      string `json:"user_id" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=255"`
}

// ManualPaymentRequest represents a payment entered by hand
type ManualPaymentRequest struct {
	UserID        string  `json:"user_id" binding:"required,uuid"`
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	CorrelationID string  `json:"correlation_id" binding:"max=128"`
	Date          *string `json:"date"`
	Description   string  `json:"description" binding:"max=500"`
}

// CreatePaymentLink creates a gateway checkout link for a member
// @Summary     Create a payment link
// @Tags        payments
// @Accept      json
// @Produce     json
// @Param       request body CreatePaymentLinkRequest true "Payment details"
// @Success     201 {object} services.PaymentLinkResult "Checkout link"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     502 {object} ErrorResponse "Gateway error"
// @Router      /payments/link [post]
func (h *PaymentHandler) CreatePaymentLink(c *gin.Context) {
	var req CreatePaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.paymentService.CreatePaymentLink(c.Request.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Webhook receives gateway payment notifications
// @Summary     Gateway webhook
// @Description Verifies the signature and allocates the paid order. Redelivery is a no-op.
// @Tags        payments
// @Accept      json
// @Produce     json
// @Success     200 {object} object "Acknowledged"
// @Failure     400 {object} ErrorResponse "Invalid signature or payload"
// @Router      /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "unreadable body"))
		return
	}

	result, err := h.paymentService.HandleWebhook(c.Request.Context(), body)
	if err != nil {
		logger.Get().Warnw("webhook rejected", "error", err, "client_ip", c.ClientIP())
		respondWithError(c, err)
		return
	}

	resp := gin.H{"success": true}
	if result != nil {
		resp["allocation"] = result
	}
	c.JSON(http.StatusOK, resp)
}

// RecordManualPayment allocates a payment entered by a treasurer
// @Summary     Record a manual payment
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body ManualPaymentRequest true "Payment details"
// @Success     201 {object} services.AllocationResult "Allocation"
// @Success     200 {object} services.AllocationResult "Already allocated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     409 {object} ErrorResponse "Conflict"
// @Router      /payments/manual [post]
func (h *PaymentHandler) RecordManualPayment(c *gin.Context) {
	var req ManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	date, err := optionalTime(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.paymentService.RecordManualPayment(c.Request.Context(), services.ManualPaymentRequest{
		UserID:        req.UserID,
		Amount:        req.Amount,
		CorrelationID: req.CorrelationID,
		EventDate:     date,
		Description:   req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, result)
		return
	}

	h.auditService.Log(c.Request.Context(), "MANUAL_PAYMENT", "transaction", result.Transaction.ID, c.ClientIP(),
		map[string]any{"user_id": req.UserID, "amount": req.Amount, "remainder": result.Remainder})

	c.JSON(http.StatusCreated, result)
}
