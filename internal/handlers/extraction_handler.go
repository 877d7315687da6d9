package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/services"
)

// ExtractionHandler accepts receipt-extraction results from the pipeline.
type ExtractionHandler struct {
	queue services.ExtractionQueuer
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(queue services.ExtractionQueuer) *ExtractionHandler {
	return &ExtractionHandler{queue: queue}
}

// ExtractionRequest represents one extracted transfer
type ExtractionRequest struct {
	PayerName     string  `json:"payerName" binding:"required,max=255"`
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	Date          *string `json:"date"`
	CorrelationID string  `json:"correlationId" binding:"max=128"`
	Description   string  `json:"description" binding:"max=500"`
}

// Enqueue stores an extraction result for asynchronous allocation
// @Summary     Submit an extraction result
// @Tags        extractions
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body ExtractionRequest true "Extracted payment"
// @Success     202 {object} object "Queued or already recorded transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     409 {object} ErrorResponse "Correlation id failed and cannot be retried"
// @Router      /extractions [post]
func (h *ExtractionHandler) Enqueue(c *gin.Context) {
	var req ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	date, err := optionalTime(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.queue.Enqueue(c.Request.Context(), services.ExtractionResult{
		PayerName:     req.PayerName,
		Amount:        req.Amount,
		EventDate:     date,
		CorrelationID: req.CorrelationID,
		Description:   req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"transaction": tx})
}
