package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/pagination"
	"treasurer/internal/services"
	"treasurer/internal/uuid"
)

// TransactionHandler handles ledger reads and expense entry.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, auditService: auditService}
}

// CreateExpenseRequest represents the request payload for recording a fund expense
type CreateExpenseRequest struct {
	Amount      int64   `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description" binding:"required,max=500"`
	Date        *string `json:"date"`
}

// CreateExpense records money spent from the fund
// @Summary     Record an expense
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       request body CreateExpenseRequest true "Expense details"
// @Success     201 {object} object "Expense recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /transactions/expense [post]
func (h *TransactionHandler) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	date, err := optionalTime(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.CreateExpense(c.Request.Context(), req.Amount, req.Description, date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), "CREATE_EXPENSE", "transaction", tx.ID, c.ClientIP(),
		map[string]any{"amount": tx.Amount, "description": tx.Description})

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// ListTransactions lists ledger transactions
// @Summary     List transactions
// @Tags        transactions
// @Produce     json
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       user_id   query string false "Filter by member"
// @Param       type      query string false "INCOME or EXPENSE"
// @Param       status    query string false "PENDING, PROCESSING, COMPLETED or FAILED"
// @Param       from_date query string false "RFC3339 or YYYY-MM-DD"
// @Param       to_date   query string false "RFC3339 or YYYY-MM-DD"
// @Param       search    query string false "Description substring"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ListTransactions(c.Request.Context(), filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	filter := services.TransactionFilter{Search: c.Query("search")}

	if v := c.Query("user_id"); v != "" {
		if !uuid.IsValid(v) {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid user_id")
		}
		filter.UserID = v
	}

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.ToDate = &t
	}

	if v := c.Query("type"); v != "" {
		switch t := models.TransactionType(v); t {
		case models.TransactionTypeIncome, models.TransactionTypeExpense:
			filter.Type = t
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be INCOME or EXPENSE")
		}
	}

	if v := c.Query("status"); v != "" {
		switch s := models.TransactionStatus(v); s {
		case models.TransactionStatusPending, models.TransactionStatusProcessing,
			models.TransactionStatusCompleted, models.TransactionStatusFailed:
			filter.Status = s
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid status")
		}
	}

	return filter, nil
}

// GetTransaction returns one transaction with its allocation entries
// @Summary     Get transaction
// @Tags        transactions
// @Produce     json
// @Param       id path string true "Transaction ID"
// @Success     200 {object} object "Transaction with entries"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}
