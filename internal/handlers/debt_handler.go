package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/services"
	"treasurer/internal/uuid"
)

// DebtHandler handles ad-hoc debt requests.
type DebtHandler struct {
	debtService  services.DebtServicer
	auditService services.AuditServicer
}

// NewDebtHandler creates a new DebtHandler.
func NewDebtHandler(debtService services.DebtServicer, auditService services.AuditServicer) *DebtHandler {
	return &DebtHandler{debtService: debtService, auditService: auditService}
}

// CreateDebtRequest represents the request payload for recording a debt
type CreateDebtRequest struct {
	UserID      string          `json:"user_id" binding:"required,uuid"`
	Amount      int64           `json:"amount" binding:"required,gt=0"`
	Type        models.DebtType `json:"type" binding:"omitempty,debt_type"`
	Description string          `json:"description" binding:"max=500"`
}

// CreateDebt records an amount a member owes outside regular dues
// @Summary     Create a debt
// @Tags        debts
// @Accept      json
// @Produce     json
// @Param       request body CreateDebtRequest true "Debt details"
// @Success     201 {object} object "Debt created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /debts [post]
func (h *DebtHandler) CreateDebt(c *gin.Context) {
	var req CreateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	debt, err := h.debtService.CreateDebt(c.Request.Context(), req.UserID, req.Amount, req.Type, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), "CREATE_DEBT", "debt", debt.ID, c.ClientIP(),
		map[string]any{"user_id": debt.UserID, "amount": debt.Amount, "type": debt.Type})

	c.JSON(http.StatusCreated, gin.H{"debt": debt})
}

// ListDebts lists debts
// @Summary     List debts
// @Tags        debts
// @Produce     json
// @Param       user_id      query string false "Filter by member"
// @Param       is_full_paid query bool   false "Filter by settlement"
// @Success     200 {object} object "Debts"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /debts [get]
func (h *DebtHandler) ListDebts(c *gin.Context) {
	userID := c.Query("user_id")
	if userID != "" && !uuid.IsValid(userID) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid user_id"))
		return
	}
	paid, err := parseBoolQuery(c, "is_full_paid")
	if err != nil {
		respondWithError(c, err)
		return
	}

	debts, err := h.debtService.ListDebts(c.Request.Context(), userID, paid)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"debts": debts})
}
