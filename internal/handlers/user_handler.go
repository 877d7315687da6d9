package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/services"
)

// UserHandler handles member requests.
type UserHandler struct {
	userService    services.UserServicer
	balanceService services.BalanceServicer
	auditService   services.AuditServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer, balanceService services.BalanceServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, balanceService: balanceService, auditService: auditService}
}

// CreateUserRequest represents the request payload for adding a member
type CreateUserRequest struct {
	Name         string  `json:"name" binding:"required,max=255"`
	Email        *string `json:"email" binding:"omitempty,email"`
	JoinedPeriod string  `json:"joined_period" binding:"omitempty,period_month"`
}

// CreateUser adds a fund member
// @Summary     Create a member
// @Tags        users
// @Accept      json
// @Produce     json
// @Param       request body CreateUserRequest true "Member details"
// @Success     201 {object} object "Member created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Email already used"
// @Router      /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), req.Name, req.Email, req.JoinedPeriod)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), "CREATE_USER", "user", user.ID, c.ClientIP(),
		map[string]any{"name": user.Name, "joined_period": user.JoinedPeriod})

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// ListUsers lists members
// @Summary     List members
// @Tags        users
// @Produce     json
// @Param       active query bool false "Only active members"
// @Success     200 {object} object "Members"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	active, err := parseBoolQuery(c, "active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	users, err := h.userService.ListUsers(c.Request.Context(), active != nil && *active)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetBalance returns a member's dues and debt position
// @Summary     Member balance
// @Description Paid periods, dues owed and net debt for a year (default current year)
// @Tags        users
// @Produce     json
// @Param       id   path  string true  "User ID"
// @Param       year query int    false "Year"
// @Success     200 {object} services.UserBalance "Balance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{id}/balance [get]
func (h *UserHandler) GetBalance(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	year, err := parseYearQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	balance, err := h.balanceService.UserBalance(c.Request.Context(), userID, year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}
