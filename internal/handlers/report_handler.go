package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"treasurer/internal/services"
)

// ReportHandler serves fund-wide reports.
type ReportHandler struct {
	balanceService services.BalanceServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(balanceService services.BalanceServicer) *ReportHandler {
	return &ReportHandler{balanceService: balanceService}
}

// MemberReport lists every active member's contributions and debt
// @Summary     Member report
// @Tags        reports
// @Produce     json
// @Param       year query int false "Year (default current year)"
// @Success     200 {array}  services.MemberReport "One row per active member"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /reports/members [get]
func (h *ReportHandler) MemberReport(c *gin.Context) {
	year, err := parseYearQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rows, err := h.balanceService.MemberReport(c.Request.Context(), year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

// Dashboard returns fund totals
// @Summary     Dashboard totals
// @Tags        reports
// @Produce     json
// @Success     200 {object} services.DashboardStats "Totals"
// @Router      /reports/dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	stats, err := h.balanceService.DashboardStats(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
