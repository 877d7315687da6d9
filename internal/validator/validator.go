// Package validator registers the ledger's custom binding rules with gin.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"treasurer/internal/models"
	"treasurer/internal/period"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn adds the custom rules to v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("period_month", validatePeriodMonth)
	_ = v.RegisterValidation("debt_type", validateDebtType)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
	_ = v.RegisterValidation("transaction_status", validateTransactionStatus)
}

// validatePeriodMonth accepts a zero-padded YYYY-MM.
func validatePeriodMonth(fl validator.FieldLevel) bool {
	_, err := period.Parse(fl.Field().String())
	return err == nil
}

func validateDebtType(fl validator.FieldLevel) bool {
	switch models.DebtType(fl.Field().String()) {
	case models.DebtTypeAdHoc, models.DebtTypePenalty, models.DebtTypeAdvance:
		return true
	}
	return false
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch models.TransactionType(fl.Field().String()) {
	case models.TransactionTypeIncome, models.TransactionTypeExpense:
		return true
	}
	return false
}

func validateTransactionStatus(fl validator.FieldLevel) bool {
	switch models.TransactionStatus(fl.Field().String()) {
	case models.TransactionStatusPending, models.TransactionStatusProcessing,
		models.TransactionStatusCompleted, models.TransactionStatusFailed:
		return true
	}
	return false
}
