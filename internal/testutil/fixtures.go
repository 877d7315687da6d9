package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"treasurer/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an active member with a unique name.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithName(t, db, fmt.Sprintf("Member %d", nextID()))
}

// CreateTestUserWithName creates an active member with the given name.
func CreateTestUserWithName(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	email := fmt.Sprintf("member%d@test.com", nextID())
	user := &models.User{
		Name:   name,
		Email:  &email,
		Active: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestDebt creates an unpaid ad-hoc debt for the user.
func CreateTestDebt(t *testing.T, db *gorm.DB, userID string, amount int64) *models.Debt {
	t.Helper()

	debt := &models.Debt{
		UserID:      userID,
		Amount:      amount,
		Description: fmt.Sprintf("Test debt %d", nextID()),
		Type:        models.DebtTypeAdHoc,
	}
	if err := db.Create(debt).Error; err != nil {
		t.Fatalf("failed to create test debt: %v", err)
	}
	return debt
}

// CreateTestTransaction creates a transaction with the given type, status and amount.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID *string, txType models.TransactionType, status models.TransactionStatus, amount int64) *models.Transaction {
	t.Helper()

	orderCode := fmt.Sprintf("test-order-%d", nextID())
	tx := &models.Transaction{
		Type:            txType,
		Amount:          amount,
		UserID:          userID,
		TransactionDate: time.Now(),
		Status:          status,
		Source:          models.TransactionSourceManual,
		Description:     fmt.Sprintf("Test transaction %d", nextID()),
		OrderCode:       &orderCode,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestFundEntries records a completed payment covering the given
// months ("YYYY-MM") at the given fee each.
func CreateTestFundEntries(t *testing.T, db *gorm.DB, userID string, fee int64, months ...string) *models.Transaction {
	t.Helper()

	tx := CreateTestTransaction(t, db, &userID, models.TransactionTypeIncome, models.TransactionStatusCompleted, fee*int64(len(months)))
	for _, m := range months {
		entry := &models.TransactionEntry{
			TransactionID: tx.ID,
			UserID:        userID,
			Amount:        fee,
			Type:          models.EntryTypeFund,
			PeriodMonth:   m,
		}
		if err := db.Create(entry).Error; err != nil {
			t.Fatalf("failed to create test fund entry %s: %v", m, err)
		}
	}
	return tx
}
