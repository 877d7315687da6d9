package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/pagination"
	"treasurer/internal/repository"
	"treasurer/internal/testutil"
)

func TestMain(m *testing.M) {
	logger.Init("test")
	os.Exit(m.Run())
}

// storeFactories runs every contract test against both implementations.
func storeFactories() map[string]func(t *testing.T) repository.Store {
	return map[string]func(t *testing.T) repository.Store{
		"gorm": func(t *testing.T) repository.Store {
			db := testutil.SetupTestDB(t)
			t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
			return repository.NewGormStore(db)
		},
		"memory": func(t *testing.T) repository.Store {
			return repository.NewMemoryStore()
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, store repository.Store)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func createUser(t *testing.T, store repository.Store, name string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Active: true}
	require.NoError(t, store.Users().CreateUser(context.Background(), user))
	return user
}

func createIncome(t *testing.T, store repository.Store, userID, orderCode string, amount int64, status models.TransactionStatus) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		Type:            models.TransactionTypeIncome,
		Amount:          amount,
		UserID:          &userID,
		TransactionDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:          status,
		Description:     "dues " + orderCode,
		OrderCode:       &orderCode,
	}
	require.NoError(t, store.Ledger().CreateTransaction(context.Background(), tx))
	return tx
}

func fund(txID, userID, month string) models.TransactionEntry {
	return models.TransactionEntry{
		TransactionID: txID,
		UserID:        userID,
		Amount:        100000,
		Type:          models.EntryTypeFund,
		PeriodMonth:   month,
	}
}

func TestTransactions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		user := createUser(t, store, "Alice")
		tx := createIncome(t, store, user.ID, "order-1", 300000, models.TransactionStatusPending)
		require.NotEmpty(t, tx.ID)

		t.Run("duplicate order code", func(t *testing.T) {
			dup := &models.Transaction{
				Type:            models.TransactionTypeIncome,
				Amount:          1,
				TransactionDate: time.Now(),
				Status:          models.TransactionStatusPending,
				OrderCode:       tx.OrderCode,
			}
			err := store.Ledger().CreateTransaction(ctx, dup)
			assert.ErrorIs(t, err, repository.ErrDuplicateCorrelation)
		})

		t.Run("lookup", func(t *testing.T) {
			got, err := store.Ledger().GetTransactionByOrderCode(ctx, "order-1")
			require.NoError(t, err)
			assert.Equal(t, tx.ID, got.ID)

			_, err = store.Ledger().GetTransaction(ctx, "missing")
			assert.ErrorIs(t, err, repository.ErrNotFound)
		})

		t.Run("conditional transition", func(t *testing.T) {
			started := time.Now()
			err := store.Ledger().TransitionStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusProcessing,
				repository.StatusUpdate{ProcessingStartedAt: &started})
			require.NoError(t, err)

			err = store.Ledger().TransitionStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusProcessing, repository.StatusUpdate{})
			assert.ErrorIs(t, err, repository.ErrStatusConflict)

			remainder := int64(50000)
			err = store.Ledger().TransitionStatus(ctx, tx.ID, models.TransactionStatusProcessing, models.TransactionStatusCompleted,
				repository.StatusUpdate{UnallocatedAmount: &remainder})
			require.NoError(t, err)

			got, err := store.Ledger().GetTransaction(ctx, tx.ID)
			require.NoError(t, err)
			assert.Equal(t, models.TransactionStatusCompleted, got.Status)
			assert.Equal(t, int64(50000), got.UnallocatedAmount)
			assert.NotNil(t, got.ProcessingStartedAt)
		})
	})
}

func TestTransactions_RetryAfterFailure(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		user := createUser(t, store, "Alice")
		first := createIncome(t, store, user.ID, "webhook-42", 100000, models.TransactionStatusProcessing)

		msg := "PERSISTENCE_ERROR: database is down"
		class := models.FailureRetryable
		require.NoError(t, store.Ledger().TransitionStatus(ctx, first.ID, models.TransactionStatusProcessing, models.TransactionStatusFailed,
			repository.StatusUpdate{ErrMessage: &msg, FailureClass: &class}))

		got, err := store.Ledger().GetTransactionByOrderCode(ctx, "webhook-42")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.True(t, got.RetryableFailure())

		second := createIncome(t, store, user.ID, "webhook-42", 100000, models.TransactionStatusPending)
		got, err = store.Ledger().GetTransactionByOrderCode(ctx, "webhook-42")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)

		// Only one attempt may be live at a time.
		third := &models.Transaction{
			Type:            models.TransactionTypeIncome,
			Amount:          100000,
			TransactionDate: time.Now(),
			Status:          models.TransactionStatusPending,
			OrderCode:       second.OrderCode,
		}
		assert.ErrorIs(t, store.Ledger().CreateTransaction(ctx, third), repository.ErrDuplicateCorrelation)
	})
}

func TestListTransactions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		alice := createUser(t, store, "Alice")
		bob := createUser(t, store, "Bob")
		createIncome(t, store, alice.ID, "a-1", 100000, models.TransactionStatusCompleted)
		createIncome(t, store, alice.ID, "a-2", 200000, models.TransactionStatusFailed)
		createIncome(t, store, bob.ID, "b-1", 100000, models.TransactionStatusCompleted)

		all, total, err := store.Ledger().ListTransactions(ctx, repository.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, all, 3)

		_, total, err = store.Ledger().ListTransactions(ctx, repository.TransactionFilter{UserID: alice.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		completed, total, err := store.Ledger().ListTransactions(ctx, repository.TransactionFilter{Status: models.TransactionStatusCompleted})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, tx := range completed {
			assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
		}

		found, _, err := store.Ledger().ListTransactions(ctx, repository.TransactionFilter{Search: "DUES B-1"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "b-1", *found[0].OrderCode)

		page, total, err := store.Ledger().ListTransactions(ctx, repository.TransactionFilter{
			Page: pagination.PageRequest{Page: 2, PageSize: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, page, 1)

		sum, err := store.Ledger().SumTransactions(ctx, models.TransactionTypeIncome, models.TransactionStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, int64(200000), sum)
	})
}

func TestEntries(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		user := createUser(t, store, "Alice")
		tx := createIncome(t, store, user.ID, "order-1", 300000, models.TransactionStatusCompleted)

		latest, err := store.Ledger().LatestFundPeriod(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, latest)

		entries := []models.TransactionEntry{fund(tx.ID, user.ID, "2023-12"), fund(tx.ID, user.ID, "2024-01")}
		require.NoError(t, store.Ledger().CreateEntries(ctx, entries))
		assert.NotEmpty(t, entries[0].ID)

		latest, err = store.Ledger().LatestFundPeriod(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024-01", latest)

		t.Run("period conflict", func(t *testing.T) {
			err := store.Ledger().CreateEntries(ctx, []models.TransactionEntry{fund(tx.ID, user.ID, "2024-01")})
			assert.ErrorIs(t, err, repository.ErrPeriodConflict)
		})

		t.Run("debt payments are not period-unique", func(t *testing.T) {
			debt := &models.Debt{UserID: user.ID, Amount: 1000, Type: models.DebtTypeAdHoc}
			require.NoError(t, store.Debts().CreateDebt(ctx, debt))
			line := models.TransactionEntry{
				TransactionID: tx.ID, UserID: user.ID, DebtID: &debt.ID,
				Amount: 1000, Type: models.EntryTypeDebtPayment, PeriodMonth: "2024-01",
			}
			require.NoError(t, store.Ledger().CreateEntries(ctx, []models.TransactionEntry{line}))
		})

		t.Run("filters", func(t *testing.T) {
			year := 2024
			funds, err := store.Ledger().ListEntries(ctx, repository.EntryFilter{UserID: user.ID, Type: models.EntryTypeFund, Year: &year})
			require.NoError(t, err)
			require.Len(t, funds, 1)
			assert.Equal(t, "2024-01", funds[0].PeriodMonth)

			byTx, err := store.Ledger().ListEntries(ctx, repository.EntryFilter{TransactionID: tx.ID})
			require.NoError(t, err)
			assert.Len(t, byTx, 3)

			sum, err := store.Ledger().SumEntries(ctx, models.EntryTypeFund)
			require.NoError(t, err)
			assert.Equal(t, int64(200000), sum)
		})
	})
}

func TestDebts(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		user := createUser(t, store, "Alice")

		none, err := store.Debts().OldestUnpaid(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, none)

		first := &models.Debt{UserID: user.ID, Amount: 60000, Type: models.DebtTypeAdHoc, Description: "jersey",
			Base: models.Base{CreatedAt: time.Now().Add(-time.Hour)}}
		second := &models.Debt{UserID: user.ID, Amount: 20000, Type: models.DebtTypePenalty, Description: "late"}
		require.NoError(t, store.Debts().CreateDebt(ctx, first))
		require.NoError(t, store.Debts().CreateDebt(ctx, second))

		oldest, err := store.Debts().OldestUnpaid(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, oldest)
		assert.Equal(t, first.ID, oldest.ID)

		require.NoError(t, store.Debts().MarkFullPaid(ctx, first.ID))
		assert.ErrorIs(t, store.Debts().MarkFullPaid(ctx, first.ID), repository.ErrDebtSettled)

		oldest, err = store.Debts().OldestUnpaid(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, oldest)
		assert.Equal(t, second.ID, oldest.ID)

		paid := true
		debts, err := store.Debts().ListDebts(ctx, repository.DebtFilter{UserID: user.ID, IsFullPaid: &paid})
		require.NoError(t, err)
		require.Len(t, debts, 1)
		assert.Equal(t, first.ID, debts[0].ID)

		_, err = store.Debts().GetDebt(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestUsers(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		email := "alice@example.com"
		alice := &models.User{Name: "Alice", Email: &email, Active: true}
		require.NoError(t, store.Users().CreateUser(ctx, alice))

		dupEmail := "alice@example.com"
		err := store.Users().CreateUser(ctx, &models.User{Name: "Alice 2", Email: &dupEmail, Active: true})
		assert.ErrorIs(t, err, repository.ErrDuplicate)

		inactive := &models.User{Name: "Zed", Active: false}
		require.NoError(t, store.Users().CreateUser(ctx, inactive))

		active, err := store.Users().ListUsers(ctx, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "Alice", active[0].Name)

		all, err := store.Users().ListUsers(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestInTxRollback(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		user := createUser(t, store, "Alice")
		boom := errors.New("boom")

		err := store.InTx(ctx, func(tx repository.Store) error {
			orderCode := "rolled-back"
			if err := tx.Ledger().CreateTransaction(ctx, &models.Transaction{
				Type: models.TransactionTypeIncome, Amount: 100000, UserID: &user.ID,
				TransactionDate: time.Now(), Status: models.TransactionStatusCompleted, OrderCode: &orderCode,
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = store.Ledger().GetTransactionByOrderCode(ctx, "rolled-back")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestOutbox(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		first := &models.OutboxMessage{MessageKey: "k1", Topic: "payment.allocated", Payload: "{}"}
		second := &models.OutboxMessage{MessageKey: "k2", Topic: "payment.allocated", Payload: "{}"}
		require.NoError(t, store.Outbox().Enqueue(ctx, first))
		require.NoError(t, store.Outbox().Enqueue(ctx, second))
		assert.ErrorIs(t, store.Outbox().Enqueue(ctx, &models.OutboxMessage{MessageKey: "k1", Topic: "t", Payload: "{}"}), repository.ErrDuplicate)

		require.NoError(t, store.Outbox().MarkSent(ctx, first.ID))
		for i := 0; i < 2; i++ {
			require.NoError(t, store.Outbox().MarkAttemptFailed(ctx, second.ID, "broker down", 2))
		}

		pending, err := store.Outbox().ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestAudit(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		ctx := context.Background()
		require.NoError(t, store.Audit().Record(ctx, &models.AuditLog{Action: "CREATE_DEBT", ResourceType: "debt", ResourceID: "d-1"}))
		require.NoError(t, store.Audit().Record(ctx, &models.AuditLog{Action: "CREATE_USER", ResourceType: "user", ResourceID: "u-1"}))

		logs, err := store.Audit().ListByResource(ctx, "d-1")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "CREATE_DEBT", logs[0].Action)
	})
}

func TestMemoryStore_OptimisticCommit(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	user := createUser(t, store, "Alice")
	tx := createIncome(t, store, user.ID, "order-1", 100000, models.TransactionStatusCompleted)

	t.Run("late writer loses the period", func(t *testing.T) {
		err := store.InTx(ctx, func(slow repository.Store) error {
			latest, err := slow.Ledger().LatestFundPeriod(ctx, user.ID)
			require.NoError(t, err)
			assert.Empty(t, latest)

			// A concurrent writer commits the same month first.
			require.NoError(t, store.Ledger().CreateEntries(ctx, []models.TransactionEntry{fund(tx.ID, user.ID, "2024-01")}))

			return slow.Ledger().CreateEntries(ctx, []models.TransactionEntry{fund(tx.ID, user.ID, "2024-01")})
		})
		assert.ErrorIs(t, err, repository.ErrPeriodConflict)

		funds, err := store.Ledger().ListEntries(ctx, repository.EntryFilter{UserID: user.ID, Type: models.EntryTypeFund})
		require.NoError(t, err)
		assert.Len(t, funds, 1)
	})

	t.Run("debt settled concurrently", func(t *testing.T) {
		debt := &models.Debt{UserID: user.ID, Amount: 500, Type: models.DebtTypeAdHoc}
		require.NoError(t, store.Debts().CreateDebt(ctx, debt))

		err := store.InTx(ctx, func(slow repository.Store) error {
			require.NoError(t, store.Debts().MarkFullPaid(ctx, debt.ID))
			return slow.Debts().MarkFullPaid(ctx, debt.ID)
		})
		assert.ErrorIs(t, err, repository.ErrDebtSettled)
	})

	t.Run("write counting", func(t *testing.T) {
		before := store.Writes()
		_, err := store.Ledger().GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, before, store.Writes())

		require.NoError(t, store.Audit().Record(ctx, &models.AuditLog{Action: "x", ResourceType: "y"}))
		assert.Equal(t, before+1, store.Writes())
	})

	t.Run("injected commit fault", func(t *testing.T) {
		fault := errors.New("connection reset")
		store.FailNextCommits(fault)

		err := store.InTx(ctx, func(s repository.Store) error {
			return s.Ledger().CreateEntries(ctx, []models.TransactionEntry{fund(tx.ID, user.ID, "2024-02")})
		})
		assert.ErrorIs(t, err, fault)

		latest, err := store.Ledger().LatestFundPeriod(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024-01", latest)
	})
}
