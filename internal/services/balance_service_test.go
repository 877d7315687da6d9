package services

import (
	"context"
	"testing"
	"time"

	"treasurer/internal/models"
	"treasurer/internal/repository"
	"treasurer/internal/testutil"
)

func TestUserBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("owes_unpaid_months", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBalanceService(repository.NewGormStore(db), testPolicy())
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestFundEntries(t, db, user.ID, testFee, "2024-02", "2024-01")

		b, err := svc.UserBalance(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)

		if b.Year != 2024 {
			t.Errorf("expected current year 2024, got %d", b.Year)
		}
		if len(b.PaidPeriods) != 2 || b.PaidPeriods[0] != "2024-01" || b.PaidPeriods[1] != "2024-02" {
			t.Errorf("expected sorted paid periods [2024-01 2024-02], got %v", b.PaidPeriods)
		}
		if b.DuesOwed != 300000 {
			t.Errorf("expected dues owed 300000, got %d", b.DuesOwed)
		}
		if b.DebtBalance != -100000 {
			t.Errorf("expected balance -100000, got %d", b.DebtBalance)
		}
	})

	t.Run("open_debt_counts_against_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBalanceService(repository.NewGormStore(db), testPolicy())
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestFundEntries(t, db, user.ID, testFee, "2024-01", "2024-02", "2024-03")
		debt := testutil.CreateTestDebt(t, db, user.ID, 60000)

		b, err := svc.UserBalance(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)

		if b.DebtBalance != -60000 {
			t.Errorf("expected balance -60000, got %d", b.DebtBalance)
		}
		if b.DebtDescription != debt.Description {
			t.Errorf("expected description %q, got %q", debt.Description, b.DebtDescription)
		}
	})

	t.Run("paid_debt_cancels_out", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBalanceService(repository.NewGormStore(db), testPolicy())
		user := testutil.CreateTestUser(t, db)
		tx := testutil.CreateTestFundEntries(t, db, user.ID, testFee, "2024-01", "2024-02", "2024-03")
		debt := testutil.CreateTestDebt(t, db, user.ID, 60000)
		db.Model(debt).Update("is_full_paid", true)
		if err := db.Create(&models.TransactionEntry{
			TransactionID: tx.ID,
			UserID:        user.ID,
			DebtID:        &debt.ID,
			Amount:        60000,
			Type:          models.EntryTypeDebtPayment,
			PeriodMonth:   "2024-03",
		}).Error; err != nil {
			t.Fatalf("failed to create debt payment: %v", err)
		}

		b, err := svc.UserBalance(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)

		if b.DebtBalance != 0 {
			t.Errorf("expected balance 0, got %d", b.DebtBalance)
		}
		if b.DebtDescription != "" {
			t.Errorf("expected no open debt description, got %q", b.DebtDescription)
		}
		if len(b.PaidPeriods) != 3 {
			t.Errorf("expected debt payment excluded from paid periods, got %v", b.PaidPeriods)
		}
	})

	t.Run("prepaid_is_clamped_to_zero", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBalanceService(repository.NewGormStore(db), testPolicy())
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestFundEntries(t, db, user.ID, testFee, "2024-01", "2024-02", "2024-03", "2024-04", "2024-05")

		b, err := svc.UserBalance(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)

		if b.DebtBalance != 0 {
			t.Errorf("expected clamped balance 0, got %d", b.DebtBalance)
		}
		if b.TotalFundPaid != 500000 {
			t.Errorf("expected total fund paid 500000, got %d", b.TotalFundPaid)
		}
	})

	t.Run("admin_always_zero", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		policy := testPolicy()
		policy.AdminUserID = user.ID
		svc := NewBalanceService(repository.NewGormStore(db), policy)
		testutil.CreateTestDebt(t, db, user.ID, 999000)

		b, err := svc.UserBalance(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)

		if b.DebtBalance != 0 {
			t.Errorf("expected admin balance 0, got %d", b.DebtBalance)
		}
	})

	t.Run("past_year", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBalanceService(repository.NewGormStore(db), testPolicy())
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestFundEntries(t, db, user.ID, testFee, "2023-11", "2023-12", "2024-01")

		year := 2023
		b, err := svc.UserBalance(ctx, user.ID, &year)
		testutil.AssertNoError(t, err)

		if len(b.PaidPeriods) != 2 {
			t.Errorf("expected only 2023 periods, got %v", b.PaidPeriods)
		}
		if b.DuesOwed != 12*testFee {
			t.Errorf("expected a full year owed, got %d", b.DuesOwed)
		}
		if b.DebtBalance != -10*testFee {
			t.Errorf("expected balance %d, got %d", -10*testFee, b.DebtBalance)
		}
	})

	t.Run("user_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBalanceService(repository.NewGormStore(db), testPolicy())

		_, err := svc.UserBalance(ctx, "0190a8b0-0000-7000-8000-000000000000", nil)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestSummarizeDeduplicatesPeriods(t *testing.T) {
	svc := &balanceService{policy: testPolicy()}
	entries := []models.TransactionEntry{
		{Type: models.EntryTypeFund, PeriodMonth: "2024-02", Amount: testFee},
		{Type: models.EntryTypeFund, PeriodMonth: "2024-01", Amount: testFee},
		{Type: models.EntryTypeFund, PeriodMonth: "2024-02", Amount: testFee},
	}

	b := svc.summarize("u1", entries, nil, nil)

	if len(b.PaidPeriods) != 2 || b.PaidPeriods[0] != "2024-01" {
		t.Errorf("expected [2024-01 2024-02], got %v", b.PaidPeriods)
	}
	if b.TotalFundPaid != 2*testFee {
		t.Errorf("expected duplicate period counted once, got %d", b.TotalFundPaid)
	}
}

func TestMemberReport(t *testing.T) {
	ctx := context.Background()

	t.Run("one_row_per_active_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBalanceService(repository.NewGormStore(db), testPolicy())

		an := testutil.CreateTestUserWithName(t, db, "An")
		binh := testutil.CreateTestUserWithName(t, db, "Binh")
		gone := testutil.CreateTestUserWithName(t, db, "Gone")
		db.Model(gone).Update("active", false)

		testutil.CreateTestFundEntries(t, db, an.ID, testFee, "2024-01", "2024-02", "2024-03")
		testutil.CreateTestFundEntries(t, db, binh.ID, testFee, "2024-01")
		debt := testutil.CreateTestDebt(t, db, binh.ID, 50000)
		testutil.CreateTestFundEntries(t, db, gone.ID, testFee, "2024-01")

		report, err := svc.MemberReport(ctx, nil)
		testutil.AssertNoError(t, err)

		if len(report) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(report))
		}
		if report[0].ID != an.ID || len(report[0].Contributions) != 3 || report[0].DebtAmount != 0 {
			t.Errorf("unexpected row for An: %+v", report[0])
		}
		if report[1].ID != binh.ID {
			t.Fatalf("expected Binh second, got %+v", report[1])
		}
		if report[1].DebtAmount != 250000 {
			t.Errorf("expected Binh to owe 250000, got %d", report[1].DebtAmount)
		}
		if report[1].DebtDescription != debt.Description {
			t.Errorf("expected description %q, got %q", debt.Description, report[1].DebtDescription)
		}
	})

	t.Run("matches_user_balance", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := NewBalanceService(store, testPolicy())
		user := seedMember(t, store, "2024-01")
		seedPaid(t, store, user.ID, "2024-01")
		seedDebt(t, store, user.ID, 30000)

		report, err := svc.MemberReport(ctx, nil)
		testutil.AssertNoError(t, err)
		b, err := svc.UserBalance(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)

		if len(report) != 1 || report[0].DebtAmount != -b.DebtBalance {
			t.Errorf("expected report debt %d, got %+v", -b.DebtBalance, report)
		}
	})
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := repository.NewGormStore(db)
	svc := NewBalanceService(store, testPolicy())
	txSvc := NewTransactionService(store)

	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestFundEntries(t, db, user.ID, testFee, "2024-01", "2024-02")
	_, err := txSvc.CreateExpense(ctx, 30000, "Cake", time.Now())
	testutil.AssertNoError(t, err)
	testutil.CreateTestTransaction(t, db, nil, models.TransactionTypeExpense, models.TransactionStatusFailed, 99999)

	stats, err := svc.DashboardStats(ctx)
	testutil.AssertNoError(t, err)

	if stats.TotalIncome != 200000 {
		t.Errorf("expected income 200000, got %d", stats.TotalIncome)
	}
	if stats.TotalExpense != 30000 {
		t.Errorf("expected expense 30000, got %d", stats.TotalExpense)
	}
	if stats.FundBalance != 170000 {
		t.Errorf("expected balance 170000, got %d", stats.FundBalance)
	}
}
