package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/pagination"
	"treasurer/internal/services"
)

func setupLedgerRouter(debts *DebtHandler, txs *TransactionHandler, reports *ReportHandler) *gin.Engine {
	r := gin.New()
	r.POST("/debts", debts.CreateDebt)
	r.GET("/debts", debts.ListDebts)
	r.GET("/transactions", txs.ListTransactions)
	r.GET("/transactions/:id", txs.GetTransaction)
	r.POST("/transactions/expense", txs.CreateExpense)
	r.GET("/reports/members", reports.MemberReport)
	r.GET("/reports/dashboard", reports.Dashboard)
	return r
}

func newLedgerRouter(debtSvc services.DebtServicer, txSvc services.TransactionServicer, balanceSvc services.BalanceServicer, audit services.AuditServicer) *gin.Engine {
	return setupLedgerRouter(NewDebtHandler(debtSvc, audit), NewTransactionHandler(txSvc, audit), NewReportHandler(balanceSvc))
}

func TestDebtHandler(t *testing.T) {
	t.Run("create returns 201 and audits", func(t *testing.T) {
		audit := &mockAuditService{}
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, &mockBalanceService{}, audit)

		rec := doRequest(r, "POST", "/debts", `{"user_id":"`+testUserID+`","amount":60000,"type":"PENALTY","description":"Late"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(audit.calls) != 1 || audit.calls[0].action != "CREATE_DEBT" {
			t.Errorf("unexpected audit calls: %+v", audit.calls)
		}
	})

	t.Run("create rejects unknown type", func(t *testing.T) {
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/debts", `{"user_id":"`+testUserID+`","amount":60000,"type":"LOAN"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("create rejects non-positive amount", func(t *testing.T) {
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/debts", `{"user_id":"`+testUserID+`","amount":-1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("list passes filters", func(t *testing.T) {
		var gotUser string
		var gotPaid *bool
		debtSvc := &mockDebtService{
			listDebtsFn: func(userID string, isFullPaid *bool) ([]models.Debt, error) {
				gotUser, gotPaid = userID, isFullPaid
				return []models.Debt{}, nil
			},
		}
		r := newLedgerRouter(debtSvc, &mockTransactionService{}, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/debts?user_id="+testUserID+"&is_full_paid=false", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotUser != testUserID || gotPaid == nil || *gotPaid {
			t.Errorf("unexpected filter user=%q paid=%v", gotUser, gotPaid)
		}
	})

	t.Run("list rejects bad user id", func(t *testing.T) {
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/debts?user_id=abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestTransactionHandler(t *testing.T) {
	t.Run("list parses filters", func(t *testing.T) {
		var got services.TransactionFilter
		var gotPage pagination.PageRequest
		txSvc := &mockTransactionService{
			listFn: func(filter services.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
				got, gotPage = filter, page
				resp := pagination.NewPageResponse([]models.Transaction{}, 2, 10, 0)
				return &resp, nil
			},
		}
		r := newLedgerRouter(&mockDebtService{}, txSvc, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/transactions?page=2&page_size=10&type=INCOME&status=FAILED&from_date=2024-01-01&search=dues", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Type != models.TransactionTypeIncome || got.Status != models.TransactionStatusFailed || got.Search != "dues" {
			t.Errorf("unexpected filter %+v", got)
		}
		if got.FromDate == nil || got.FromDate.Year() != 2024 {
			t.Errorf("expected from_date parsed, got %v", got.FromDate)
		}
		if gotPage.Page != 2 || gotPage.PageSize != 10 {
			t.Errorf("unexpected page %+v", gotPage)
		}
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/transactions?status=DONE", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("list rejects oversized page", func(t *testing.T) {
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/transactions?page_size=1000", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("get returns 404", func(t *testing.T) {
		txSvc := &mockTransactionService{
			getFn: func(string) (*models.Transaction, error) { return nil, apperrors.ErrTransactionNotFound },
		}
		r := newLedgerRouter(&mockDebtService{}, txSvc, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/transactions/"+testUserID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, rec, "TRANSACTION_NOT_FOUND")
	})

	t.Run("expense parses date and audits", func(t *testing.T) {
		audit := &mockAuditService{}
		var gotDate time.Time
		txSvc := &mockTransactionService{
			createExpenseFn: func(amount int64, description string, date time.Time) (*models.Transaction, error) {
				gotDate = date
				return &models.Transaction{Base: models.Base{ID: "tx-1"}, Amount: amount}, nil
			},
		}
		r := newLedgerRouter(&mockDebtService{}, txSvc, &mockBalanceService{}, audit)

		rec := doRequest(r, "POST", "/transactions/expense", `{"amount":30000,"description":"Cake","date":"2024-03-02"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotDate.Day() != 2 || gotDate.Month() != time.March {
			t.Errorf("expected 2024-03-02, got %v", gotDate)
		}
		if len(audit.calls) != 1 || audit.calls[0].action != "CREATE_EXPENSE" {
			t.Errorf("unexpected audit calls: %+v", audit.calls)
		}
	})

	t.Run("expense rejects bad date", func(t *testing.T) {
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, &mockBalanceService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/transactions/expense", `{"amount":30000,"description":"Cake","date":"March 2"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestReportHandler(t *testing.T) {
	t.Run("member report uses camelCase", func(t *testing.T) {
		balanceSvc := &mockBalanceService{
			memberReportFn: func(*int) ([]services.MemberReport, error) {
				return []services.MemberReport{{ID: testUserID, Name: "An", JoinedPeriod: "2024-01", Contributions: []string{"2024-01"}, DebtAmount: 200000}}, nil
			},
		}
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, balanceSvc, &mockAuditService{})

		rec := doRequest(r, "GET", "/reports/members", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		for _, key := range []string{`"joinedPeriod":"2024-01"`, `"debtAmount":200000`, `"debtDescription":""`} {
			if !contains(body, key) {
				t.Errorf("expected %s in %s", key, body)
			}
		}
	})

	t.Run("dashboard", func(t *testing.T) {
		balanceSvc := &mockBalanceService{
			dashboardFn: func() (*services.DashboardStats, error) {
				return &services.DashboardStats{TotalIncome: 200000, TotalExpense: 30000, FundBalance: 170000}, nil
			},
		}
		r := newLedgerRouter(&mockDebtService{}, &mockTransactionService{}, balanceSvc, &mockAuditService{})

		rec := doRequest(r, "GET", "/reports/dashboard", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["fund_balance"].(float64) != 170000 {
			t.Error("expected fund_balance 170000")
		}
	})
}
