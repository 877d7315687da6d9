package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/pagination"
	"treasurer/internal/services"
	"treasurer/internal/validator"
)

const testUserID = "0190a8b0-0000-7000-8000-000000000001"

// --- mock services ---

type mockUserService struct {
	createUserFn func(name string, email *string, joinedPeriod string) (*models.User, error)
	listUsersFn  func(activeOnly bool) ([]models.User, error)
}

func (m *mockUserService) CreateUser(_ context.Context, name string, email *string, joinedPeriod string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(name, email, joinedPeriod)
	}
	return &models.User{Base: models.Base{ID: testUserID}, Name: name}, nil
}

func (m *mockUserService) GetUser(_ context.Context, id string) (*models.User, error) {
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) ListUsers(_ context.Context, activeOnly bool) ([]models.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(activeOnly)
	}
	return []models.User{}, nil
}

func (m *mockUserService) FindActiveByName(_ context.Context, name string) (*models.User, error) {
	return &models.User{Name: name}, nil
}

var _ services.UserServicer = (*mockUserService)(nil)

type mockDebtService struct {
	createDebtFn func(userID string, amount int64, debtType models.DebtType, description string) (*models.Debt, error)
	listDebtsFn  func(userID string, isFullPaid *bool) ([]models.Debt, error)
}

func (m *mockDebtService) CreateDebt(_ context.Context, userID string, amount int64, debtType models.DebtType, description string) (*models.Debt, error) {
	if m.createDebtFn != nil {
		return m.createDebtFn(userID, amount, debtType, description)
	}
	return &models.Debt{UserID: userID, Amount: amount, Type: debtType}, nil
}

func (m *mockDebtService) GetDebt(_ context.Context, id string) (*models.Debt, error) {
	return &models.Debt{Base: models.Base{ID: id}}, nil
}

func (m *mockDebtService) ListDebts(_ context.Context, userID string, isFullPaid *bool) ([]models.Debt, error) {
	if m.listDebtsFn != nil {
		return m.listDebtsFn(userID, isFullPaid)
	}
	return []models.Debt{}, nil
}

var _ services.DebtServicer = (*mockDebtService)(nil)

type mockTransactionService struct {
	listFn          func(filter services.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	getFn           func(id string) (*models.Transaction, error)
	createExpenseFn func(amount int64, description string, date time.Time) (*models.Transaction, error)
}

func (m *mockTransactionService) ListTransactions(_ context.Context, filter services.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	if m.listFn != nil {
		return m.listFn(filter, page)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return &models.Transaction{Base: models.Base{ID: id}}, nil
}

func (m *mockTransactionService) CreateExpense(_ context.Context, amount int64, description string, date time.Time) (*models.Transaction, error) {
	if m.createExpenseFn != nil {
		return m.createExpenseFn(amount, description, date)
	}
	return &models.Transaction{Amount: amount, Description: description, TransactionDate: date}, nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

type mockBalanceService struct {
	userBalanceFn  func(userID string, year *int) (*services.UserBalance, error)
	memberReportFn func(year *int) ([]services.MemberReport, error)
	dashboardFn    func() (*services.DashboardStats, error)
}

func (m *mockBalanceService) UserBalance(_ context.Context, userID string, year *int) (*services.UserBalance, error) {
	if m.userBalanceFn != nil {
		return m.userBalanceFn(userID, year)
	}
	return &services.UserBalance{UserID: userID}, nil
}

func (m *mockBalanceService) MemberReport(_ context.Context, year *int) ([]services.MemberReport, error) {
	if m.memberReportFn != nil {
		return m.memberReportFn(year)
	}
	return []services.MemberReport{}, nil
}

func (m *mockBalanceService) DashboardStats(_ context.Context) (*services.DashboardStats, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn()
	}
	return &services.DashboardStats{}, nil
}

var _ services.BalanceServicer = (*mockBalanceService)(nil)

type mockPaymentService struct {
	createLinkFn func(userID string, amount int64, description string) (*services.PaymentLinkResult, error)
	webhookFn    func(body []byte) (*services.AllocationResult, error)
	manualFn     func(req services.ManualPaymentRequest) (*services.AllocationResult, error)
}

func (m *mockPaymentService) CreatePaymentLink(_ context.Context, userID string, amount int64, description string) (*services.PaymentLinkResult, error) {
	if m.createLinkFn != nil {
		return m.createLinkFn(userID, amount, description)
	}
	return &services.PaymentLinkResult{}, nil
}

func (m *mockPaymentService) HandleWebhook(_ context.Context, body []byte) (*services.AllocationResult, error) {
	if m.webhookFn != nil {
		return m.webhookFn(body)
	}
	return nil, nil
}

func (m *mockPaymentService) RecordManualPayment(_ context.Context, req services.ManualPaymentRequest) (*services.AllocationResult, error) {
	if m.manualFn != nil {
		return m.manualFn(req)
	}
	return &services.AllocationResult{Transaction: &models.Transaction{}}, nil
}

var _ services.PaymentServicer = (*mockPaymentService)(nil)

type mockExtractionQueue struct {
	enqueueFn func(result services.ExtractionResult) (*models.Transaction, error)
}

func (m *mockExtractionQueue) Enqueue(_ context.Context, result services.ExtractionResult) (*models.Transaction, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(result)
	}
	return &models.Transaction{Status: models.TransactionStatusPending}, nil
}

var _ services.ExtractionQueuer = (*mockExtractionQueue)(nil)

type auditCall struct {
	action     string
	resourceID string
}

type mockAuditService struct {
	calls []auditCall
}

func (m *mockAuditService) Log(_ context.Context, action, _, resourceID, _ string, _ map[string]any) {
	m.calls = append(m.calls, auditCall{action: action, resourceID: resourceID})
}

func (m *mockAuditService) List(_ context.Context, _ string) ([]models.AuditLog, error) {
	return nil, nil
}

var _ services.AuditServicer = (*mockAuditService)(nil)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, code string) {
	t.Helper()
	result := parseJSON(t, rec)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
