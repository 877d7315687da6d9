package services

import (
	"context"
	"time"

	"treasurer/internal/models"
	"treasurer/internal/pagination"
	"treasurer/internal/period"
	"treasurer/internal/repository"
)

// UserServicer defines the contract for member management.
type UserServicer interface {
	CreateUser(ctx context.Context, name string, email *string, joinedPeriod string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error)
	// FindActiveByName resolves a payer name to exactly one active member,
	// ignoring case and surrounding whitespace.
	FindActiveByName(ctx context.Context, name string) (*models.User, error)
}

// DebtServicer defines the contract for ad-hoc debts.
type DebtServicer interface {
	CreateDebt(ctx context.Context, userID string, amount int64, debtType models.DebtType, description string) (*models.Debt, error)
	GetDebt(ctx context.Context, id string) (*models.Debt, error)
	ListDebts(ctx context.Context, userID string, isFullPaid *bool) ([]models.Debt, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	UserID   string
	Type     models.TransactionType
	Status   models.TransactionStatus
	FromDate *time.Time
	ToDate   *time.Time
	Search   string
}

// TransactionServicer defines the contract for reading the ledger and
// recording expenses.
type TransactionServicer interface {
	ListTransactions(ctx context.Context, filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	// GetTransaction returns the transaction with its allocation entries.
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	CreateExpense(ctx context.Context, amount int64, description string, date time.Time) (*models.Transaction, error)
}

// PeriodSequencer answers dues-period questions for a member.
type PeriodSequencer interface {
	NextUnpaidPeriod(ctx context.Context, userID string, eventDate time.Time) (period.Month, error)
	PeriodsCoveredBy(ctx context.Context, userID string, amount, fee int64, eventDate time.Time, current period.Month) ([]period.Month, int64, error)
}

// AllocationRequest is one inbound payment event.
type AllocationRequest struct {
	UserID        string
	Amount        int64
	CorrelationID string
	EventDate     time.Time
	Description   string
	Source        models.TransactionSource
}

// AllocationResult is the outcome of an allocation. Duplicate is set when the
// correlation id had already completed and nothing was written.
type AllocationResult struct {
	Transaction *models.Transaction       `json:"transaction"`
	Entries     []models.TransactionEntry `json:"entries"`
	Remainder   int64                     `json:"remainder"`
	Duplicate   bool                      `json:"duplicate"`
}

// AllocationServicer splits a payment into dues and debt entries. It is the
// only writer of FUND and DEBT_PAYMENT entries.
type AllocationServicer interface {
	Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error)
}

// UserBalance is the derived dues and debt position of one member.
type UserBalance struct {
	UserID          string   `json:"user_id"`
	Year            int      `json:"year"`
	PaidPeriods     []string `json:"paid_periods"`
	TotalFundPaid   int64    `json:"total_fund_paid"`
	DuesOwed        int64    `json:"dues_owed"`
	DebtBalance     int64    `json:"debt_balance"`
	DebtDescription string   `json:"debt_description"`
}

// MemberReport is one row of the member contribution report.
type MemberReport struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	JoinedPeriod    string   `json:"joinedPeriod"`
	Contributions   []string `json:"contributions"`
	DebtAmount      int64    `json:"debtAmount"`
	DebtDescription string   `json:"debtDescription"`
}

// DashboardStats summarizes the fund.
type DashboardStats struct {
	TotalIncome  int64 `json:"total_income"`
	TotalExpense int64 `json:"total_expense"`
	FundBalance  int64 `json:"fund_balance"`
}

// BalanceServicer derives balances from the ledger; nothing it returns is stored.
type BalanceServicer interface {
	UserBalance(ctx context.Context, userID string, year *int) (*UserBalance, error)
	MemberReport(ctx context.Context, year *int) ([]MemberReport, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

// PaymentLinkResult is returned when a checkout link is created.
type PaymentLinkResult struct {
	Transaction *models.Transaction `json:"transaction"`
	CheckoutURL string              `json:"checkout_url"`
	OrderCode   string              `json:"order_code"`
}

// ManualPaymentRequest is a payment entered by a treasurer.
type ManualPaymentRequest struct {
	UserID        string
	Amount        int64
	CorrelationID string
	EventDate     time.Time
	Description   string
}

// PaymentServicer defines the contract for the payment entry points that
// feed the allocation engine.
type PaymentServicer interface {
	CreatePaymentLink(ctx context.Context, userID string, amount int64, description string) (*PaymentLinkResult, error)
	// HandleWebhook verifies a gateway callback and allocates a paid order.
	// A nil result with a nil error means the callback was acknowledged
	// without allocating (for example a test ping).
	HandleWebhook(ctx context.Context, body []byte) (*AllocationResult, error)
	RecordManualPayment(ctx context.Context, req ManualPaymentRequest) (*AllocationResult, error)
}

// ExtractionResult is a payment read from a transfer receipt. The payer is
// only known by name.
type ExtractionResult struct {
	PayerName     string
	Amount        int64
	EventDate     time.Time
	CorrelationID string
	Description   string
}

// ExtractionQueuer accepts extraction results for asynchronous allocation.
type ExtractionQueuer interface {
	Enqueue(ctx context.Context, result ExtractionResult) (*models.Transaction, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, action, resourceType, resourceID, ipAddress string, changes map[string]any)
	List(ctx context.Context, resourceID string) ([]models.AuditLog, error)
}

// DuesPolicy holds the fund rules shared by allocation and reporting.
type DuesPolicy struct {
	MonthlyFee  int64
	AdminUserID string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (p DuesPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p DuesPolicy) currentMonth() period.Month {
	return period.MonthOf(p.now())
}

// asRepoFilter keeps the service filter independent of the store layout.
func (f TransactionFilter) asRepoFilter(page pagination.PageRequest) repository.TransactionFilter {
	return repository.TransactionFilter{
		UserID: f.UserID,
		Type:   f.Type,
		Status: f.Status,
		From:   f.FromDate,
		To:     f.ToDate,
		Search: f.Search,
		Page:   page,
	}
}
