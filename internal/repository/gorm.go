package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"treasurer/internal/models"
	"treasurer/internal/pagination"

	"gorm.io/gorm"
)

// gormStore implements Store over a *gorm.DB. Inside InTx, db is the
// transaction handle so every repository call joins the same unit of work.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by gorm. The DB should be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Ledger() LedgerStore { return &gormLedger{db: s.db} }
func (s *gormStore) Debts() DebtRepository { return &gormDebts{db: s.db} }
func (s *gormStore) Users() UserRepository { return &gormUsers{db: s.db} }
func (s *gormStore) Outbox() OutboxRepository { return &gormOutbox{db: s.db} }
func (s *gormStore) Audit() AuditRepository { return &gormAudit{db: s.db} }

func (s *gormStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// isUniqueViolation covers drivers that do not translate errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type gormLedger struct {
	db *gorm.DB
}

func (r *gormLedger) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Omit("Entries").Create(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCorrelation
		}
		return err
	}
	return nil
}

func (r *gormLedger) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

func (r *gormLedger) GetTransactionByOrderCode(ctx context.Context, orderCode string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_code = ?", orderCode).
		Order(fmt.Sprintf("CASE WHEN status = '%s' THEN 1 ELSE 0 END", models.TransactionStatusFailed)).
		Order("created_at DESC").
		Order("id DESC").
		Take(&tx).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

func (r *gormLedger) TransitionStatus(ctx context.Context, id string, from, to models.TransactionStatus, update StatusUpdate) error {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if update.UserID != nil {
		values["user_id"] = *update.UserID
	}
	if update.ErrMessage != nil {
		values["err_message"] = *update.ErrMessage
	}
	if update.FailureClass != nil {
		values["failure_class"] = *update.FailureClass
	}
	if update.UnallocatedAmount != nil {
		values["unallocated_amount"] = *update.UnallocatedAmount
	}
	if update.ProcessingStartedAt != nil {
		values["processing_started_at"] = *update.ProcessingStartedAt
	}

	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *gormLedger) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error) {
	filter.Page.Defaults()

	q := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("amount > 0")
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("transaction_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("transaction_date <= ?", *filter.To)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []models.Transaction
	if err := q.Scopes(pagination.Paginate(filter.Page)).
		Order("transaction_date DESC").Order("id DESC").
		Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *gormLedger) ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND processing_started_at < ?", models.TransactionStatusProcessing, startedBefore).
		Order("processing_started_at ASC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (r *gormLedger) SumTransactions(ctx context.Context, txType models.TransactionType, status models.TransactionStatus) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("type = ? AND status = ?", txType, status).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *gormLedger) CreateEntries(ctx context.Context, entries []models.TransactionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&entries).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrPeriodConflict
		}
		return err
	}
	return nil
}

func (r *gormLedger) ListEntries(ctx context.Context, filter EntryFilter) ([]models.TransactionEntry, error) {
	q := r.db.WithContext(ctx).Model(&models.TransactionEntry{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.TransactionID != "" {
		q = q.Where("transaction_id = ?", filter.TransactionID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Year != nil {
		q = q.Where("period_month LIKE ?", fmt.Sprintf("%04d-%%", *filter.Year))
	}

	var entries []models.TransactionEntry
	if err := q.Order("period_month ASC").Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *gormLedger) LatestFundPeriod(ctx context.Context, userID string) (string, error) {
	var periods []string
	err := r.db.WithContext(ctx).Model(&models.TransactionEntry{}).
		Where("user_id = ? AND type = ?", userID, models.EntryTypeFund).
		Order("period_month DESC").
		Limit(1).
		Pluck("period_month", &periods).Error
	if err != nil {
		return "", err
	}
	if len(periods) == 0 {
		return "", nil
	}
	return periods[0], nil
}

func (r *gormLedger) SumEntries(ctx context.Context, entryType models.EntryType) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.TransactionEntry{}).
		Where("type = ?", entryType).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

type gormDebts struct {
	db *gorm.DB
}

func (r *gormDebts) CreateDebt(ctx context.Context, debt *models.Debt) error {
	return r.db.WithContext(ctx).Create(debt).Error
}

func (r *gormDebts) GetDebt(ctx context.Context, id string) (*models.Debt, error) {
	var debt models.Debt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&debt).Error; err != nil {
		return nil, notFound(err)
	}
	return &debt, nil
}

func (r *gormDebts) OldestUnpaid(ctx context.Context, userID string) (*models.Debt, error) {
	var debts []models.Debt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_full_paid = ?", userID, false).
		Order("created_at ASC").Order("id ASC").
		Limit(1).
		Find(&debts).Error
	if err != nil {
		return nil, err
	}
	if len(debts) == 0 {
		return nil, nil
	}
	return &debts[0], nil
}

func (r *gormDebts) MarkFullPaid(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.Debt{}).
		Where("id = ? AND is_full_paid = ?", id, false).
		Updates(map[string]interface{}{"is_full_paid": true, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDebtSettled
	}
	return nil
}

func (r *gormDebts) ListDebts(ctx context.Context, filter DebtFilter) ([]models.Debt, error) {
	q := r.db.WithContext(ctx).Model(&models.Debt{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.IsFullPaid != nil {
		q = q.Where("is_full_paid = ?", *filter.IsFullPaid)
	}

	var debts []models.Debt
	if err := q.Order("created_at ASC").Order("id ASC").Find(&debts).Error; err != nil {
		return nil, err
	}
	return debts, nil
}

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *gormUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *gormUsers) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var users []models.User
	if err := q.Order("name ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

type gormOutbox struct {
	db *gorm.DB
}

func (r *gormOutbox) Enqueue(ctx context.Context, msg *models.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = models.OutboxStatusPending
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *gormOutbox) ListPending(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	var msgs []models.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *gormOutbox) MarkSent(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ? AND status = ?", id, models.OutboxStatusPending).
		Updates(map[string]interface{}{"status": models.OutboxStatusSent, "updated_at": time.Now()}).Error
}

func (r *gormOutbox) MarkAttemptFailed(ctx context.Context, id, lastError string, maxRetries int) error {
	return r.db.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ? AND status = ?", id, models.OutboxStatusPending).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  lastError,
			"status":      gorm.Expr("CASE WHEN retry_count + 1 >= ? THEN ? ELSE status END", maxRetries, models.OutboxStatusFailed),
			"updated_at":  time.Now(),
		}).Error
}

type gormAudit struct {
	db *gorm.DB
}

func (r *gormAudit) Record(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormAudit) ListByResource(ctx context.Context, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at ASC").Order("id ASC").
		Find(&logs).Error
	return logs, err
}
