package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"treasurer/internal/models"
	"treasurer/internal/uuid"
)

// memState is one consistent copy of every table.
type memState struct {
	users        map[string]models.User
	transactions map[string]models.Transaction
	entries      map[string]models.TransactionEntry
	debts        map[string]models.Debt
	outbox       map[string]models.OutboxMessage
	audit        []models.AuditLog

	// insertion order, for stable listings
	userOrder   []string
	txOrder     []string
	entryOrder  []string
	debtOrder   []string
	outboxOrder []string
}

func newMemState() *memState {
	return &memState{
		users:        make(map[string]models.User),
		transactions: make(map[string]models.Transaction),
		entries:      make(map[string]models.TransactionEntry),
		debts:        make(map[string]models.Debt),
		outbox:       make(map[string]models.OutboxMessage),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		users:        make(map[string]models.User, len(s.users)),
		transactions: make(map[string]models.Transaction, len(s.transactions)),
		entries:      make(map[string]models.TransactionEntry, len(s.entries)),
		debts:        make(map[string]models.Debt, len(s.debts)),
		outbox:       make(map[string]models.OutboxMessage, len(s.outbox)),
		audit:        append([]models.AuditLog(nil), s.audit...),
		userOrder:    append([]string(nil), s.userOrder...),
		txOrder:      append([]string(nil), s.txOrder...),
		entryOrder:   append([]string(nil), s.entryOrder...),
		debtOrder:    append([]string(nil), s.debtOrder...),
		outboxOrder:  append([]string(nil), s.outboxOrder...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.debts {
		c.debts[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

// memOp is a single write. It validates its constraints against the state it
// is applied to, so it can be replayed on commit against newer state.
type memOp func(s *memState) error

// MemoryStore is an in-memory Store with optimistic transactions: InTx works
// on a snapshot and, on commit, replays its writes against the latest
// committed state, failing with the same conflict errors as the SQL schema
// (FUND period uniqueness, settle-once debts, conditional status updates).
type MemoryStore struct {
	mu      sync.Mutex
	state   *memState
	writes  int64
	faults  []error
	nowFunc func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState(), nowFunc: time.Now}
}

// Writes returns the number of committed write operations.
func (m *MemoryStore) Writes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailNextCommits makes the next len(errs) InTx commits fail with the given
// errors, in order, without applying their writes.
func (m *MemoryStore) FailNextCommits(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, errs...)
}

func (m *MemoryStore) Ledger() LedgerStore { return &memLedger{memView{m, nil}} }
func (m *MemoryStore) Debts() DebtRepository { return &memDebts{memView{m, nil}} }
func (m *MemoryStore) Users() UserRepository { return &memUsers{memView{m, nil}} }
func (m *MemoryStore) Outbox() OutboxRepository { return &memOutbox{memView{m, nil}} }
func (m *MemoryStore) Audit() AuditRepository { return &memAudit{memView{m, nil}} }

func (m *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	tx := &memTx{store: m, snapshot: m.state.clone()}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	return m.commit(tx.ops)
}

func (m *MemoryStore) commit(ops []memOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.faults) > 0 {
		err := m.faults[0]
		m.faults = m.faults[1:]
		return err
	}

	next := m.state.clone()
	for _, op := range ops {
		if err := op(next); err != nil {
			return err
		}
	}
	m.state = next
	m.writes += int64(len(ops))
	return nil
}

// memTx is the Store handed to InTx callbacks.
type memTx struct {
	store    *MemoryStore
	snapshot *memState
	ops      []memOp
}

func (t *memTx) Ledger() LedgerStore { return &memLedger{memView{t.store, t}} }
func (t *memTx) Debts() DebtRepository { return &memDebts{memView{t.store, t}} }
func (t *memTx) Users() UserRepository { return &memUsers{memView{t.store, t}} }
func (t *memTx) Outbox() OutboxRepository { return &memOutbox{memView{t.store, t}} }
func (t *memTx) Audit() AuditRepository { return &memAudit{memView{t.store, t}} }

// InTx on a transaction joins it.
func (t *memTx) InTx(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

// memView routes reads and writes either to the committed state (tx == nil)
// or to a transaction's snapshot.
type memView struct {
	store *MemoryStore
	tx    *memTx
}

func (v memView) read(fn func(s *memState)) {
	if v.tx != nil {
		fn(v.tx.snapshot)
		return
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	fn(v.store.state)
}

func (v memView) write(ctx context.Context, op memOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.tx != nil {
		if err := op(v.tx.snapshot); err != nil {
			return err
		}
		v.tx.ops = append(v.tx.ops, op)
		return nil
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if err := op(v.store.state); err != nil {
		return err
	}
	v.store.writes++
	return nil
}

func (v memView) now() time.Time {
	return v.store.nowFunc()
}

func stamp(base *models.Base, now time.Time) {
	if base.ID == "" {
		base.ID = uuid.New()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

type memLedger struct{ memView }

func (r *memLedger) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	stamp(&tx.Base, r.now())
	row := *tx
	row.Entries = nil
	return r.write(ctx, func(s *memState) error {
		if _, ok := s.transactions[row.ID]; ok {
			return ErrDuplicate
		}
		if row.OrderCode != nil {
			for _, existing := range s.transactions {
				if existing.OrderCode != nil && *existing.OrderCode == *row.OrderCode &&
					existing.Status != models.TransactionStatusFailed {
					return ErrDuplicateCorrelation
				}
			}
		}
		s.transactions[row.ID] = row
		s.txOrder = append(s.txOrder, row.ID)
		return nil
	})
}

func (r *memLedger) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var (
		tx models.Transaction
		ok bool
	)
	r.read(func(s *memState) { tx, ok = s.transactions[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (r *memLedger) GetTransactionByOrderCode(ctx context.Context, orderCode string) (*models.Transaction, error) {
	var found *models.Transaction
	r.read(func(s *memState) {
		for _, id := range s.txOrder {
			tx := s.transactions[id]
			if tx.OrderCode == nil || *tx.OrderCode != orderCode {
				continue
			}
			// txOrder is insertion order, so a later FAILED row replaces an
			// earlier one and a live row wins outright.
			found = &tx
			if tx.Status != models.TransactionStatusFailed {
				return
			}
		}
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *memLedger) TransitionStatus(ctx context.Context, id string, from, to models.TransactionStatus, update StatusUpdate) error {
	now := r.now()
	return r.write(ctx, func(s *memState) error {
		tx, ok := s.transactions[id]
		if !ok || tx.Status != from {
			return ErrStatusConflict
		}
		tx.Status = to
		tx.UpdatedAt = now
		if update.UserID != nil {
			userID := *update.UserID
			tx.UserID = &userID
		}
		if update.ErrMessage != nil {
			tx.ErrMessage = *update.ErrMessage
		}
		if update.FailureClass != nil {
			tx.FailureClass = *update.FailureClass
		}
		if update.UnallocatedAmount != nil {
			tx.UnallocatedAmount = *update.UnallocatedAmount
		}
		if update.ProcessingStartedAt != nil {
			t := *update.ProcessingStartedAt
			tx.ProcessingStartedAt = &t
		}
		s.transactions[id] = tx
		return nil
	})
}

func (r *memLedger) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error) {
	filter.Page.Defaults()
	search := strings.ToLower(filter.Search)

	var matched []models.Transaction
	r.read(func(s *memState) {
		for _, id := range s.txOrder {
			tx := s.transactions[id]
			if tx.Amount <= 0 {
				continue
			}
			if filter.UserID != "" && (tx.UserID == nil || *tx.UserID != filter.UserID) {
				continue
			}
			if filter.Type != "" && tx.Type != filter.Type {
				continue
			}
			if filter.Status != "" && tx.Status != filter.Status {
				continue
			}
			if filter.From != nil && tx.TransactionDate.Before(*filter.From) {
				continue
			}
			if filter.To != nil && tx.TransactionDate.After(*filter.To) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(tx.Description), search) {
				continue
			}
			matched = append(matched, tx)
		}
	})

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].TransactionDate.Equal(matched[j].TransactionDate) {
			return matched[i].TransactionDate.After(matched[j].TransactionDate)
		}
		return matched[i].ID > matched[j].ID
	})

	start, end := filter.Page.Bounds(len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (r *memLedger) ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]models.Transaction, error) {
	var stale []models.Transaction
	r.read(func(s *memState) {
		for _, id := range s.txOrder {
			tx := s.transactions[id]
			if tx.Status == models.TransactionStatusProcessing &&
				tx.ProcessingStartedAt != nil && tx.ProcessingStartedAt.Before(startedBefore) {
				stale = append(stale, tx)
			}
		}
	})
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].ProcessingStartedAt.Before(*stale[j].ProcessingStartedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *memLedger) SumTransactions(ctx context.Context, txType models.TransactionType, status models.TransactionStatus) (int64, error) {
	var total int64
	r.read(func(s *memState) {
		for _, tx := range s.transactions {
			if tx.Type == txType && tx.Status == status {
				total += tx.Amount
			}
		}
	})
	return total, nil
}

func (r *memLedger) CreateEntries(ctx context.Context, entries []models.TransactionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := r.now()
	for i := range entries {
		stamp(&entries[i].Base, now)
	}
	rows := append([]models.TransactionEntry(nil), entries...)
	return r.write(ctx, func(s *memState) error {
		for i, row := range rows {
			if row.Type != models.EntryTypeFund {
				continue
			}
			for _, existing := range s.entries {
				if existing.Type == models.EntryTypeFund && existing.UserID == row.UserID && existing.PeriodMonth == row.PeriodMonth {
					return ErrPeriodConflict
				}
			}
			for _, other := range rows[:i] {
				if other.Type == models.EntryTypeFund && other.UserID == row.UserID && other.PeriodMonth == row.PeriodMonth {
					return ErrPeriodConflict
				}
			}
		}
		for _, row := range rows {
			s.entries[row.ID] = row
			s.entryOrder = append(s.entryOrder, row.ID)
		}
		return nil
	})
}

func (r *memLedger) ListEntries(ctx context.Context, filter EntryFilter) ([]models.TransactionEntry, error) {
	var prefix string
	if filter.Year != nil {
		prefix = fmt.Sprintf("%04d-", *filter.Year)
	}

	var entries []models.TransactionEntry
	r.read(func(s *memState) {
		for _, id := range s.entryOrder {
			e := s.entries[id]
			if filter.UserID != "" && e.UserID != filter.UserID {
				continue
			}
			if filter.TransactionID != "" && e.TransactionID != filter.TransactionID {
				continue
			}
			if filter.Type != "" && e.Type != filter.Type {
				continue
			}
			if prefix != "" && !strings.HasPrefix(e.PeriodMonth, prefix) {
				continue
			}
			entries = append(entries, e)
		}
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PeriodMonth < entries[j].PeriodMonth
	})
	return entries, nil
}

func (r *memLedger) LatestFundPeriod(ctx context.Context, userID string) (string, error) {
	var latest string
	r.read(func(s *memState) {
		for _, e := range s.entries {
			if e.Type == models.EntryTypeFund && e.UserID == userID && e.PeriodMonth > latest {
				latest = e.PeriodMonth
			}
		}
	})
	return latest, nil
}

func (r *memLedger) SumEntries(ctx context.Context, entryType models.EntryType) (int64, error) {
	var total int64
	r.read(func(s *memState) {
		for _, e := range s.entries {
			if e.Type == entryType {
				total += e.Amount
			}
		}
	})
	return total, nil
}

type memDebts struct{ memView }

func (r *memDebts) CreateDebt(ctx context.Context, debt *models.Debt) error {
	stamp(&debt.Base, r.now())
	row := *debt
	return r.write(ctx, func(s *memState) error {
		if _, ok := s.debts[row.ID]; ok {
			return ErrDuplicate
		}
		s.debts[row.ID] = row
		s.debtOrder = append(s.debtOrder, row.ID)
		return nil
	})
}

func (r *memDebts) GetDebt(ctx context.Context, id string) (*models.Debt, error) {
	var (
		debt models.Debt
		ok   bool
	)
	r.read(func(s *memState) { debt, ok = s.debts[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &debt, nil
}

func (r *memDebts) OldestUnpaid(ctx context.Context, userID string) (*models.Debt, error) {
	var found *models.Debt
	r.read(func(s *memState) {
		for _, id := range s.debtOrder {
			d := s.debts[id]
			if d.UserID == userID && !d.IsFullPaid {
				found = &d
				return
			}
		}
	})
	return found, nil
}

func (r *memDebts) MarkFullPaid(ctx context.Context, id string) error {
	now := r.now()
	return r.write(ctx, func(s *memState) error {
		d, ok := s.debts[id]
		if !ok {
			return ErrNotFound
		}
		if d.IsFullPaid {
			return ErrDebtSettled
		}
		d.IsFullPaid = true
		d.UpdatedAt = now
		s.debts[id] = d
		return nil
	})
}

func (r *memDebts) ListDebts(ctx context.Context, filter DebtFilter) ([]models.Debt, error) {
	var debts []models.Debt
	r.read(func(s *memState) {
		for _, id := range s.debtOrder {
			d := s.debts[id]
			if filter.UserID != "" && d.UserID != filter.UserID {
				continue
			}
			if filter.IsFullPaid != nil && d.IsFullPaid != *filter.IsFullPaid {
				continue
			}
			debts = append(debts, d)
		}
	})
	return debts, nil
}

type memUsers struct{ memView }

func (r *memUsers) CreateUser(ctx context.Context, user *models.User) error {
	stamp(&user.Base, r.now())
	row := *user
	return r.write(ctx, func(s *memState) error {
		if _, ok := s.users[row.ID]; ok {
			return ErrDuplicate
		}
		if row.Email != nil {
			for _, existing := range s.users {
				if existing.Email != nil && *existing.Email == *row.Email {
					return ErrDuplicate
				}
			}
		}
		s.users[row.ID] = row
		s.userOrder = append(s.userOrder, row.ID)
		return nil
	})
}

func (r *memUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	var (
		user models.User
		ok   bool
	)
	r.read(func(s *memState) { user, ok = s.users[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *memUsers) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	var users []models.User
	r.read(func(s *memState) {
		for _, id := range s.userOrder {
			u := s.users[id]
			if activeOnly && !u.Active {
				continue
			}
			users = append(users, u)
		}
	})
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

type memOutbox struct{ memView }

func (r *memOutbox) Enqueue(ctx context.Context, msg *models.OutboxMessage) error {
	stamp(&msg.Base, r.now())
	if msg.Status == "" {
		msg.Status = models.OutboxStatusPending
	}
	row := *msg
	return r.write(ctx, func(s *memState) error {
		for _, existing := range s.outbox {
			if existing.MessageKey == row.MessageKey {
				return ErrDuplicate
			}
		}
		s.outbox[row.ID] = row
		s.outboxOrder = append(s.outboxOrder, row.ID)
		return nil
	})
}

func (r *memOutbox) ListPending(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	var msgs []models.OutboxMessage
	r.read(func(s *memState) {
		for _, id := range s.outboxOrder {
			if limit > 0 && len(msgs) == limit {
				return
			}
			if msg := s.outbox[id]; msg.Status == models.OutboxStatusPending {
				msgs = append(msgs, msg)
			}
		}
	})
	return msgs, nil
}

func (r *memOutbox) MarkSent(ctx context.Context, id string) error {
	now := r.now()
	return r.write(ctx, func(s *memState) error {
		msg, ok := s.outbox[id]
		if !ok || msg.Status != models.OutboxStatusPending {
			return nil
		}
		msg.Status = models.OutboxStatusSent
		msg.UpdatedAt = now
		s.outbox[id] = msg
		return nil
	})
}

func (r *memOutbox) MarkAttemptFailed(ctx context.Context, id, lastError string, maxRetries int) error {
	now := r.now()
	return r.write(ctx, func(s *memState) error {
		msg, ok := s.outbox[id]
		if !ok || msg.Status != models.OutboxStatusPending {
			return nil
		}
		msg.RetryCount++
		msg.LastError = lastError
		if msg.RetryCount >= maxRetries {
			msg.Status = models.OutboxStatusFailed
		}
		msg.UpdatedAt = now
		s.outbox[id] = msg
		return nil
	})
}

type memAudit struct{ memView }

func (r *memAudit) Record(ctx context.Context, entry *models.AuditLog) error {
	stamp(&entry.Base, r.now())
	row := *entry
	return r.write(ctx, func(s *memState) error {
		s.audit = append(s.audit, row)
		return nil
	})
}

func (r *memAudit) ListByResource(ctx context.Context, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	r.read(func(s *memState) {
		for _, l := range s.audit {
			if l.ResourceID == resourceID {
				logs = append(logs, l)
			}
		}
	})
	return logs, nil
}
