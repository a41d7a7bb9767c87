package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/microtasks/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory database. Begin snapshots the state and Rollback restores it, so
// the tests observe real all-or-nothing behavior without Postgres.
// ---------------------------------------------------------------------------

type memState struct {
	accounts    map[uuid.UUID]models.Account
	tasks       map[uuid.UUID]models.Task
	submissions map[uuid.UUID]models.Submission
	withdrawals map[uuid.UUID]models.Withdrawal
	payments    []models.Payment
	journal     []models.CreditLedger
}

func (s memState) clone() memState {
	c := memState{
		accounts:    make(map[uuid.UUID]models.Account, len(s.accounts)),
		tasks:       make(map[uuid.UUID]models.Task, len(s.tasks)),
		submissions: make(map[uuid.UUID]models.Submission, len(s.submissions)),
		withdrawals: make(map[uuid.UUID]models.Withdrawal, len(s.withdrawals)),
		payments:    append([]models.Payment(nil), s.payments...),
		journal:     append([]models.CreditLedger(nil), s.journal...),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.submissions {
		c.submissions[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	return c
}

type memDB struct {
	mu      sync.Mutex
	st      memState
	initial map[uuid.UUID]int64

	commits   int
	rollbacks int
}

func newMemDB() *memDB {
	return &memDB{
		st:      memState{}.clone(),
		initial: make(map[uuid.UUID]int64),
	}
}

func (db *memDB) Begin(context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return &memTx{db: db, snap: db.st.clone()}, nil
}

func (db *memDB) addAccount(role models.Role, name string, coins int64) *models.Session {
	db.mu.Lock()
	defer db.mu.Unlock()
	a := models.Account{ID: uuid.New(), Email: name + "@example.com", FullName: name, Role: role, Coins: coins}
	db.st.accounts[a.ID] = a
	db.initial[a.ID] = coins
	return models.NewSession(&a)
}

func (db *memDB) balance(id uuid.UUID) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.accounts[id].Coins
}

func (db *memDB) task(id uuid.UUID) (models.Task, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.st.tasks[id]
	return t, ok
}

func (db *memDB) submission(id uuid.UUID) models.Submission {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.submissions[id]
}

func (db *memDB) withdrawal(id uuid.UUID) models.Withdrawal {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.withdrawals[id]
}

func (db *memDB) entries(entryType string) []models.CreditLedger {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.CreditLedger
	for _, e := range db.st.journal {
		if e.EntryType == entryType {
			out = append(out, e)
		}
	}
	return out
}

// checkIntegrity verifies that no balance or slot counter is negative and that
// every balance equals its opening value plus its journal entries.
func (db *memDB) checkIntegrity() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	sums := make(map[uuid.UUID]int64)
	for _, e := range db.st.journal {
		sums[e.AccountID] += e.Amount
	}
	for id, a := range db.st.accounts {
		if a.Coins < 0 {
			return fmt.Errorf("account %s has negative balance %d", id, a.Coins)
		}
		if want := db.initial[id] + sums[id]; a.Coins != want {
			return fmt.Errorf("account %s: opening %d + journal %d = %d, balance is %d", id, db.initial[id], sums[id], want, a.Coins)
		}
	}
	for id, t := range db.st.tasks {
		if t.RequiredWorkers < 0 {
			return fmt.Errorf("task %s has negative slots %d", id, t.RequiredWorkers)
		}
	}
	return nil
}

// --- memTx: noopTx plus snapshot restore on rollback ---

type memTx struct {
	noopTx
	db   *memDB
	snap memState
	done bool
}

func (tx *memTx) Commit(context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.commits++
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.st = tx.snap
	tx.db.rollbacks++
	return nil
}

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

var errUniqueViolation = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

// --- accounts ---

type memAccounts struct{ db *memDB }

func (m memAccounts) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.st.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (m memAccounts) DeductCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.st.accounts[id]
	if !ok || a.Coins < amount {
		return 0, pgx.ErrNoRows
	}
	a.Coins -= amount
	m.db.st.accounts[id] = a
	return a.Coins, nil
}

func (m memAccounts) AddCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.st.accounts[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	a.Coins += amount
	m.db.st.accounts[id] = a
	return a.Coins, nil
}

func (m memAccounts) SetCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, coins int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a := m.db.st.accounts[id]
	a.Coins = coins
	m.db.st.accounts[id] = a
	return nil
}

// --- tasks ---

type memTasks struct{ db *memDB }

func (m memTasks) CreateTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.st.tasks[t.ID] = *t
	return nil
}

func (m memTasks) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.st.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (m memTasks) ClaimSlot(_ context.Context, _ pgx.Tx, id uuid.UUID) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.st.tasks[id]
	if !ok || t.RequiredWorkers <= 0 {
		return 0, pgx.ErrNoRows
	}
	t.RequiredWorkers--
	m.db.st.tasks[id] = t
	return t.RequiredWorkers, nil
}

func (m memTasks) ReleaseSlot(_ context.Context, _ pgx.Tx, id uuid.UUID) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.st.tasks[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	t.RequiredWorkers++
	m.db.st.tasks[id] = t
	return t.RequiredWorkers, nil
}

func (m memTasks) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	delete(m.db.st.tasks, id)
	for sid, s := range m.db.st.submissions {
		if s.TaskID == id {
			delete(m.db.st.submissions, sid)
		}
	}
	return nil
}

// --- submissions ---

type memSubmissions struct{ db *memDB }

func (m memSubmissions) CreateTx(_ context.Context, _ pgx.Tx, s *models.Submission) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, other := range m.db.st.submissions {
		if other.TaskID == s.TaskID && other.WorkerID == s.WorkerID && other.Status != models.StatusRejected {
			return errUniqueViolation
		}
	}
	m.db.st.submissions[s.ID] = *s
	return nil
}

func (m memSubmissions) GetByIDTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.st.submissions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &s, nil
}

func (m memSubmissions) DecideTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status models.Status) (*models.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.st.submissions[id]
	if !ok || s.Status != models.StatusPending {
		return nil, pgx.ErrNoRows
	}
	s.Status = status
	m.db.st.submissions[id] = s
	return &s, nil
}

func (m memSubmissions) PendingWorkersTx(_ context.Context, _ pgx.Tx, taskID uuid.UUID) ([]uuid.UUID, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []uuid.UUID
	for _, s := range m.db.st.submissions {
		if s.TaskID == taskID && s.Status == models.StatusPending {
			out = append(out, s.WorkerID)
		}
	}
	return out, nil
}

// --- withdrawals ---

type memWithdrawals struct {
	db *memDB
	// blindPendingCheck makes HasPendingTx always report false, simulating a
	// concurrent request that slipped past the check.
	blindPendingCheck bool
}

func (m memWithdrawals) CreateTx(_ context.Context, _ pgx.Tx, w *models.Withdrawal) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, other := range m.db.st.withdrawals {
		if other.UserID == w.UserID && other.Status == models.StatusPending {
			return errUniqueViolation
		}
	}
	m.db.st.withdrawals[w.ID] = *w
	return nil
}

func (m memWithdrawals) GetByIDTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	w, ok := m.db.st.withdrawals[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &w, nil
}

func (m memWithdrawals) DecideTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status models.Status) (*models.Withdrawal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	w, ok := m.db.st.withdrawals[id]
	if !ok || w.Status != models.StatusPending {
		return nil, pgx.ErrNoRows
	}
	w.Status = status
	m.db.st.withdrawals[id] = w
	return &w, nil
}

func (m memWithdrawals) HasPendingTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) (bool, error) {
	if m.blindPendingCheck {
		return false, nil
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, w := range m.db.st.withdrawals {
		if w.UserID == userID && w.Status == models.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m memWithdrawals) PendingSumTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var sum int64
	for _, w := range m.db.st.withdrawals {
		if w.UserID == userID && w.Status == models.StatusPending {
			sum += w.Coins
		}
	}
	return sum, nil
}

// --- payments and journal ---

type memPayments struct{ db *memDB }

func (m memPayments) CreateTx(_ context.Context, _ pgx.Tx, p *models.Payment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.st.payments = append(m.db.st.payments, *p)
	return nil
}

type memJournal struct {
	db   *memDB
	fail bool
}

var errJournalDown = errors.New("journal unavailable")

func (m *memJournal) CreateTx(_ context.Context, _ pgx.Tx, c *models.CreditLedger) error {
	if m.fail {
		return errJournalDown
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.st.journal = append(m.db.st.journal, *c)
	return nil
}

// --- notifier ---

type recordingNotifier struct {
	mu    sync.Mutex
	notes []*models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) forUser(id uuid.UUID) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.notes {
		if n.UserID == id {
			out = append(out, n)
		}
	}
	return out
}
