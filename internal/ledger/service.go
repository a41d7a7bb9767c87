package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microtasks/backend/internal/metrics"
	"github.com/microtasks/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountStore is the balance side of the ledger. DeductCoins must be a
// conditional update that returns pgx.ErrNoRows instead of going negative.
type AccountStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error)
	AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error)
	SetCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, coins int64) error
}

// TaskStore owns the slot counter. ClaimSlot returns pgx.ErrNoRows when no slot is left.
type TaskStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	ClaimSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (remaining int64, err error)
	ReleaseSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (remaining int64, err error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// SubmissionStore persists submissions. DecideTx is a compare-and-swap from
// pending and returns pgx.ErrNoRows when the submission was already decided.
type SubmissionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, s *models.Submission) error
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error)
	DecideTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.Status) (*models.Submission, error)
	PendingWorkersTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) ([]uuid.UUID, error)
}

type WithdrawalStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error)
	DecideTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.Status) (*models.Withdrawal, error)
	HasPendingTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error)
	PendingSumTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error)
}

type PaymentStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payment) error
}

type JournalStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditLedger) error
}

// Notifier delivers user-facing messages. It is called only after the
// ledger transaction has committed and must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification)
}

type Stores struct {
	Accounts    AccountStore
	Tasks       TaskStore
	Submissions SubmissionStore
	Withdrawals WithdrawalStore
	Payments    PaymentStore
	Journal     JournalStore
}

type Options struct {
	// RefundOnTaskDelete credits the unspent escrow of a deleted task back to
	// its owner: open slots plus slots held by pending submissions.
	RefundOnTaskDelete bool
	Now                func() time.Time
	Logger             *slog.Logger
}

// Service runs every coin-moving workflow. Each operation is one database
// transaction built from conditional updates, so a failure at any step
// leaves no partial state behind.
type Service struct {
	pool     TxBeginner
	stores   Stores
	notifier Notifier
	refund   bool
	now      func() time.Time
	log      *slog.Logger
}

func NewService(pool TxBeginner, stores Stores, notifier Notifier, opts Options) *Service {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		pool:     pool,
		stores:   stores,
		notifier: notifier,
		refund:   opts.RefundOnTaskDelete,
		now:      opts.Now,
		log:      opts.Logger,
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, *models.Notification) {}

// txScope collects what a transaction produced so it can be published once
// the commit has succeeded.
type txScope struct {
	tx      pgx.Tx
	entries []*models.CreditLedger
	notes   []*models.Notification
}

func (sc *txScope) notify(userID uuid.UUID, route, message string) {
	sc.notes = append(sc.notes, &models.Notification{
		UserID:      userID,
		Message:     message,
		ActionRoute: route,
	})
}

func (s *Service) run(ctx context.Context, op string, fn func(sc *txScope) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.LedgerOperationsTotal.WithLabelValues(op, outcome(err)).Inc()
		metrics.LedgerOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistErr(op+": begin", err)
	}
	defer tx.Rollback(ctx)

	sc := &txScope{tx: tx}
	if err := fn(sc); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return persistErr(op+": commit", err)
	}

	for _, e := range sc.entries {
		metrics.CoinsMovedTotal.WithLabelValues(e.EntryType).Add(float64(abs(e.Amount)))
	}
	notifyCtx := context.WithoutCancel(ctx)
	for _, n := range sc.notes {
		s.notifier.Notify(notifyCtx, n)
	}
	return nil
}

// record appends a journal entry inside the running transaction.
func (s *Service) record(ctx context.Context, sc *txScope, e *models.CreditLedger) error {
	e.ID = uuid.New()
	if err := s.stores.Journal.CreateTx(ctx, sc.tx, e); err != nil {
		return persistErr("record "+e.EntryType, err)
	}
	sc.entries = append(sc.entries, e)
	return nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
