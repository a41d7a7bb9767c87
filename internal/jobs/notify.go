package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/microtasks/backend/internal/metrics"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/repository"
)

// NotificationArgs carries one user-facing message. The ID is fixed at
// enqueue time so a retried job cannot create a second row.
type NotificationArgs struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Message     string    `json:"message"`
	ActionRoute string    `json:"action_route"`
}

func (NotificationArgs) Kind() string { return "notify_user" }

func (NotificationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

type NotificationWorker struct {
	river.WorkerDefaults[NotificationArgs]
	store NotificationStore
}

func NewNotificationWorker(store NotificationStore) *NotificationWorker {
	return &NotificationWorker{store: store}
}

func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationArgs]) error {
	args := job.Args
	err := w.store.Create(ctx, &models.Notification{
		ID:          args.ID,
		UserID:      args.UserID,
		Message:     args.Message,
		ActionRoute: args.ActionRoute,
	})
	if repository.IsUniqueViolation(err) {
		// Delivered by an earlier attempt.
		err = nil
	}
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("deliver", "error").Inc()
		return fmt.Errorf("store notification for %s: %w", args.UserID, err)
	}
	metrics.NotificationsTotal.WithLabelValues("deliver", "ok").Inc()
	return nil
}

// InsertFunc enqueues a job. Provided by main as a closure over river.Client.Insert.
type InsertFunc func(ctx context.Context, args river.JobArgs) error

var errNoInserter = errors.New("notification queue not started")

// Emitter hands committed ledger notifications to the queue. Delivery is
// best effort: failures are logged and counted, never returned to the caller.
type Emitter struct {
	mu     sync.RWMutex
	insert InsertFunc
	log    *slog.Logger
}

func NewEmitter(log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{log: log}
}

// SetInsert installs the enqueue function once the River client exists. The
// client needs the workers and the workers need the emitter, so this breaks
// the cycle.
func (e *Emitter) SetInsert(fn InsertFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insert = fn
}

func (e *Emitter) Notify(ctx context.Context, n *models.Notification) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	e.mu.RLock()
	insert := e.insert
	e.mu.RUnlock()

	err := errNoInserter
	if insert != nil {
		err = insert(ctx, NotificationArgs{
			ID:          n.ID,
			UserID:      n.UserID,
			Message:     n.Message,
			ActionRoute: n.ActionRoute,
		})
	}
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("enqueue", "error").Inc()
		e.log.Error("enqueue notification failed", "user_id", n.UserID, "error", err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("enqueue", "ok").Inc()
}
