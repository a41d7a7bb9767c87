package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/microtasks/backend/internal/metrics"
)

type PurgeArgs struct{}

func (PurgeArgs) Kind() string { return "purge_notifications" }

type PurgeStore interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeWorker deletes read notifications older than the retention window.
type PurgeWorker struct {
	river.WorkerDefaults[PurgeArgs]
	store     PurgeStore
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func NewPurgeWorker(store PurgeStore, retention time.Duration, log *slog.Logger) *PurgeWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PurgeWorker{store: store, retention: retention, now: time.Now, log: log}
}

func (w *PurgeWorker) Work(ctx context.Context, _ *river.Job[PurgeArgs]) error {
	cutoff := w.now().Add(-w.retention)
	n, err := w.store.PurgeRead(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge notifications: %w", err)
	}
	metrics.NotificationsPurged.Add(float64(n))
	w.log.Info("purged read notifications", "count", n, "cutoff", cutoff)
	return nil
}

// PeriodicJobs returns the scheduled jobs for the River client config.
func PeriodicJobs(purgeEvery time.Duration) []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(purgeEvery),
			func() (river.JobArgs, *river.InsertOpts) { return PurgeArgs{}, nil },
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

// Store is what the registered workers need from the notifications table.
type Store interface {
	NotificationStore
	PurgeStore
}

// Register adds every worker in this package to workers.
func Register(workers *river.Workers, store Store, retention time.Duration, log *slog.Logger) {
	river.AddWorker(workers, NewNotificationWorker(store))
	river.AddWorker(workers, NewPurgeWorker(store, retention, log))
}
