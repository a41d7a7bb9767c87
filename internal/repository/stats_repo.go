package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtasks/backend/internal/models"
)

// StatsRepo computes the dashboard home aggregates.
type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

func (r *StatsRepo) WorkerStats(ctx context.Context, workerID uuid.UUID) (*models.WorkerStats, error) {
	var s models.WorkerStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE s.status = 'pending'),
			COALESCE(SUM(t.payable_amount) FILTER (WHERE s.status = 'approved'), 0)::bigint
		FROM submissions s JOIN tasks t ON t.id = s.task_id
		WHERE s.worker_id = $1
	`, workerID).Scan(&s.TotalSubmissions, &s.PendingSubmissions, &s.TotalEarnings)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatsRepo) BuyerStats(ctx context.Context, buyerID uuid.UUID) (*models.BuyerStats, error) {
	var s models.BuyerStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM tasks WHERE buyer_id = $1),
			(SELECT COALESCE(SUM(required_workers), 0)::bigint FROM tasks WHERE buyer_id = $1),
			(SELECT count(*) FROM submissions s JOIN tasks t ON t.id = s.task_id
				WHERE t.buyer_id = $1 AND s.status = 'pending'),
			(SELECT COALESCE(SUM(amount_usd), 0) FROM payments WHERE user_id = $1 AND status = 'completed')
	`, buyerID).Scan(&s.TotalTasks, &s.PendingWorkers, &s.PendingSubmissions, &s.TotalPaidUSD)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatsRepo) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	var s models.AdminStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM accounts WHERE role = 'worker'),
			(SELECT count(*) FROM accounts WHERE role = 'buyer'),
			(SELECT COALESCE(SUM(coins), 0)::bigint FROM accounts),
			(SELECT COALESCE(SUM(amount_usd), 0) FROM payments WHERE status = 'completed'),
			(SELECT count(*) FROM withdrawals WHERE status = 'pending')
	`).Scan(&s.TotalWorkers, &s.TotalBuyers, &s.TotalCoins, &s.TotalPaymentsUSD, &s.PendingWithdrawals)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
